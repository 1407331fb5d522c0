package orchestrator

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrDependencyCycle is returned when topic cross-references form a cycle.
// Cyclic inputs are rejected up front rather than broken arbitrarily.
var ErrDependencyCycle = eris.New("orchestrator: topic dependency cycle")

// Topic is one unit of analysis. Multi-topic inputs become an explicit
// dependency graph; a topic referencing "话题2" / "topic 2" waits for that
// topic's results before its own panel runs.
type Topic struct {
	ID        string   `json:"id"`
	Seq       int      `json:"seq"` // 1-based position in the input
	Text      string   `json:"text"`
	DependsOn []string `json:"depends_on,omitempty"`
}

var topicRefRe = regexp.MustCompile(`(?i)(?:话题|主题|topic)\s*#?(\d+)`)

// SplitTopics breaks a multi-topic input into topics and resolves
// cross-references into dependency edges. Topics are separated by newlines or
// Chinese/ASCII semicolons; a single-topic input yields one topic with no
// edges. References to unknown or self topic numbers are dropped.
func SplitTopics(input string) []Topic {
	parts := strings.FieldsFunc(input, func(r rune) bool {
		return r == '\n' || r == '；' || r == ';'
	})

	var topics []Topic
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		topics = append(topics, Topic{
			ID:   fmt.Sprintf("t%d", len(topics)+1),
			Seq:  len(topics) + 1,
			Text: p,
		})
	}
	if len(topics) == 0 {
		return []Topic{{ID: "t1", Seq: 1, Text: strings.TrimSpace(input)}}
	}

	for i := range topics {
		for _, m := range topicRefRe.FindAllStringSubmatch(topics[i].Text, -1) {
			seq, err := strconv.Atoi(m[1])
			if err != nil || seq < 1 || seq > len(topics) || seq == topics[i].Seq {
				continue
			}
			dep := fmt.Sprintf("t%d", seq)
			if !containsString(topics[i].DependsOn, dep) {
				topics[i].DependsOn = append(topics[i].DependsOn, dep)
			}
		}
	}
	return topics
}

// SortTopics orders topics into execution batches with Kahn's algorithm.
// Every topic in a batch has all its dependencies satisfied by earlier
// batches, so batches run concurrently and the sequence between batches is
// deterministic. A cycle returns ErrDependencyCycle.
func SortTopics(topics []Topic) ([][]Topic, error) {
	byID := make(map[string]Topic, len(topics))
	indegree := make(map[string]int, len(topics))
	dependents := make(map[string][]string)

	for _, t := range topics {
		byID[t.ID] = t
		indegree[t.ID] = 0
	}
	for _, t := range topics {
		for _, dep := range t.DependsOn {
			if _, ok := byID[dep]; !ok {
				continue
			}
			indegree[t.ID]++
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	var batches [][]Topic
	remaining := len(topics)
	for remaining > 0 {
		var ready []Topic
		for id, deg := range indegree {
			if deg == 0 {
				ready = append(ready, byID[id])
			}
		}
		if len(ready) == 0 {
			return nil, eris.Wrapf(ErrDependencyCycle, "%d topics unresolvable", remaining)
		}
		sort.Slice(ready, func(i, j int) bool { return ready[i].Seq < ready[j].Seq })

		for _, t := range ready {
			delete(indegree, t.ID)
			for _, depID := range dependents[t.ID] {
				if _, ok := indegree[depID]; ok {
					indegree[depID]--
				}
			}
		}
		batches = append(batches, ready)
		remaining -= len(ready)
	}
	return batches, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
