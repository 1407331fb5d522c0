package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/meridian-group/decision-cli/internal/model"
)

var (
	feedbackRating     int
	feedbackAdopted    bool
	feedbackCorrection string
	feedbackHelpful    []string
	feedbackUnhelpful  []string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record feedback and inspect the learning report",
}

var feedbackAddCmd = &cobra.Command{
	Use:   "add <decision-id>",
	Short: "Record feedback for a decision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if feedbackRating < 1 || feedbackRating > 5 {
			return eris.New("rating must be 1-5")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		helpful := make(map[string]bool)
		for _, id := range feedbackHelpful {
			helpful[strings.TrimSpace(id)] = true
		}
		for _, id := range feedbackUnhelpful {
			helpful[strings.TrimSpace(id)] = false
		}

		env.learner.RecordFeedback(ctx, model.FeedbackRecord{
			DecisionID:  args[0],
			Rating:      feedbackRating,
			Adopted:     feedbackAdopted,
			Correction:  feedbackCorrection,
			RoleHelpful: helpful,
		})
		fmt.Println("feedback recorded")
		return nil
	},
}

var feedbackReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the aggregate learning report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rep := env.learner.FeedbackReport()
		fmt.Printf("反馈总数: %d\n", rep.TotalFeedback)
		fmt.Printf("采纳率:   %.0f%%\n", rep.AdoptionRate*100)
		fmt.Printf("平均评分: %.1f/5\n", rep.AverageRating)
		fmt.Printf("学习规则: %d 条\n", rep.RuleCount)
		if len(rep.RoleStats) > 0 {
			fmt.Println("\n角色表现:")
			for _, st := range rep.RoleStats {
				fmt.Printf("  %-22s 准确率 %.0f%% (%d 样本)  权重 %.1f\n",
					st.RoleID, st.Accuracy()*100, st.Samples, st.Weight)
			}
		}
		return nil
	},
}

func init() {
	feedbackAddCmd.Flags().IntVar(&feedbackRating, "rating", 3, "rating 1-5")
	feedbackAddCmd.Flags().BoolVar(&feedbackAdopted, "adopted", false, "decision was adopted")
	feedbackAddCmd.Flags().StringVar(&feedbackCorrection, "correction", "", "free-text correction")
	feedbackAddCmd.Flags().StringSliceVar(&feedbackHelpful, "helpful", nil, "role ids that were helpful")
	feedbackAddCmd.Flags().StringSliceVar(&feedbackUnhelpful, "unhelpful", nil, "role ids that were not helpful")
	feedbackCmd.AddCommand(feedbackAddCmd, feedbackReportCmd)
	rootCmd.AddCommand(feedbackCmd)
}
