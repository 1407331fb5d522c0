package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-group/decision-cli/internal/model"
	"github.com/meridian-group/decision-cli/internal/report"
	"github.com/meridian-group/decision-cli/pkg/notion"
)

var (
	runMode     string
	runXLSXPath string
	runToNotion bool
)

var runCmd = &cobra.Command{
	Use:   "run <input>",
	Short: "Run a decision analysis",
	Long:  "Runs the full role panel over the given idea, goal, or comparison input. Multi-topic inputs are separated by newlines or semicolons; cross-references like 话题2 become dependencies.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		mode := model.RunMode(runMode)
		switch mode {
		case model.ModeForward, model.ModeReverse, model.ModeMixed, model.ModeCompare:
		default:
			return eris.Errorf("unknown mode %q", runMode)
		}

		orch, err := env.orchestratorFor(mode, func(ev model.ProgressEvent) {
			fmt.Printf("[%3d%%] %s\n", ev.Progress, ev.Step)
		})
		if err != nil {
			return err
		}

		input := strings.Join(args, " ")
		outcome, err := orch.Run(ctx, input, mode)
		if err != nil {
			return eris.Wrap(err, "run analysis")
		}

		fmt.Println()
		fmt.Println(outcome.Run.Report)
		fmt.Printf("\n会话: %s\n", outcome.Run.ID)

		if runXLSXPath != "" {
			if err := report.ExportXLSX(runXLSXPath, outcome); err != nil {
				return err
			}
			fmt.Printf("已导出: %s\n", runXLSXPath)
		}

		if runToNotion {
			if cfg.Report.NotionToken == "" || cfg.Report.NotionParent == "" {
				return eris.New("notion export requires report.notion_token and report.notion_parent")
			}
			client := notion.NewClient(cfg.Report.NotionToken)
			title := fmt.Sprintf("决策分析 %s", outcome.Run.CreatedAt.Format("2006-01-02 15:04"))
			pageID, err := client.PublishReport(ctx, cfg.Report.NotionParent, title, outcome.Run.Report)
			if err != nil {
				return eris.Wrap(err, "publish to notion")
			}
			zap.L().Info("report published to notion", zap.String("page", pageID))
			fmt.Printf("Notion 页面: %s\n", pageID)
		}

		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", string(model.ModeForward), "analysis mode: forward | reverse | mixed | compare")
	runCmd.Flags().StringVar(&runXLSXPath, "xlsx", "", "export outcome workbook to this path")
	runCmd.Flags().BoolVar(&runToNotion, "notion", false, "publish the report to Notion")
	rootCmd.AddCommand(runCmd)
}
