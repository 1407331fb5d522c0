package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meridian-group/decision-cli/internal/model"
	"github.com/meridian-group/decision-cli/internal/store"
)

var (
	sessionsStatus string
	sessionsLimit  int
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage persisted analysis sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sessions, err := env.st.ListSessions(ctx, store.SessionFilter{
			Status: model.RunStatus(sessionsStatus),
			Limit:  sessionsLimit,
		})
		if err != nil {
			return err
		}

		if len(sessions) == 0 {
			fmt.Println("no sessions")
			return nil
		}
		for _, s := range sessions {
			fmt.Printf("%s  %-9s  %-8s  %s\n",
				s.ID, s.Status, s.Mode, truncateInput(s.Input, 60))
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one session's report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.st.GetSession(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("会话: %s\n状态: %s\n模式: %s\n输入: %s\n", run.ID, run.Status, run.Mode, run.Input)
		if run.Err != "" {
			fmt.Printf("错误: %s\n", run.Err)
		}
		if run.Report != "" {
			fmt.Println()
			fmt.Println(run.Report)
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.st.DeleteSession(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

func truncateInput(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

func init() {
	sessionsListCmd.Flags().StringVar(&sessionsStatus, "status", "", "filter by status")
	sessionsListCmd.Flags().IntVar(&sessionsLimit, "limit", 50, "max sessions to list")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}
