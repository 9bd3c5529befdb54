package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/core/domain"
)

const defaultHistoryLimit = 10

func (c *CLI) newListCmd() *cobra.Command {
	var plan bool
	cmd := &cobra.Command{
		Use:   "list [prefix] | list --plan <targets...>",
		Short: "List registered tasks",
		Long: "List registered tasks whose names start with prefix.\n" +
			"With --plan, list the tasks a run of the targets would visit, in the order they would run.",
		Args: func(cmd *cobra.Command, args []string) error {
			if plan {
				return cobra.MinimumNArgs(1)(cmd, args)
			}
			return cobra.MaximumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				tasks []domain.TaskHandle
				err   error
			)
			if plan {
				tasks, err = c.app.Plan(cmd.Context(), args, runOptions(cmd))
			} else {
				var prefix string
				if len(args) == 1 {
					prefix = args[0]
				}
				tasks, err = c.app.List(cmd.Context(), prefix, runOptions(cmd))
			}
			if err != nil {
				return err
			}

			printTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
	cmd.Flags().BoolVar(&plan, "plan", false, "list the tasks a run of the given targets would visit, in run order")
	return cmd
}

func printTasks(w io.Writer, tasks []domain.TaskHandle) {
	for _, task := range tasks {
		_, _ = fmt.Fprintf(w, "%-8s %s", task.Kind(), task.Name())
		if deps := task.Dependencies(); len(deps) > 0 {
			_, _ = fmt.Fprintf(w, " <- %s", strings.Join(deps, ", "))
		}
		_, _ = fmt.Fprintln(w)
	}
}

func (c *CLI) newExplainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <task>",
		Short: "Show whether a task would run and why",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := c.app.Explain(cmd.Context(), domain.NormalizeTaskName(args[0]), runOptions(cmd))
			if err != nil {
				return err
			}
			printExplanation(cmd.OutOrStdout(), exp)
			return nil
		},
	}
}

func printExplanation(w io.Writer, exp *domain.Explanation) {
	verdict := "up to date"
	if exp.Stale {
		verdict = "would run"
	}
	_, _ = fmt.Fprintf(w, "%s (%s): %s, %s\n", exp.Task, exp.Kind, verdict, exp.Reason)

	if exp.Cause != "" {
		_, _ = fmt.Fprintf(w, "  because of: %s\n", exp.Cause)
	}
	if !exp.OutputMod.IsZero() {
		_, _ = fmt.Fprintf(w, "  output modified: %s\n", humanize.Time(exp.OutputMod))
	}
	if !exp.Newest.IsZero() {
		_, _ = fmt.Fprintf(w, "  newest dependency: %s\n", humanize.Time(exp.Newest))
	}
	if b := exp.LastBuilt; b != nil {
		_, _ = fmt.Fprintf(w, "  last built: %s in %s (hash %s)\n",
			humanize.Time(b.Timestamp), b.Duration.Round(time.Millisecond), b.OutputHash)
	}
}

func (c *CLI) newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			sessions, err := c.app.History(cmd.Context(), limit, runOptions(cmd))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(sessions) == 0 {
				_, _ = fmt.Fprintln(w, "no sessions recorded")
				return nil
			}
			for i := range sessions {
				printSession(w, &sessions[i])
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Number of sessions to show")
	return cmd
}

func printSession(w io.Writer, s *domain.SessionSummary) {
	status := "ok"
	if !s.Succeeded() {
		status = "failed"
	}
	_, _ = fmt.Fprintf(w, "%s  %-6s %s  %s (%s)  executed %d, skipped %d, failed %d\n",
		shortID(s.ID), status, strings.Join(s.Targets, " "),
		humanize.Time(s.StartedAt), s.EndedAt.Sub(s.StartedAt).Round(time.Millisecond),
		s.Count(domain.StateExecuted), s.Count(domain.StateSkipped), s.Count(domain.StateFailed))
	if s.Error != "" {
		_, _ = fmt.Fprintf(w, "  %s\n", s.Error)
	}
}

func shortID(id string) string {
	const n = 8
	if len(id) > n {
		return id[:n]
	}
	return id
}
