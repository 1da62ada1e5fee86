package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/cratedigger/internal/adapters/sqlite"
	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
	"github.com/ewilliams-labs/cratedigger/internal/core/services"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect analysis jobs",
	}
	jobCmd.AddCommand(newJobShowCommand(ctx))
	jobCmd.AddCommand(newJobListCommand(ctx))
	return jobCmd
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show progress and errors of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *sqlite.Adapter) error {
				job, err := store.GetJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				view := services.NewJobView(job)
				if jsonOutput {
					return writeJSON(cmd, view)
				}
				printJobView(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the job as JSON")
	return cmd
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in a status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wanted := domain.JobStatus(status)
			switch wanted {
			case domain.JobStatusPending, domain.JobStatusInProgress, domain.JobStatusCompleted, domain.JobStatusFailed:
			default:
				return fmt.Errorf("unknown status %q", status)
			}
			return ctx.withStore(func(store *sqlite.Adapter) error {
				jobs, err := store.JobsByStatus(cmd.Context(), wanted)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintf(out, "No %s jobs\n", wanted)
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						job.ID,
						job.Owner,
						strconv.Itoa(job.TotalTracks),
						strconv.Itoa(job.Processed),
						strconv.Itoa(job.Failed),
						formatStamp(&job.CreatedAt),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Job", "Owner", "Tracks", "Processed", "Failed", "Created"}, rows, 2, 3, 4))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", string(domain.JobStatusInProgress), "Job status: pending, in_progress, completed or failed")
	return cmd
}

func printJobView(out io.Writer, view services.JobView) {
	rows := [][]string{
		{"Job", view.JobID},
		{"Owner", view.Owner},
		{"Status", string(view.Status)},
		{"Progress", fmt.Sprintf("%d%% (%d/%d)", view.Progress, view.Processed, view.TotalTracks)},
		{"Failed", strconv.Itoa(view.Failed)},
		{"Created", formatStamp(&view.CreatedAt)},
		{"Started", formatStamp(view.StartedAt)},
		{"Completed", formatStamp(view.CompletedAt)},
	}
	if view.ErrorMessage != "" {
		rows = append(rows, []string{"Error", view.ErrorMessage})
	}
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows))

	if len(view.Errors) == 0 {
		return
	}
	errRows := make([][]string, 0, len(view.Errors))
	for _, e := range view.Errors {
		errRows = append(errRows, []string{e.TrackID, e.Message})
	}
	fmt.Fprintln(out, renderTable([]string{"Track", "Error"}, errRows))
}

func formatStamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
