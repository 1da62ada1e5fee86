package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
	"github.com/ewilliams-labs/cratedigger/internal/core/services"
)

const defaultOwner = "local"

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var owner string
	var all bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "analyze [track-id...]",
		Short: "Analyze catalog tracks in the foreground",
		Long: "Analyze runs one job to completion in this process. Pass track ids,\n" +
			"or --all to analyze every catalog track of the owner.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("pass track ids or --all, not both")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.HasYouTubeCredentials() {
				return errNoCredentials
			}
			logger := ctx.loggerFor(cmd)

			lock, err := acquireLock(cfg)
			if err != nil {
				return err
			}
			defer releaseLock(lock)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			watcher := newJobWatcher()
			a, err := newApp(runCtx, cfg, watcher, logger)
			if err != nil {
				return err
			}
			defer a.close()

			ids := args
			if all {
				tracks, err := a.store.ListTracks(runCtx, owner)
				if err != nil {
					return err
				}
				ids = make([]string, 0, len(tracks))
				for _, track := range tracks {
					ids = append(ids, track.ID)
				}
				if len(ids) == 0 {
					return fmt.Errorf("catalog has no tracks for owner %q; run `cratedigger catalog import` first", owner)
				}
			}

			a.pool.Start(runCtx, 1)
			if _, _, err := a.jobs.RecoverStale(runCtx); err != nil {
				return err
			}

			job, err := a.jobs.Create(runCtx, strings.TrimSpace(owner), ids)
			switch {
			case errors.Is(err, domain.ErrActiveJobExists):
				fmt.Fprintf(cmd.ErrOrStderr(), "Resuming unfinished job %s\n", job.ID)
			case err != nil:
				return err
			}

			renderer := newProgressRenderer(cmd.ErrOrStderr(), job.TotalTracks)
			final, err := watcher.wait(runCtx, job.ID, renderer.update)
			renderer.finish()
			if err != nil {
				return err
			}

			view := services.NewJobView(final)
			if jsonOutput {
				if err := writeJSON(cmd, view); err != nil {
					return err
				}
			} else {
				printJobView(cmd.OutOrStdout(), view)
			}
			if final.Status == domain.JobStatusFailed {
				return fmt.Errorf("job %s failed: %s", final.ID, final.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", defaultOwner, "Catalog owner the job runs for")
	cmd.Flags().BoolVar(&all, "all", false, "Analyze every track of the owner")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the finished job as JSON")
	return cmd
}
