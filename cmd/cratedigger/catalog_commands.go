package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/cratedigger/internal/adapters/sqlite"
	"github.com/ewilliams-labs/cratedigger/internal/adapters/tags"
	"github.com/ewilliams-labs/cratedigger/internal/core/domain"
	"github.com/ewilliams-labs/cratedigger/internal/core/services"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the track catalog",
	}
	catalogCmd.AddCommand(newCatalogImportCommand(ctx))
	catalogCmd.AddCommand(newCatalogListCommand(ctx))
	catalogCmd.AddCommand(newCatalogRecalibrateCommand(ctx))
	return catalogCmd
}

func newCatalogImportCommand(ctx *commandContext) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "import [dir]",
		Short: "Import tracks from the tags of local audio files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			root := cfg.Paths.MusicDir
			if len(args) == 1 {
				root = strings.TrimSpace(args[0])
			}
			if root == "" {
				return errors.New("no music directory: pass one or set paths.music_dir")
			}
			logger := ctx.loggerFor(cmd)

			return ctx.withStore(func(store *sqlite.Adapter) error {
				stats, err := tags.NewImporter(store, logger).Import(cmd.Context(), root, owner)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d files: %d imported, %d skipped\n",
					stats.Scanned, stats.Imported, stats.Skipped)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", defaultOwner, "Owner to file the tracks under")
	return cmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog tracks with their analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *sqlite.Adapter) error {
				tracks, err := store.ListTracks(cmd.Context(), owner)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(tracks) == 0 {
					fmt.Fprintln(out, "Catalog is empty")
					return nil
				}
				rows := make([][]string, 0, len(tracks))
				for _, track := range tracks {
					row := []string{track.ID, track.Artist, track.Title, "-", "-", "-"}
					result, err := store.GetResult(cmd.Context(), track.ID)
					switch {
					case err == nil:
						row[3] = strconv.Itoa(result.BPM)
						row[4] = result.Key.String()
						row[5] = strconv.Itoa(result.Energy)
					case !errors.Is(err, domain.ErrNotFound):
						return err
					}
					rows = append(rows, row)
				}
				fmt.Fprintln(out, renderTable([]string{"Track", "Artist", "Title", "BPM", "Key", "Energy"}, rows, 3, 5))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Only list this owner's tracks")
	return cmd
}

func newCatalogRecalibrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recalibrate",
		Short: "Recompute every track's energy against the whole library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := ctx.loggerFor(cmd)
			return ctx.withStore(func(store *sqlite.Adapter) error {
				library := services.NewLibraryService(store, store, logger)
				n, err := library.RecalibrateEnergy(cmd.Context())
				if err != nil {
					return err
				}
				stats, err := library.EnergyStats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Recalibrated %d tracks\n", n)
				fmt.Fprintln(out, renderTable(
					[]string{"Count", "Mean", "Median", "Min", "Max", "StdDev"},
					[][]string{{
						strconv.Itoa(stats.Count),
						formatFloat(stats.Mean),
						formatFloat(stats.Median),
						formatFloat(stats.Min),
						formatFloat(stats.Max),
						formatFloat(stats.StdDev),
					}},
					0, 1, 2, 3, 4, 5,
				))
				return nil
			})
		},
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
