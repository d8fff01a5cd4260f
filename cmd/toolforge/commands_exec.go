package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"toolforge/internal/config"
)

var (
	execInput    string
	historyLimit int
)

var execCmd = &cobra.Command{
	Use:   "exec <name>",
	Short: "Invoke a mounted primitive",
	Long: `Invoke a mounted primitive through the full path: advertised
schema check, permission gate, input coercion, sandboxed execution.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var input map[string]any
		if execInput != "" {
			if err := json.Unmarshal([]byte(execInput), &input); err != nil {
				return fmt.Errorf("invalid --input: %w", err)
			}
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		result, err := a.adapter.Invoke(cmd.Context(), args[0], input)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [id|name]",
	Short: "Show recent execution records",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		if len(args) == 1 {
			p, err := a.reg.Get(args[0])
			if err != nil {
				return err
			}
			recs, err := a.store.ExecutionsForPrimitive(p.ID, historyLimit)
			if err != nil {
				return err
			}
			return printJSON(recs)
		}

		recs, err := a.store.RecentExecutions(historyLimit)
		if err != nil {
			return err
		}
		return printJSON(recs)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show registry statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		stats, err := a.reg.Stats()
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail execution records as they land",
	Long: `Follow the execution history in real time. Also reloads the
logging section of config.json on change, so verbosity can be adjusted
without restarting the watch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return config.Watch(ctx, workspace, a.logs.Logger(), func(cfg *config.Config) {
				a.logs.Apply(cfg.Logging)
			})
		})

		g.Go(func() error {
			var lastID int64
			ticker := time.NewTicker(2 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					recs, err := a.store.RecentExecutions(50)
					if err != nil {
						return err
					}
					// Newest first; print the backlog oldest first.
					for i := len(recs) - 1; i >= 0; i-- {
						rec := recs[i]
						if rec.ID <= lastID {
							continue
						}
						lastID = rec.ID
						status := "ok"
						if !rec.Success {
							status = "fail"
						}
						fmt.Printf("%s  %-4s %-24s %4dms  %s\n",
							rec.StartedAt.Format(time.RFC3339), status,
							rec.PrimitiveName, rec.ExecutionTimeMs, rec.Error)
					}
				}
			}
		})

		if err := g.Wait(); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}

func init() {
	execCmd.Flags().StringVarP(&execInput, "input", "i", "", "arguments as a JSON object")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum records")
}
