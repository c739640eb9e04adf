package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/construct/internal/watch"
)

type watchOptions struct {
	Debounce time.Duration
}

func newWatchCmd() *cobra.Command {
	opts := watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch [factor...]",
		Short: "Build, then rebuild whenever factor sources or the context change",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, args, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Debounce, "debounce", watch.DefaultDebounce, "Quiet period before a change triggers a build")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, args []string, opts watchOptions) error {
	stderr := cmd.ErrOrStderr()

	sess, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}

	for {
		roots, err := sess.roots(args)
		if err != nil {
			return err
		}
		report, err := sess.build(ctx, roots, cmd.OutOrStdout(), stderr)
		if ctx.Err() != nil {
			return nil
		}
		if err := buildResult(report, err); err != nil {
			fmt.Fprintln(stderr, err)
		}

		changed, err := waitForChanges(ctx, sess.sourceDirs(), opts.Debounce)
		if err != nil {
			return err
		}
		if changed == nil {
			return nil
		}
		fmt.Fprintf(stderr, "%d files changed; rebuilding\n", len(changed))

		// Sources may have been added or removed; the previous session stays
		// in use when the manifest became invalid.
		next, err := openSession(ctx, cmd)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintln(stderr, err)
			continue
		}
		sess = next
	}
}

// waitForChanges blocks until files change below dirs. A nil result means
// ctx was cancelled.
func waitForChanges(ctx context.Context, dirs []string, debounce time.Duration) ([]string, error) {
	w, err := watch.New(dirs, debounce)
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		return nil, err
	}
	defer w.Stop()

	select {
	case <-ctx.Done():
		return nil, nil
	case changed := <-w.Changes:
		return changed, nil
	}
}
