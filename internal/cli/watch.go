package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/tendril/pkg/ports"
)

// ErrNotWatchable is returned when the feed cannot signal changes.
var ErrNotWatchable = errors.New("feed does not support watching")

// Watch runs a pass, then another one after every change of the feed, until ctx is done.
// Changes arriving within the debounce window are folded into one pass. A failed pass is
// logged and the loop waits for the next change.
func (a *App) Watch(ctx context.Context) error {
	w, ok := a.Feed.(ports.Watchable)
	if !ok {
		return ErrNotWatchable
	}
	changes, err := w.Watch(ctx)
	if err != nil {
		return err
	}

	a.Logger.Info("Starting Watcher", "dir", a.Config.Dir, "debounce", a.Config.Debounce)
	if !a.quiet {
		printSystemMessage(a.out, "Watching '%s'.", a.Config.Dir)
	}

	a.watchPass(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return ctx.Err()
			}
		}
		if !debounce(ctx, changes, a.Config.Debounce) {
			return ctx.Err()
		}
		a.watchPass(ctx)
	}
}

func (a *App) watchPass(ctx context.Context) {
	if _, err := a.Pass(ctx); err != nil && !isInterrupted(err) {
		a.Logger.Error("Pass failed", "err", err)
		if !a.quiet {
			printSystemMessage(a.out, "%s", fmt.Sprintf("Pass failed: %v", err))
		}
	}
}

// debounce waits until no change arrived for d. It returns false if ctx ended or the
// channel closed first.
func debounce(ctx context.Context, changes <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case _, ok := <-changes:
			if !ok {
				return false
			}
			timer.Reset(d)
		case <-timer.C:
			return true
		}
	}
}
