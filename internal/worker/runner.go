package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/raoulx24/cl-retention/internal/mailbox"
)

// ErrRunPanicked ends RunLoop when a run panics.
var ErrRunPanicked = errors.New("cleanup run panicked")

// RunLoop takes triggers from mb and runs them one after the other until
// the mailbox is closed or ctx is cancelled. Failed runs are logged and
// the loop keeps going. A panicking run is logged with its stack and
// returned as ErrRunPanicked.
func RunLoop(ctx context.Context, w *Worker, mb *mailbox.Mailbox[Trigger]) error {
	for {
		trig, ok := mb.Take()
		if !ok || ctx.Err() != nil {
			return nil
		}

		w.log.Info("run triggered", "reason", trig.Reason, "at", trig.At)
		if err := w.runRecovered(ctx); err != nil {
			if errors.Is(err, ErrRunPanicked) {
				return err
			}
			w.log.Error("cleanup run failed", "error", err)
		}
	}
}

func (w *Worker) runRecovered(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("unexpected error, aborting", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrRunPanicked, r)
		}
	}()
	_, err = w.Run(ctx)
	return err
}
