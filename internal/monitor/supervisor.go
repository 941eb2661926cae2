package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/logger"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/internal/source"
	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/pkg/models"
)

// ErrTracerUnrecoverable is returned once the tracer supervisor has
// exhausted its restart budget: ten failed restarts with exponential
// backoff (1s doubling, capped at 60s). cmd/rcamonitor maps this to
// exit code 3 ("tracer unrecoverable").
var ErrTracerUnrecoverable = errors.New("monitor: tracer exited repeatedly and exhausted its restart budget")

const maxTracerRestarts = 10

// sourceSupervisor restarts a *source.Source built by newSource every
// time its Run loop exits on its own (a TracerLost condition), and
// forwards every event it produces onto out until ctx is cancelled or
// the restart budget is exhausted.
type sourceSupervisor struct {
	newSource func() (*source.Source, error)
	out       chan<- models.Event
}

func (sv *sourceSupervisor) run(ctx context.Context) error {
	backoff := time.Second
	failures := 0

	for {
		src, err := sv.newSource()
		if err != nil {
			logger.Errorf("monitor: tracer spawn failed: %v", err)
		} else {
			runErr := sv.drain(ctx, src)
			_ = src.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Run never returns while the tracer is healthy: any exit,
			// clean or not, is TracerLost and earns a restart.
			logger.Warnf("monitor: tracer run exited: %v", runErr)
		}

		failures++
		if failures >= maxTracerRestarts {
			return ErrTracerUnrecoverable
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 60*time.Second {
			backoff = 60 * time.Second
		}
	}
}

// drain forwards src's normalized events to out until src's queue
// closes (Run returning, for any reason, always closes it), then
// returns whatever error Run exited with. Draining the channel fully
// before reading the error avoids losing events that were already
// queued at the moment Run returned.
func (sv *sourceSupervisor) drain(ctx context.Context, src *source.Source) error {
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()

	for ev := range src.Events() {
		select {
		case sv.out <- ev:
		case <-ctx.Done():
		}
	}
	return <-done
}
