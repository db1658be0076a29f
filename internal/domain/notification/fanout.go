package notification

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Sink is a named notifier.
type Sink struct {
	Name     string
	Notifier Notifier
}

// Fanout delivers each notification to every sink concurrently. A failing
// sink does not stop the others; all failures are combined.
type Fanout struct {
	sinks []Sink
}

var _ Notifier = (*Fanout)(nil)

// NewFanout creates a Fanout over the given sinks. Sinks with a nil notifier
// are skipped.
func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s.Notifier != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Len returns the number of active sinks.
func (f *Fanout) Len() int { return len(f.sinks) }

// Notify implements Notifier.
func (f *Fanout) Notify(ctx context.Context, n Notification) error {
	errs := make([]error, len(f.sinks))

	// Every sink runs to completion even if another fails.
	var g errgroup.Group
	for i, s := range f.sinks {
		g.Go(func() error {
			if err := s.Notifier.Notify(ctx, n); err != nil {
				errs[i] = errors.Wrap(err, s.Name)
				return errs[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err == nil {
		return nil
	}
	return multierr.Combine(errs...)
}
