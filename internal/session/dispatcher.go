package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/heyito/ito-sub003/internal/shared"
	"github.com/heyito/ito-sub003/internal/shortcut"
)

const (
	DefaultRequestTimeout = 30 * time.Second
	sweepInterval         = time.Second
)

// SessionDriver is the subset of Controller the dispatcher drives.
type SessionDriver interface {
	Start(mode shared.Mode) error
	SetMode(mode shared.Mode)
	Cancel()
	Complete(ctx context.Context) error
}

// Dispatcher turns key events into session commands.
type Dispatcher struct {
	driver         SessionDriver
	matcher        *shortcut.Matcher
	requestTimeout time.Duration
	log            *slog.Logger

	wg sync.WaitGroup
}

func NewDispatcher(driver SessionDriver, matcher *shortcut.Matcher, requestTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &Dispatcher{
		driver:         driver,
		matcher:        matcher,
		requestTimeout: requestTimeout,
		log:            logger.With("component", "dispatcher"),
	}
}

func (d *Dispatcher) HandleKey(ev shortcut.KeyEvent) {
	d.Dispatch(d.matcher.Handle(ev))
}

// Dispatch applies triggers in order. Complete runs on its own goroutine so
// key handling never waits on the transcription call.
func (d *Dispatcher) Dispatch(triggers []shortcut.Trigger) {
	for _, t := range triggers {
		switch t.Kind {
		case shortcut.TriggerStart:
			if err := d.driver.Start(t.Mode); err != nil {
				d.log.Warn("start session failed", "mode", t.Mode, "error", err)
			}
		case shortcut.TriggerModeChange:
			d.driver.SetMode(t.Mode)
		case shortcut.TriggerStop:
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				ctx, cancel := context.WithTimeout(context.Background(), d.requestTimeout)
				defer cancel()
				if err := d.driver.Complete(ctx); err != nil && shared.KindOf(err) != shared.KindCancelled {
					d.log.Debug("session ended with error", "error", err)
				}
			}()
		}
	}
}

// Run consumes events until ctx is done or events is closed, sweeping stuck
// keys once a second.
func (d *Dispatcher) Run(ctx context.Context, events <-chan shortcut.KeyEvent) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.HandleKey(ev)
		case now := <-ticker.C:
			d.Dispatch(d.matcher.Sweep(now))
		}
	}
}

// Wait blocks until every in-flight Complete has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
