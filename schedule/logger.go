package schedule

import (
	"context"
	"log"
)

// Logger subscribes to a Clock and logs every fired instance — the
// default consumer a daemon wires up when it has nothing more specific
// to do with schedule.Alarm events.
type Logger struct {
	clock Clock

	sub    Subscription
	cancel context.CancelFunc
}

// NewLogger builds a Logger over clock.
func NewLogger(clock Clock) *Logger {
	return &Logger{clock: clock}
}

// Run starts the logging goroutine.
func (l *Logger) Run(ctx context.Context) error {
	l.sub = l.clock.Subscribe(ctx)
	ctx, l.cancel = context.WithCancel(ctx)
	go l.run(ctx)
	return nil
}

// Close stops the logging goroutine.
func (l *Logger) Close() error {
	l.cancel()
	return nil
}

func (l *Logger) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.sub.Close()
			return

		case alarm, ok := <-l.sub.C():
			if !ok {
				l.sub = l.clock.Subscribe(ctx)
				continue
			}
			log.Printf("schedule: fired %q at %v", alarm.Event, alarm.At)
		}
	}
}
