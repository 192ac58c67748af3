package schedule

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"bsid.es/alarmtimer"
)

// Runner drives a set of Events through a single alarmtimer alarm: it
// keeps its own priority queue of pending instances (the teacher's
// Event multiplexing concern, distinct from a clock base's queue) and
// reprograms one alarm to the queue's head, the same way a user-space
// timerfd consumer multiplexes many deadlines onto one wakeup source.
type Runner struct {
	mgr   *alarmtimer.Manager
	typ   alarmtimer.Type
	alarm alarmtimer.Alarm

	newEvents chan []*Event
	fired     chan struct{}

	mu   sync.Mutex
	subs map[*runnerSubscription]struct{}

	cancel context.CancelFunc
}

// NewRunner builds a Runner that schedules its events against typ's
// reference clock on mgr.
func NewRunner(mgr *alarmtimer.Manager, typ alarmtimer.Type) *Runner {
	r := &Runner{
		mgr:       mgr,
		typ:       typ,
		newEvents: make(chan []*Event, 1),
		fired:     make(chan struct{}, 1),
		subs:      make(map[*runnerSubscription]struct{}),
		cancel:    func() {},
	}
	mgr.Init(&r.alarm, typ, r.handleFire)
	return r
}

var _ Clock = (*Runner)(nil)

func (r *Runner) handleFire(*alarmtimer.Alarm) {
	select {
	case r.fired <- struct{}{}:
	default:
	}
}

// Run starts the dispatch goroutine. ctx bounds its lifetime.
func (r *Runner) Run(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)
	go r.run(ctx)
	return nil
}

// Close stops the dispatch goroutine.
func (r *Runner) Close() error {
	r.cancel()
	return nil
}

// Reload replaces the active event set, dropping any instance already
// in flight for the previous set.
func (r *Runner) Reload(events ...*Event) {
	select {
	case <-r.newEvents:
	default:
	}
	r.newEvents <- events
}

const subBufferSize = 16

// Subscribe returns a feed of fired instances.
func (r *Runner) Subscribe(ctx context.Context) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub := &runnerSubscription{
		runner: r,
		c:      make(chan Alarm, subBufferSize),
	}
	r.subs[sub] = struct{}{}
	return sub
}

func (r *Runner) run(ctx context.Context) {
	var q schedQueue
	defer r.mgr.Cancel(&r.alarm)

	for {
		select {
		case <-ctx.Done():
			return

		case events := <-r.newEvents:
			now := r.mgr.Now(r.typ)
			q = make(schedQueue, 0, len(events))
			for _, event := range events {
				next := event.Next(now)
				if next.IsZero() {
					continue
				}
				q = append(q, schedQueueEntry{at: next, event: event})
			}
			heap.Init(&q)
			r.rearm(&q)

		case <-r.fired:
			if len(q) == 0 {
				continue
			}
			fire := &q[0]
			now := r.mgr.Now(r.typ)
			if now.Before(fire.at) {
				r.rearm(&q)
				continue
			}

			event := fire.event
			at := fire.at
			r.publish(event, at)

			if next := event.Next(at); !next.IsZero() {
				fire.at = next
				heap.Fix(&q, 0)
			} else {
				heap.Pop(&q)
			}
			r.rearm(&q)
		}
	}
}

func (r *Runner) rearm(q *schedQueue) {
	if len(*q) == 0 {
		r.mgr.Cancel(&r.alarm)
		return
	}
	r.mgr.Start(&r.alarm, (*q)[0].at, 0)
}

func (r *Runner) publish(event *Event, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alarm := Alarm{Event: event.Name, At: at, Data: event.Data}
	for sub := range r.subs {
		select {
		case sub.c <- alarm:
		default:
			// Subscriber can't keep up; drop it.
			sub.close()
		}
	}
}

type schedQueueEntry struct {
	at    time.Time
	event *Event
}

type schedQueue []schedQueueEntry

var _ heap.Interface = (*schedQueue)(nil)

func (q schedQueue) Len() int            { return len(q) }
func (q schedQueue) Less(i, j int) bool  { return q[i].at.Before(q[j].at) }
func (q schedQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *schedQueue) Push(x any) {
	*q = append(*q, x.(schedQueueEntry))
}
func (q *schedQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = schedQueueEntry{}
	*q = old[:n-1]
	return it
}

var _ Subscription = (*runnerSubscription)(nil)

type runnerSubscription struct {
	runner *Runner
	c      chan Alarm
	once   sync.Once
}

func (s *runnerSubscription) C() <-chan Alarm { return s.c }

func (s *runnerSubscription) Close() error {
	s.runner.mu.Lock()
	defer s.runner.mu.Unlock()
	s.close()
	return nil
}

func (s *runnerSubscription) close() {
	s.once.Do(func() { close(s.c) })
	delete(s.runner.subs, s)
}
