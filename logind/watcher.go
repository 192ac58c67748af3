// Package logind registers the suspend hook with the host's
// power-management subsystem. On Linux this means subscribing to
// systemd-logind's PrepareForSleep signal over D-Bus, the user-space
// stand-in for the source's platform_driver/dev_pm_ops registration
// (spec.md §4.7, "Configuration at boot").
package logind

import (
	"log"

	"github.com/godbus/dbus/v5"
)

const (
	loginInterface  = "org.freedesktop.login1.Manager"
	loginObjectPath = "/org/freedesktop/login1"
	prepareForSleep = loginInterface + ".PrepareForSleep"
)

// SleepWatcher subscribes to logind's PrepareForSleep signal and invokes
// a callback whenever the host is about to suspend. The signal also
// fires on resume (with its boolean argument false), which the watcher
// ignores — only the "about to suspend" edge matters to this module.
type SleepWatcher struct {
	conn    *dbus.Conn
	signals chan *dbus.Signal
	onSleep func()
	logger  *log.Logger
	done    chan struct{}
}

// NewSleepWatcher connects to the system bus and subscribes to
// PrepareForSleep. onSleep is invoked synchronously from the watcher's
// dispatch goroutine each time the host is about to suspend; it should
// not block for long, matching the urgency of a real suspend hook.
func NewSleepWatcher(onSleep func(), logger *log.Logger) (*SleepWatcher, error) {
	if logger == nil {
		logger = log.Default()
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, err
	}

	call := conn.BusObject().Call(
		"org.freedesktop.DBus.AddMatch",
		0,
		"type='signal',interface='"+loginInterface+"',member='PrepareForSleep',path='"+loginObjectPath+"'",
	)
	if call.Err != nil {
		conn.Close()
		return nil, call.Err
	}

	signals := make(chan *dbus.Signal, 8)
	conn.Signal(signals)

	w := &SleepWatcher{
		conn:    conn,
		signals: signals,
		onSleep: onSleep,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *SleepWatcher) run() {
	for {
		select {
		case sig, ok := <-w.signals:
			if !ok {
				return
			}
			if sig.Name != prepareForSleep || len(sig.Body) != 1 {
				continue
			}
			aboutToSleep, ok := sig.Body[0].(bool)
			if !ok {
				w.logger.Printf("logind: unexpected PrepareForSleep argument type %T", sig.Body[0])
				continue
			}
			if aboutToSleep {
				w.onSleep()
			}
		case <-w.done:
			return
		}
	}
}

// Close unsubscribes from logind and closes the underlying D-Bus
// connection.
func (w *SleepWatcher) Close() error {
	close(w.done)
	w.conn.RemoveSignal(w.signals)
	return w.conn.Close()
}
