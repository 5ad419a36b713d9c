// Package monitor runs a cancellable periodic check of one channel's live
// status and drives a presence sink on material state changes.
package monitor

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"kickwatch/pkg/presence"
	"kickwatch/pkg/status"
)

// StatusFetcher is the slice of the fetcher the monitor needs.
type StatusFetcher interface {
	Fetch(channel string) (*status.Record, error)
}

// Callbacks are the observer hooks a host registers on a Monitor. Any of
// them may be nil. For a given check they fire in a fixed order: OnError
// (when the check failed), then the sink update and OnMessage (only on a
// state change), then OnStatus always.
type Callbacks struct {
	OnStatus  func(*status.Record)
	OnMessage func(string)
	OnError   func(string)
	OnStarted func()
	OnStopped func()
}

// Monitor polls one channel on an interval. Checks are single-flight: at
// most one periodic task runs per Monitor, and Start while running restarts
// through an implicit Stop.
type Monitor struct {
	Fetcher   StatusFetcher
	Sink      presence.Sink
	Callbacks Callbacks

	// Deliver, when set, marshals every observer callback onto a
	// host-chosen context (a UI loop, for instance). It must run callbacks
	// in submission order. Nil delivers synchronously on the checking
	// goroutine.
	Deliver func(fn func())

	mu       sync.Mutex
	slug     string
	interval time.Duration
	last     *status.Record
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New builds a Monitor around a fetcher and a sink. A nil sink is replaced
// with a no-op one.
func New(fetcher StatusFetcher, sink presence.Sink) *Monitor {
	if sink == nil {
		sink = presence.NopSink{}
	}
	return &Monitor{Fetcher: fetcher, Sink: sink}
}

// Running reports whether a periodic task is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCh != nil
}

// Start begins monitoring a channel. A blank identifier fails immediately.
// When the normalized identifier differs from the previously tracked one,
// the last-seen record is discarded and the sink cleared before the first
// check; restarting the same identifier (any casing) keeps that state. One
// check runs synchronously before Start returns.
func (m *Monitor) Start(channel string, interval time.Duration) error {
	slug, err := status.Normalize(channel)
	if err != nil {
		return err
	}

	if m.Running() {
		m.Stop()
	}

	m.mu.Lock()
	newSubject := m.slug != slug
	if newSubject {
		// New subject: previous state must not leak into change detection.
		m.last = nil
		m.slug = slug
	}
	m.interval = interval
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	stopCh, doneCh := m.stopCh, m.doneCh
	m.mu.Unlock()

	if newSubject {
		m.Sink.Clear()
	}

	m.emitStarted()
	m.emitMessage(fmt.Sprintf("Started monitoring %s every %ds", slug, int(interval.Seconds())))

	m.check()
	go m.run(stopCh, doneCh)
	return nil
}

// Stop cancels the periodic task, waits for it to exit, and drains the sink
// to offline. A no-op when not running; safe to call repeatedly.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stopCh, doneCh := m.stopCh, m.doneCh
	m.stopCh, m.doneCh = nil, nil
	m.mu.Unlock()

	if stopCh == nil {
		return
	}

	close(stopCh)
	<-doneCh

	m.Sink.ShowOffline("Monitoring stopped")
	m.emitStopped()
	m.emitMessage("Monitoring stopped")
}

func (m *Monitor) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	m.mu.Lock()
	interval := m.interval
	m.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Re-check cancellation so a stop raced with a tick never
			// starts another check.
			select {
			case <-stopCh:
				return
			default:
			}
			m.check()
		case <-stopCh:
			return
		}
	}
}

// check performs one fetch-compare-notify cycle. Fetch failures never escape:
// they degrade to a synthetic offline record plus an OnError event, and the
// loop stays on schedule.
func (m *Monitor) check() {
	m.mu.Lock()
	slug := m.slug
	last := m.last
	m.mu.Unlock()

	rec, err := m.Fetcher.Fetch(slug)
	if err != nil {
		m.emitError(err.Error())
		rec = status.Offline(slug)
	}
	if rec == nil {
		rec = status.Offline(slug)
	}

	if changed(last, rec) {
		if rec.Live {
			m.Sink.ShowActive(rec.Channel, rec.Title, rec.Category, rec.URL)
			m.emitMessage("Status updated: Online")
		} else {
			m.Sink.ShowOffline("Offline")
			m.emitMessage("Status updated: Offline")
		}
	}

	m.emitStatus(rec)

	m.mu.Lock()
	m.last = rec
	m.mu.Unlock()
}

// changed compares live flag, title and category; the string fields are
// case-insensitive. No previous record counts as a change.
func changed(last, rec *status.Record) bool {
	if last == nil {
		return true
	}
	return last.Live != rec.Live ||
		!strings.EqualFold(last.Title, rec.Title) ||
		!strings.EqualFold(last.Category, rec.Category)
}

func (m *Monitor) dispatch(fn func()) {
	if m.Deliver != nil {
		m.Deliver(fn)
		return
	}
	fn()
}

func (m *Monitor) emitStatus(rec *status.Record) {
	if cb := m.Callbacks.OnStatus; cb != nil {
		m.dispatch(func() { cb(rec) })
	}
}

func (m *Monitor) emitMessage(msg string) {
	if cb := m.Callbacks.OnMessage; cb != nil {
		m.dispatch(func() { cb(msg) })
	}
}

func (m *Monitor) emitError(msg string) {
	if cb := m.Callbacks.OnError; cb != nil {
		m.dispatch(func() { cb(msg) })
	}
}

func (m *Monitor) emitStarted() {
	if cb := m.Callbacks.OnStarted; cb != nil {
		m.dispatch(func() { cb() })
	}
}

func (m *Monitor) emitStopped() {
	if cb := m.Callbacks.OnStopped; cb != nil {
		m.dispatch(func() { cb() })
	}
}
