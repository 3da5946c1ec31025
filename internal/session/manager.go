// Package session keeps one mounted widget per visitor for the preview
// server. A page load replaces the visitor's widget; events reuse it.
package session

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/stravella/chatwidget/internal/widget"
	"github.com/stravella/chatwidget/internal/widgetconfig"
)

// ErrNoSession is returned by Lookup when the visitor has no widget.
var ErrNoSession = errors.New("no widget for visitor")

// Factory mounts a new widget for a visitor. page carries config the page
// itself supplied, such as data attributes on the request.
type Factory func(visitorID string, page ...widgetconfig.Overrides) (*widget.Widget, error)

// Gauge is told the live session count after every change.
type Gauge interface {
	SetSessions(n int)
}

// Manager maps visitor ids to their widget. Different visitors run in
// parallel; the widget itself serializes its own exchanges.
type Manager struct {
	factory Factory
	gauge   Gauge

	mu       sync.Mutex
	sessions map[string]*visitorSession
	now      func() time.Time
}

type visitorSession struct {
	widget   *widget.Widget
	lastUsed time.Time
}

func NewManager(factory Factory) *Manager {
	return &Manager{
		factory:  factory,
		sessions: make(map[string]*visitorSession),
		now:      time.Now,
	}
}

// WithGauge reports the session count to g.
func (m *Manager) WithGauge(g Gauge) *Manager {
	m.gauge = g
	return m
}

// Get returns the visitor's widget, mounting one if there is none yet.
func (m *Manager) Get(visitorID string) (*widget.Widget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[visitorID]; ok {
		s.lastUsed = m.now()
		return s.widget, nil
	}
	return m.mountLocked(visitorID)
}

// Lookup returns the visitor's widget without mounting one.
func (m *Manager) Lookup(visitorID string) (*widget.Widget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[visitorID]
	if !ok {
		return nil, errors.Wrapf(ErrNoSession, "visitor %s", visitorID)
	}
	s.lastUsed = m.now()
	return s.widget, nil
}

// Reload mounts a fresh widget for the visitor, as a page load does. The
// thread id survives through storage; the transcript does not.
func (m *Manager) Reload(visitorID string, page ...widgetconfig.Overrides) (*widget.Widget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mountLocked(visitorID, page...)
}

func (m *Manager) mountLocked(visitorID string, page ...widgetconfig.Overrides) (*widget.Widget, error) {
	w, err := m.factory(visitorID, page...)
	if err != nil {
		return nil, errors.Wrapf(err, "mounting widget for visitor %s", visitorID)
	}
	m.sessions[visitorID] = &visitorSession{widget: w, lastUsed: m.now()}
	m.reportLocked()
	return w, nil
}

// Cleanup drops widgets not used within maxAge and returns how many went.
func (m *Manager) Cleanup(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.lastUsed) > maxAge {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.reportLocked()
	}
	return removed
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) reportLocked() {
	if m.gauge != nil {
		m.gauge.SetSessions(len(m.sessions))
	}
}
