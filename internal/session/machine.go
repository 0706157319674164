package session

import (
	"context"
	"strings"
	"sync"

	"github.com/hyperjump/hondana/internal/models"
	"github.com/hyperjump/hondana/internal/query"
	"go.uber.org/zap"
)

// Searcher runs one backend search. *search.Gateway implements it.
type Searcher interface {
	Execute(ctx context.Context, text string, ep models.Endpoint, params models.SearchParams) (*models.SearchResult, error)
}

// SettingsSource returns the current settings. It is read once per submission.
type SettingsSource interface {
	Settings() models.Settings
}

// SettingsFunc adapts a function to SettingsSource.
type SettingsFunc func() models.Settings

// Settings returns f().
func (f SettingsFunc) Settings() models.Settings { return f() }

// Machine owns the current Session and applies transitions to it.
//
// Every transition takes a new sequence number. A search result is applied only if
// no other transition was started while it was in flight, so a slow stale search
// never overwrites a newer one. notifyMu is held from install through notification,
// so observers receive snapshots in Seq order; it is always taken before mu.
type Machine struct {
	searcher  Searcher
	settings  SettingsSource
	logger    *zap.Logger
	notifyMu  sync.Mutex
	mu        sync.Mutex
	current   Session
	seq       uint64
	observers []func(Session)
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets a logger for transition tracing.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// New returns a machine in the Idle state.
func New(searcher Searcher, settings SettingsSource, opts ...Option) *Machine {
	m := &Machine{
		searcher: searcher,
		settings: settings,
		logger:   zap.NewNop(),
		current:  Session{Page: 1, State: Idle},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnChange registers fn to be called with each applied snapshot, in sequence order.
// fn runs on the goroutine that made the transition and may call Snapshot, but must
// not start a transition itself.
func (m *Machine) OnChange(fn func(Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Snapshot returns the current session.
func (m *Machine) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SubmitSearch searches text and shows the given page. Blank text clears the session
// without calling the backend. It blocks until the search resolves and returns the
// snapshot that is current afterwards.
func (m *Machine) SubmitSearch(ctx context.Context, text string, page int) Session {
	if page < 1 {
		page = 1
	}
	if strings.TrimSpace(text) == "" {
		return m.transition(func(seq uint64) Session {
			return Session{Page: 1, State: Idle, Seq: seq}
		})
	}

	settings := m.settings.Settings()
	loading := m.transition(func(seq uint64) Session {
		return Session{QueryText: text, Page: page, State: Loading, Seq: seq}
	})
	m.logger.Debug("search submitted",
		zap.String("query", text),
		zap.Int("page", page),
		zap.Uint64("seq", loading.Seq),
	)

	result, err := m.searcher.Execute(ctx, text, settings.Endpoint, settings.Params(page))

	var next Session
	switch {
	case err != nil:
		next = Session{QueryText: text, Page: 1, Err: err, State: Failed, Seq: loading.Seq}
	case result == nil || result.Total == 0:
		next = Session{QueryText: text, Page: 1, State: Empty, Seq: loading.Seq}
	default:
		next = Session{QueryText: text, Page: page, Result: result, State: Populated, Seq: loading.Seq}
	}

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.mu.Lock()
	if m.seq != loading.Seq {
		current := m.current
		m.mu.Unlock()
		m.logger.Debug("search superseded",
			zap.Uint64("seq", loading.Seq),
			zap.Uint64("latest", current.Seq),
		)
		return current
	}
	m.current = next
	observers := m.observers
	m.mu.Unlock()

	if err != nil {
		m.logger.Debug("search failed", zap.String("query", text), zap.Error(err))
	}
	notify(observers, next)
	return next
}

// ChangePage re-runs the current query for page. Nothing is cached between pages.
func (m *Machine) ChangePage(ctx context.Context, page int) Session {
	return m.SubmitSearch(ctx, m.Snapshot().QueryText, page)
}

// RefineWithTerm narrows the current query with "AND term" and searches page 1.
// A blank term leaves the session unchanged.
func (m *Machine) RefineWithTerm(ctx context.Context, term string) Session {
	term = strings.TrimSpace(term)
	if term == "" {
		return m.Snapshot()
	}
	return m.SubmitSearch(ctx, query.Refine(m.Snapshot().QueryText, term), 1)
}

// ClearError acknowledges a failure and returns to Idle, keeping the query text.
// It does nothing in any other state.
func (m *Machine) ClearError() Session {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.mu.Lock()
	if m.current.State != Failed {
		current := m.current
		m.mu.Unlock()
		return current
	}
	m.seq++
	next := Session{QueryText: m.current.QueryText, Page: 1, State: Idle, Seq: m.seq}
	m.current = next
	observers := m.observers
	m.mu.Unlock()
	notify(observers, next)
	return next
}

// Clear drops the query text and any result or error. Searches still in flight
// are discarded when they resolve.
func (m *Machine) Clear() Session {
	return m.transition(func(seq uint64) Session {
		return Session{Page: 1, State: Idle, Seq: seq}
	})
}

// transition takes the next sequence number, installs the snapshot built from it
// and notifies observers.
func (m *Machine) transition(build func(seq uint64) Session) Session {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.mu.Lock()
	m.seq++
	next := build(m.seq)
	m.current = next
	observers := m.observers
	m.mu.Unlock()
	notify(observers, next)
	return next
}

func notify(observers []func(Session), s Session) {
	for _, fn := range observers {
		fn(s)
	}
}
