package mirror

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/ports"
	"github.com/atvirokodosprendimai/dbmirror/internal/metrics"
)

// Manager owns the connection to the secondary store. It connects only when
// asked to, never polls and never retries on its own: the state is whatever
// the last Connect observed. Write errors on collections do not change it.
type Manager struct {
	log            zerolog.Logger
	connectTimeout time.Duration
	opTimeout      time.Duration

	mu      sync.RWMutex
	state   domain.ConnectionState
	address string
	store   *store
	tables  map[string]bool
	attempt uint64
}

// ErrSuperseded is returned by a Connect whose result was discarded because
// a later Connect or Close ran while it was dialing.
var ErrSuperseded = errors.New("connection attempt superseded")

type Config struct {
	Log            zerolog.Logger
	ConnectTimeout time.Duration
	// OpTimeout bounds every collection call that arrives without a deadline.
	OpTimeout time.Duration
}

var _ ports.MirrorConnection = (*Manager)(nil)

func NewManager(cfg Config) *Manager {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 5 * time.Second
	}
	m := &Manager{
		log:            cfg.Log,
		connectTimeout: cfg.ConnectTimeout,
		opTimeout:      cfg.OpTimeout,
		state:          domain.StateUnconfigured,
		tables:         make(map[string]bool),
	}
	metrics.SetConnectionState(string(m.state))
	return m
}

// Connect makes one attempt to reach address. An empty address leaves the
// manager unconfigured and is not an error. A previous connection is closed
// first. The lock is not held while dialing, so State and Accessor answer
// immediately during the attempt. When a newer Connect or Close overtakes
// this one, its result is discarded.
func (m *Manager) Connect(ctx context.Context, address string) error {
	m.mu.Lock()
	m.attempt++
	attempt := m.attempt
	prev := m.detachLocked()
	m.address = address
	if address == "" {
		m.setStateLocked(domain.StateUnconfigured)
		m.mu.Unlock()
		m.closeStore(prev)
		m.log.Info().Msg("no secondary store configured, mirroring disabled")
		return nil
	}
	m.setStateLocked(domain.StateConnecting)
	m.mu.Unlock()
	m.closeStore(prev)

	ctx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	defer cancel()
	st, err := openStore(ctx, address, m.log)

	m.mu.Lock()
	if attempt != m.attempt {
		m.mu.Unlock()
		m.closeStore(st)
		return fmt.Errorf("connect secondary: %w", ErrSuperseded)
	}
	if err != nil {
		m.setStateLocked(domain.StateUnhealthy)
		m.mu.Unlock()
		m.log.Warn().Err(err).Msg("secondary store unreachable, mirroring paused until next connect")
		return fmt.Errorf("connect secondary: %w", err)
	}
	m.store = st
	m.setStateLocked(domain.StateHealthy)
	m.mu.Unlock()
	m.log.Info().Str("dialect", string(st.dialect)).Msg("secondary store connected")
	return nil
}

// Reconnect repeats Connect with the last configured address.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.mu.RLock()
	address := m.address
	m.mu.RUnlock()
	return m.Connect(ctx, address)
}

func (m *Manager) IsHealthy() bool {
	return m.State() == domain.StateHealthy
}

func (m *Manager) State() domain.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Accessor returns nil unless the manager is healthy.
func (m *Manager) Accessor(shape domain.Shape) ports.MirrorCollection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != domain.StateHealthy || m.store == nil {
		return nil
	}
	shape = shape.Normalize()
	st := m.store
	return &Collection{
		table:   shape.Collection,
		r:       st.r,
		w:       st.w,
		timeout: m.opTimeout,
		ensure:  func(ctx context.Context) error { return m.ensureTable(ctx, st, shape.Collection) },
	}
}

func (m *Manager) Close() error {
	m.mu.Lock()
	m.attempt++
	prev := m.detachLocked()
	m.setStateLocked(domain.StateUnconfigured)
	m.mu.Unlock()
	if prev == nil {
		return nil
	}
	return prev.close()
}

// ensureTable creates the table for a collection the first time it is used
// on a given connection.
func (m *Manager) ensureTable(ctx context.Context, st *store, table string) error {
	m.mu.RLock()
	ready := m.store == st && m.tables[table]
	m.mu.RUnlock()
	if ready {
		return nil
	}

	if err := st.w.WithContext(ctx).Table(table).AutoMigrate(&documentRow{}); err != nil {
		return fmt.Errorf("prepare %s: %w", table, err)
	}

	m.mu.Lock()
	if m.store == st {
		m.tables[table] = true
	}
	m.mu.Unlock()
	return nil
}

// detachLocked unhooks the current store without closing it.
func (m *Manager) detachLocked() *store {
	st := m.store
	m.store = nil
	m.tables = make(map[string]bool)
	return st
}

func (m *Manager) closeStore(st *store) {
	if st == nil {
		return
	}
	if err := st.close(); err != nil {
		m.log.Debug().Err(err).Msg("close previous secondary connection")
	}
}

func (m *Manager) setStateLocked(state domain.ConnectionState) {
	m.state = state
	metrics.SetConnectionState(string(state))
}
