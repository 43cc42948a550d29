package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
)

// DriftMonitor runs the comparator on a fixed interval while the service is
// up and keeps the last report. It only observes; resync stays manual.
type DriftMonitor struct {
	comparator *DriftComparator
	interval   time.Duration
	log        zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	lastMu sync.RWMutex
	last   domain.DriftReport
	lastAt time.Time

	runsTotal       atomic.Int64
	mismatchedTotal atomic.Int64
}

type DriftMonitorMetrics struct {
	RunsTotal       int64
	MismatchedTotal int64
}

func NewDriftMonitor(comparator *DriftComparator, interval time.Duration, log zerolog.Logger) *DriftMonitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &DriftMonitor{comparator: comparator, interval: interval, log: log}
}

func (m *DriftMonitor) Start(parent context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	m.cancel = cancel
	m.wg.Add(1)
	go m.loop(ctx)
}

func (m *DriftMonitor) Close() error {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	return nil
}

func (m *DriftMonitor) loop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		m.check(ctx)
	}
}

func (m *DriftMonitor) check(ctx context.Context) domain.DriftReport {
	report := m.comparator.Compare(ctx)
	m.runsTotal.Add(1)
	if !report.InSync() {
		m.mismatchedTotal.Add(1)
		m.log.Warn().Int("mismatched_types", len(report.Mismatches())).Msg("secondary store drifted from primary")
	}

	m.lastMu.Lock()
	m.last = report
	m.lastAt = time.Now().UTC()
	m.lastMu.Unlock()
	return report
}

// Last returns the most recent report and when it was taken. The time is
// zero until the first check has run.
func (m *DriftMonitor) Last() (domain.DriftReport, time.Time) {
	m.lastMu.RLock()
	defer m.lastMu.RUnlock()
	return m.last, m.lastAt
}

// CheckNow runs one comparison outside the schedule.
func (m *DriftMonitor) CheckNow(ctx context.Context) domain.DriftReport {
	return m.check(ctx)
}

func (m *DriftMonitor) Metrics() DriftMonitorMetrics {
	return DriftMonitorMetrics{
		RunsTotal:       m.runsTotal.Load(),
		MismatchedTotal: m.mismatchedTotal.Load(),
	}
}
