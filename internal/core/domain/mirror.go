package domain

// ConnectionState is the last observed state of the secondary connection.
// It reflects only the most recent connection attempt and is never polled.
type ConnectionState string

const (
	StateUnconfigured ConnectionState = "unconfigured"
	StateConnecting   ConnectionState = "connecting"
	StateHealthy      ConnectionState = "healthy"
	StateUnhealthy    ConnectionState = "unhealthy"
)

// Outcome reports what a single propagation attempt did. Callers are not
// required to look at it.
type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeSkippedNoSecondary Outcome = "skipped_no_secondary"
	OutcomeSkippedNoShape     Outcome = "skipped_no_shape"
	OutcomeFailed             Outcome = "failed"
)

// SyncTally is the per-type result of one bulk resync run.
type SyncTally struct {
	Type       string
	LocalCount int64
	LiveCount  int64
	Synced     int
	Skipped    int
	Errored    int
	Err        string
}

// Converged reports whether the type ended the run without errors and with
// matching counts.
func (t SyncTally) Converged() bool {
	return t.Err == "" && t.Errored == 0 && t.LocalCount == t.LiveCount
}

type ResyncReport struct {
	Tallies []SyncTally
}

func (r ResyncReport) Totals() SyncTally {
	total := SyncTally{Type: "TOTAL"}
	for _, t := range r.Tallies {
		total.LocalCount += t.LocalCount
		total.LiveCount += t.LiveCount
		total.Synced += t.Synced
		total.Skipped += t.Skipped
		total.Errored += t.Errored
	}
	return total
}

func (r ResyncReport) Failed() bool {
	for _, t := range r.Tallies {
		if !t.Converged() {
			return true
		}
	}
	return false
}

// DriftEntry compares the record counts of one type across both stores.
type DriftEntry struct {
	Type  string
	Local int64
	Live  int64
	Match bool
	Err   string
}

type DriftReport struct {
	Entries []DriftEntry
}

func (r DriftReport) InSync() bool {
	for _, e := range r.Entries {
		if !e.Match {
			return false
		}
	}
	return true
}

func (r DriftReport) Mismatches() []DriftEntry {
	var out []DriftEntry
	for _, e := range r.Entries {
		if !e.Match {
			out = append(out, e)
		}
	}
	return out
}
