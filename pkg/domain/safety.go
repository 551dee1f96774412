package domain

// SafetyStatus is the security classification of a URL.
type SafetyStatus string

const (
	SafetyStatusSafe    SafetyStatus = "safe"
	SafetyStatusWarning SafetyStatus = "warning"
	SafetyStatusUnsafe  SafetyStatus = "unsafe"
	SafetyStatusUnknown SafetyStatus = "unknown"
)

// severityRank orders statuses for escalation. Unknown carries no severity:
// a detector that could not run never influences the final verdict.
func severityRank(s SafetyStatus) int {
	switch s {
	case SafetyStatusUnsafe:
		return 3
	case SafetyStatusWarning:
		return 2
	case SafetyStatusSafe:
		return 1
	case SafetyStatusUnknown:
		return 0
	}

	return 0
}

// Escalate returns the worse of the two statuses. A worse verdict from any
// detection layer always overrides a better one, never the reverse.
func (s SafetyStatus) Escalate(other SafetyStatus) SafetyStatus {
	if severityRank(other) > severityRank(s) {
		return other
	}

	return s
}

// SafetyResult is the aggregated verdict for one URL together with the
// ordered list of detectors that contributed to it.
//
// Invariant: Sources is empty only when Status is safe with no heuristic
// hits; an unsafe verdict always names at least one source.
type SafetyResult struct {
	Status  SafetyStatus `json:"status"`
	Sources []string     `json:"sources"`
}

// AddSource appends a source attribution, skipping duplicates while keeping
// first-seen order.
func (r *SafetyResult) AddSource(name string) {
	for _, s := range r.Sources {
		if s == name {
			return
		}
	}
	r.Sources = append(r.Sources, name)
}
