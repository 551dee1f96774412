package domain

// LinkStatus is the reachability classification of a single URL.
type LinkStatus string

const (
	// LinkStatusLive indicates the URL responded (or timed out, which is
	// treated as a slow server rather than a dead link).
	LinkStatusLive LinkStatus = "live"
	// LinkStatusDead indicates the URL returned 404/410/451 or failed both
	// the HEAD probe and the GET retry.
	LinkStatusDead LinkStatus = "dead"
	// LinkStatusParked indicates the URL's host, or the final redirect
	// destination, belongs to a known domain-parking service.
	LinkStatusParked LinkStatus = "parked"
	// LinkStatusChecking marks a probe in flight. It is transient and never
	// cached.
	LinkStatusChecking LinkStatus = "checking"
	// LinkStatusUnknown means the URL has not been checked yet.
	LinkStatusUnknown LinkStatus = "unknown"
)

// Terminal reports whether the status is a final probe outcome, as opposed to
// the transient checking/unknown states.
func (s LinkStatus) Terminal() bool {
	switch s {
	case LinkStatusLive, LinkStatusDead, LinkStatusParked:
		return true
	case LinkStatusChecking, LinkStatusUnknown:
		return false
	}

	return false
}

// LinkResult is the cached outcome of a link check. RedirectedTo records the
// final destination of the probe's redirect chain when it differs from the
// origin; the safety heuristics reuse it to word HTTP-only findings without
// issuing a second request.
type LinkResult struct {
	Status       LinkStatus `json:"status"`
	RedirectedTo string     `json:"redirectedTo,omitempty"`
}
