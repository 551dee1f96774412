// Package reputation defines the interface and data types for external URL
// reputation providers consulted by the safety evaluator.
package reputation

import (
	"context"
	"time"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/domain"
)

// RateLimitStatus describes the current API rate-limit status returned by a
// reputation provider.
type RateLimitStatus struct {
	Limit     int       // Limit is the total number of allowed requests in the current window.
	Remaining int       // Remaining indicates how many requests are left in the current window.
	ResetAt   time.Time // ResetAt is when the rate-limit window resets.
}

// Verdict is one provider's opinion of a URL. Source is the human-readable
// finding appended to the evaluation's sources list; it is empty when the
// provider found nothing.
type Verdict struct {
	Status domain.SafetyStatus
	Source string
}

// Client is the abstraction for reputation providers. A provider that signals
// throttling must return an error of kind serrors.ErrRateLimited so the
// evaluator can disable it for the remainder of the current scan.
//
//go:generate mockgen -package mockreputation -source=interface.go -destination=mock/mockreputation.go *
type Client interface {
	// Name identifies the provider in logs and disabled-detector bookkeeping.
	Name() string
	// Check queries the provider for a verdict on the URL. The rate-limit
	// status is informational and valid even alongside an error.
	Check(ctx context.Context, url string) (Verdict, RateLimitStatus, error)
}
