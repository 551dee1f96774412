package urlutil

import (
	"errors"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/domain"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/serrors"
)

// RejectionVerdicts converts a validation rejection into the terminal
// verdicts callers cache: the link is dead and the URL is unsafe, with the
// rejection reason recorded as a safety source. Rejected URLs never reach the
// network, so these verdicts are final until the cache entry expires.
func RejectionVerdicts(err error) (domain.LinkResult, domain.SafetyResult) {
	reason := "rejected"

	var serr *serrors.Error
	if errors.As(err, &serr) {
		reason = serr.Message()
	}

	link := domain.LinkResult{Status: domain.LinkStatusDead}
	saf := domain.SafetyResult{
		Status:  domain.SafetyStatusUnsafe,
		Sources: []string{"Invalid URL: " + reason},
	}

	return link, saf
}
