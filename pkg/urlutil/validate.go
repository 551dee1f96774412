// Package urlutil validates and canonicalizes URLs before any network
// access. Validation is a pure function: it rejects dangerous schemes,
// private or loopback hosts and embedded credentials, and recognizes
// privileged internal-browser schemes that bypass scanning entirely.
package urlutil

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/serrors"
)

// deniedSchemes can execute code or read local files; URLs using them are
// rejected outright and the rejection is cached as a terminal verdict.
var deniedSchemes = map[string]struct{}{ //nolint: gochecknoglobals
	"file":       {},
	"javascript": {},
	"data":       {},
	"vbscript":   {},
}

// privilegedSchemes denote internal application pages. They are exempt from
// network scanning and unconditionally treated as live/safe.
var privilegedSchemes = map[string]struct{}{ //nolint: gochecknoglobals
	"about":            {},
	"chrome":           {},
	"chrome-extension": {},
	"edge":             {},
	"brave":            {},
	"moz-extension":    {},
}

// Validated is the outcome of a successful validation. Privileged URLs skip
// every further network and safety check.
type Validated struct {
	// URL is the parsed input.
	URL *url.URL
	// Normalized is the canonical string form used as the cache key.
	Normalized string
	// Privileged is true for internal-browser schemes.
	Privileged bool
}

// Validate normalizes and vets a raw URL string. It performs no I/O.
//
// Rejections (all serrors.ErrValidation):
//   - empty or unparsable input
//   - schemes on the deny-list (file, javascript, data, vbscript)
//   - any scheme other than http/https that is not privileged
//   - hostnames resolving syntactically to localhost, loopback, private or
//     link-local addresses (IPv4 and IPv6)
//   - embedded credentials (user:pass@host)
func Validate(raw string) (*Validated, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, serrors.With(serrors.ErrValidation, "empty URL")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrValidation, err, "could not parse URL")
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		return nil, serrors.With(serrors.ErrValidation, "missing scheme")
	}
	if _, denied := deniedSchemes[scheme]; denied {
		return nil, serrors.With(serrors.ErrValidation, "scheme %q is not allowed", scheme)
	}
	if _, ok := privilegedSchemes[scheme]; ok {
		return &Validated{URL: u, Normalized: raw, Privileged: true}, nil
	}

	if scheme != "http" && scheme != "https" {
		return nil, serrors.With(serrors.ErrValidation, "unsupported scheme %q", scheme)
	}
	if u.User != nil {
		return nil, serrors.With(serrors.ErrValidation, "URL carries embedded credentials")
	}
	host := u.Hostname()
	if host == "" {
		return nil, serrors.With(serrors.ErrValidation, "missing host")
	}
	if IsLocalHost(host) {
		return nil, serrors.With(serrors.ErrValidation, "host %q is private or loopback", host)
	}

	normalized, err := NormalizeURL(raw)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrValidation, err, "could not normalize URL")
	}

	return &Validated{URL: u, Normalized: normalized}, nil
}

// IsLocalHost reports whether the hostname is localhost or an IP literal in
// private, loopback, link-local or unspecified ranges. Hostnames that merely
// resolve to such addresses via DNS are not detected; this is a syntactic
// check only.
func IsLocalHost(host string) bool {
	h := strings.ToLower(strings.Trim(host, "[]"))
	if h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return true
	}

	addr, err := netip.ParseAddr(h)
	if err != nil {
		return false
	}

	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified()
}
