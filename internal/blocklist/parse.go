package blocklist

import (
	"net/url"
	"strings"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/urlutil"
)

// ParseLine extracts the blocklist entry from one feed line according to the
// source format. The second return is false for comments, blank lines, lines
// that do not fit the format and entries that normalize to localhost or a
// loopback address.
func ParseLine(line string, format Format) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return "", false
	}

	var candidate string

	switch format {
	case FormatHosts:
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return "", false
		}

		candidate = fields[1]
	case FormatURLHausText:
		u, err := url.Parse(line)
		if err != nil || u.Hostname() == "" {
			return "", false
		}

		candidate = u.Hostname()
	case FormatDomains:
		candidate = line
	default:
		return "", false
	}

	entry := NormalizeEntry(candidate)
	if entry == "" {
		return "", false
	}

	host := entry
	if i := strings.IndexAny(host, "/:"); i >= 0 {
		host = host[:i]
	}
	if urlutil.IsLocalHost(host) {
		return "", false
	}

	return entry, true
}

// NormalizeEntry canonicalizes a raw blocklist entry: lowercase, scheme
// prefix stripped, leading wildcard marker stripped, trailing slash stripped.
// The function is idempotent.
func NormalizeEntry(raw string) string {
	entry := strings.ToLower(strings.TrimSpace(raw))

	if i := strings.Index(entry, "://"); i >= 0 {
		entry = entry[i+len("://"):]
	}

	entry = strings.TrimPrefix(entry, "*.")
	entry = strings.TrimPrefix(entry, "*")
	entry = strings.TrimSuffix(entry, "/")

	return entry
}
