package safety

import "strings"

// trustedDomains are well-known platforms exempt from local blocklist
// lookups. Community feeds false-positive on big hosting platforms often
// enough that a local match alone is not actionable; reputation APIs and
// heuristics still apply to these hosts.
var trustedDomains = []string{ //nolint: gochecknoglobals
	"google.com",
	"youtube.com",
	"wikipedia.org",
	"github.com",
	"gitlab.com",
	"microsoft.com",
	"apple.com",
	"amazon.com",
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"linkedin.com",
	"reddit.com",
	"stackoverflow.com",
	"mozilla.org",
	"cloudflare.com",
	"wordpress.com",
	"medium.com",
	"archive.org",
}

// isTrustedDomain reports whether the hostname is a trusted platform, by
// exact match or as a subdomain of one.
func isTrustedDomain(host string) bool {
	host = strings.ToLower(host)

	for _, trusted := range trustedDomains {
		if host == trusted || strings.HasSuffix(host, "."+trusted) {
			return true
		}
	}

	return false
}
