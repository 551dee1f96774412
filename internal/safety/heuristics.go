package safety

import (
	"net/netip"
	"strings"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/domain"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/urlutil"
)

// shortenerDomains hide the real destination behind a redirect, which defeats
// every other check here, so their presence alone is worth a warning.
var shortenerDomains = []string{ //nolint: gochecknoglobals
	"bit.ly",
	"tinyurl.com",
	"goo.gl",
	"t.co",
	"ow.ly",
	"is.gd",
	"buff.ly",
	"rebrand.ly",
	"cutt.ly",
	"shorturl.at",
	"tiny.cc",
	"rb.gy",
	"t.ly",
}

// suspiciousTLDs see disproportionate abuse, mostly free or near-free zones.
var suspiciousTLDs = []string{ //nolint: gochecknoglobals
	".tk",
	".ml",
	".ga",
	".cf",
	".gq",
	".top",
	".click",
	".link",
	".loan",
	".download",
	".racing",
	".zip",
	".mov",
}

// finding is one heuristic hit. Informational findings contribute a source
// string without escalating the verdict.
type finding struct {
	status domain.SafetyStatus
	source string
}

// heuristics runs the local suspicious-pattern checks. They always run, even
// when the blocklist or a reputation API already flagged the URL, so the
// sources list tells the whole story. The link result, when available,
// supplies the redirect trace that words the HTTP-only finding without a
// second network request.
func heuristics(v *urlutil.Validated, link *domain.LinkResult) []finding {
	var findings []finding

	host := strings.ToLower(v.URL.Hostname())

	if strings.EqualFold(v.URL.Scheme, "http") {
		if link != nil && strings.HasPrefix(strings.ToLower(link.RedirectedTo), "https://") {
			findings = append(findings, finding{
				status: domain.SafetyStatusSafe,
				source: "HTTP Only (redirects to HTTPS)",
			})
		} else {
			findings = append(findings, finding{
				status: domain.SafetyStatusWarning,
				source: "HTTP Only",
			})
		}
	}

	for _, shortener := range shortenerDomains {
		if host == shortener || strings.HasSuffix(host, "."+shortener) {
			findings = append(findings, finding{
				status: domain.SafetyStatusWarning,
				source: "URL Shortener (" + shortener + ")",
			})

			break
		}
	}

	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(host, tld) {
			findings = append(findings, finding{
				status: domain.SafetyStatusWarning,
				source: "Suspicious TLD (" + tld + ")",
			})

			break
		}
	}

	if _, err := netip.ParseAddr(v.URL.Hostname()); err == nil {
		findings = append(findings, finding{
			status: domain.SafetyStatusWarning,
			source: "IP Address URL",
		})
	}

	return findings
}
