package linkcheck

import "strings"

// parkedDomains are registrar, marketplace and parking-service hosts. A
// bookmark whose hostname contains one of these, either directly or as the
// final redirect destination, is classified parked.
var parkedDomains = []string{ //nolint: gochecknoglobals
	"sedoparking.com",
	"sedo.com",
	"parkingcrew.net",
	"bodis.com",
	"dan.com",
	"afternic.com",
	"hugedomains.com",
	"undeveloped.com",
	"domainmarket.com",
	"buydomains.com",
	"parklogic.com",
	"above.com",
	"skenzo.com",
	"dopa.com",
	"namebright.com",
	"smartname.com",
	"cashparking.com",
	"parkingpage.namecheap.com",
	"domainnamesales.com",
	"uniregistry.com",
	"squadhelp.com",
	"dynadot.com",
}

// parkingExempt are static-hosting platforms whose hostnames would otherwise
// trip the substring match above (or share registrar infrastructure). They
// are never classified parked by hostname alone.
var parkingExempt = []string{ //nolint: gochecknoglobals
	"github.io",
	"gitlab.io",
	"netlify.app",
	"vercel.app",
	"pages.dev",
	"web.app",
	"firebaseapp.com",
	"surge.sh",
	"neocities.org",
	"wordpress.com",
}

// isParkedHost reports whether a hostname belongs to a parking service and is
// not on the exempt list. Matching is substring-based: parking services serve
// placeholders from many subdomains.
func isParkedHost(host string) bool {
	host = strings.ToLower(host)

	for _, exempt := range parkingExempt {
		if strings.Contains(host, exempt) {
			return false
		}
	}

	for _, parked := range parkedDomains {
		if strings.Contains(host, parked) {
			return true
		}
	}

	return false
}
