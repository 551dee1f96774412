package blocklist

import (
	"net/url"
	"strings"
)

// index is the immutable lookup structure built by one refresh. A refresh
// builds a fresh index and the aggregator swaps it in atomically, so readers
// always observe either the previous or the fully rebuilt generation.
type index struct {
	// entries maps a normalized entry (domain, domain:port or
	// domain:port/path) to the names of the sources that listed it.
	entries map[string][]string
	// pathHosts maps the host[:port] prefix of every entry that carries a
	// path component to its sources. A differently-pathed URL on the same
	// compromised host still matches through this table.
	pathHosts map[string][]string
}

func newIndex() *index {
	return &index{
		entries:   make(map[string][]string),
		pathHosts: make(map[string][]string),
	}
}

// add records a normalized entry for a source, deduplicating the source name
// per entry so a feed listing the same domain twice contributes one mention.
func (ix *index) add(entry, source string) {
	ix.entries[entry] = appendSource(ix.entries[entry], source)

	if i := strings.Index(entry, "/"); i > 0 {
		ix.pathHosts[entry[:i]] = appendSource(ix.pathHosts[entry[:i]], source)
	}
}

// lookup resolves a URL against the index. Match order: the full normalized
// URL, then the bare hostname, then the host[:port] path-prefix table. The
// first hit wins; an empty result means no source lists the URL.
func (ix *index) lookup(u *url.URL) []string {
	if sources, ok := ix.entries[NormalizeEntry(u.String())]; ok {
		return sources
	}

	if sources, ok := ix.entries[strings.ToLower(u.Hostname())]; ok {
		return sources
	}

	if sources, ok := ix.pathHosts[strings.ToLower(u.Host)]; ok {
		return sources
	}

	return nil
}

func (ix *index) size() int {
	return len(ix.entries)
}

func appendSource(sources []string, source string) []string {
	for _, s := range sources {
		if s == source {
			return sources
		}
	}

	return append(sources, source)
}
