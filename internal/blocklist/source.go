package blocklist

// Format selects the line-parsing strategy for a threat feed.
type Format string

const (
	// FormatHosts is the /etc/hosts style: "0.0.0.0 bad.example" per line,
	// the second whitespace-separated token is the entry.
	FormatHosts Format = "hosts"
	// FormatDomains is one bare domain per line, possibly wildcard-prefixed.
	FormatDomains Format = "domains"
	// FormatURLHausText is one full URL per line; only the hostname is kept.
	FormatURLHausText Format = "urlhaus_text"
)

// Source describes one downloadable threat feed. The set of feeds is
// configuration; the parsing contract per Format is not.
type Source struct {
	Name   string `yaml:"name" env:"NAME"`
	URL    string `yaml:"url" env:"URL"`
	Format Format `yaml:"format" env:"FORMAT"`
}

// DefaultSources covers all three feed formats out of the box.
func DefaultSources() []Source {
	return []Source{
		{
			Name:   "URLhaus",
			URL:    "https://urlhaus.abuse.ch/downloads/text_online/",
			Format: FormatURLHausText,
		},
		{
			Name:   "StevenBlack Hosts",
			URL:    "https://raw.githubusercontent.com/StevenBlack/hosts/master/hosts",
			Format: FormatHosts,
		},
		{
			Name:   "Phishing Army",
			URL:    "https://phishing.army/download/phishing_army_blocklist.txt",
			Format: FormatDomains,
		},
	}
}
