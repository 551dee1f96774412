package safety

import (
	"net/url"
	"testing"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/domain"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/urlutil"
)

func mustValidated(t *testing.T, raw string) *urlutil.Validated {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}

	return &urlutil.Validated{URL: u, Normalized: raw}
}

func TestIsTrustedDomain(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"github.com", true},
		{"gist.github.com", true},
		{"GITHUB.COM", true},
		{"github.com.evil.example", false},
		{"notgithub.com", false},
		{"evil.example", false},
	}

	for _, tt := range tests {
		if got := isTrustedDomain(tt.host); got != tt.want {
			t.Errorf("isTrustedDomain(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestHeuristics(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		link        *domain.LinkResult
		wantSources []string
		wantStatus  domain.SafetyStatus
	}{
		{
			name:        "plain https has no findings",
			url:         "https://example.com/",
			wantStatus:  domain.SafetyStatusSafe,
			wantSources: nil,
		},
		{
			name:        "http without https redirect warns",
			url:         "http://example.com/",
			wantStatus:  domain.SafetyStatusWarning,
			wantSources: []string{"HTTP Only"},
		},
		{
			name:        "http redirecting to https is informational",
			url:         "http://example.com/",
			link:        &domain.LinkResult{Status: domain.LinkStatusLive, RedirectedTo: "https://example.com/"},
			wantStatus:  domain.SafetyStatusSafe,
			wantSources: []string{"HTTP Only (redirects to HTTPS)"},
		},
		{
			name:        "shortener warns",
			url:         "https://bit.ly/abc",
			wantStatus:  domain.SafetyStatusWarning,
			wantSources: []string{"URL Shortener (bit.ly)"},
		},
		{
			name:        "suspicious tld warns",
			url:         "https://free-prizes.tk/",
			wantStatus:  domain.SafetyStatusWarning,
			wantSources: []string{"Suspicious TLD (.tk)"},
		},
		{
			name:        "bare ipv4 host warns",
			url:         "https://8.8.8.8/admin",
			wantStatus:  domain.SafetyStatusWarning,
			wantSources: []string{"IP Address URL"},
		},
		{
			name:        "bare ipv6 host warns",
			url:         "https://[2001:db8::1]:8443/",
			wantStatus:  domain.SafetyStatusWarning,
			wantSources: []string{"IP Address URL"},
		},
		{
			name:       "multiple findings stack",
			url:        "http://1.2.3.4/",
			wantStatus: domain.SafetyStatusWarning,
			wantSources: []string{
				"HTTP Only",
				"IP Address URL",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := heuristics(mustValidated(t, tt.url), tt.link)

			status := domain.SafetyStatusSafe
			var sources []string
			for _, f := range findings {
				status = status.Escalate(f.status)
				sources = append(sources, f.source)
			}

			if status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status, tt.wantStatus)
			}
			if len(sources) != len(tt.wantSources) {
				t.Fatalf("sources = %v, want %v", sources, tt.wantSources)
			}
			for i := range sources {
				if sources[i] != tt.wantSources[i] {
					t.Errorf("sources[%d] = %q, want %q", i, sources[i], tt.wantSources[i])
				}
			}
		})
	}
}
