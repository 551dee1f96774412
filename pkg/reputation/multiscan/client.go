// Package multiscan provides a reputation.Client backed by a multi-engine
// analysis API of the VirusTotal v3 family. The verdict is derived from the
// number of engines flagging the URL malicious or suspicious.
package multiscan

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/domain"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/reputation"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/serrors"
)

// DefaultBaseURL is the VirusTotal API root.
const DefaultBaseURL = "https://www.virustotal.com"

// Escalation thresholds. Two independent engines agreeing on malicious is
// treated as confirmation; a single malicious or two suspicious flags only
// warrant a warning.
const (
	unsafeMaliciousCount   = 2
	warningMaliciousCount  = 1
	warningSuspiciousCount = 2
)

// Options configures a Client.
type Options struct {
	// Name identifies this instance in sources and logs, e.g. "VirusTotal".
	Name string
	// BaseURL is the API root. Defaults to DefaultBaseURL.
	BaseURL string
	// APIKey is sent in the x-apikey header.
	APIKey string
	// Client performs the HTTP requests. Defaults to http.DefaultClient.
	Client *http.Client
}

// Client talks to the multi-engine analysis REST API and fulfills the
// reputation.Client interface. It is safe for concurrent use.
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New constructs a Client.
func New(options Options) *Client {
	if options.BaseURL == "" {
		options.BaseURL = DefaultBaseURL
	}
	if options.Client == nil {
		options.Client = http.DefaultClient
	}

	return &Client{
		name:       options.Name,
		baseURL:    strings.TrimSuffix(options.BaseURL, "/"),
		apiKey:     options.APIKey,
		httpClient: options.Client,
	}
}

// Name implements reputation.Client.
func (c *Client) Name() string { return c.name }

// ParseRateLimit extracts rate-limit information from the HTTP response
// headers. Absent headers yield zero values rather than an error; providers
// only send them when a quota applies.
func ParseRateLimit(h http.Header) reputation.RateLimitStatus {
	atoi := func(s string) int {
		if s == "" {
			return 0
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}

		return 0
	}

	rl := reputation.RateLimitStatus{
		Limit:     atoi(h.Get("X-Rate-Limit-Limit")),
		Remaining: atoi(h.Get("X-Rate-Limit-Remaining")),
	}
	if resetAt, err := time.Parse(time.RFC3339Nano, h.Get("X-Rate-Limit-Reset")); err == nil {
		rl.ResetAt = resetAt
	}

	return rl
}

// Check fetches the latest multi-engine analysis for the URL. The URL is
// identified by its unpadded base64url encoding per the v3 API convention.
// A URL the service has never analyzed yields a safe verdict with no source.
func (c *Client) Check(ctx context.Context, url string) (reputation.Verdict, reputation.RateLimitStatus, error) {
	// https://docs.virustotal.com/reference/url-info
	id := base64.RawURLEncoding.EncodeToString([]byte(url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v3/urls/"+id, nil)
	if err != nil {
		return reputation.Verdict{}, reputation.RateLimitStatus{}, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("x-apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return reputation.Verdict{}, reputation.RateLimitStatus{}, serrors.Wrap(serrors.ErrNetwork, err, "could not send request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	rl := ParseRateLimit(resp.Header)

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return reputation.Verdict{}, rl, fmt.Errorf("could not read response body: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return reputation.Verdict{},
			rl,
			serrors.With(serrors.ErrRateLimited, "rate limited: %s", strings.TrimSpace(string(b)))
	}
	if resp.StatusCode == http.StatusNotFound {
		// never analyzed: no opinion either way
		return reputation.Verdict{Status: domain.SafetyStatusSafe}, rl, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return reputation.Verdict{}, rl, fmt.Errorf("analysis lookup failed: %s", strings.TrimSpace(string(b)))
	}

	var analysis struct {
		Data struct {
			Attributes struct {
				LastAnalysisStats struct {
					Malicious  int `json:"malicious"`
					Suspicious int `json:"suspicious"`
					Harmless   int `json:"harmless"`
				} `json:"last_analysis_stats"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &analysis); err != nil {
		return reputation.Verdict{}, rl, fmt.Errorf("could not decode response: %w", err)
	}

	stats := analysis.Data.Attributes.LastAnalysisStats

	switch {
	case stats.Malicious >= unsafeMaliciousCount:
		return reputation.Verdict{
			Status: domain.SafetyStatusUnsafe,
			Source: fmt.Sprintf("%s (%d engines flag malicious)", c.name, stats.Malicious),
		}, rl, nil
	case stats.Malicious >= warningMaliciousCount:
		return reputation.Verdict{
			Status: domain.SafetyStatusWarning,
			Source: fmt.Sprintf("%s (%d engine flags malicious)", c.name, stats.Malicious),
		}, rl, nil
	case stats.Suspicious >= warningSuspiciousCount:
		return reputation.Verdict{
			Status: domain.SafetyStatusWarning,
			Source: fmt.Sprintf("%s (%d engines flag suspicious)", c.name, stats.Suspicious),
		}, rl, nil
	default:
		return reputation.Verdict{Status: domain.SafetyStatusSafe}, rl, nil
	}
}

// Ensure Client conforms to the reputation.Client interface at compile time.
var _ reputation.Client = (*Client)(nil)
