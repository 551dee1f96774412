// Package safebrowsing provides a reputation.Client backed by a threat-match
// API of the Safe Browsing v4 family. Two instances with different endpoints
// cover the primary and regional services.
package safebrowsing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/domain"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/reputation"
	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/serrors"
)

// DefaultEndpoint is the Google Safe Browsing v4 threat-match endpoint.
const DefaultEndpoint = "https://safebrowsing.googleapis.com/v4/threatMatches:find"

var threatTypes = []string{ //nolint: gochecknoglobals
	"MALWARE",
	"SOCIAL_ENGINEERING",
	"UNWANTED_SOFTWARE",
	"POTENTIALLY_HARMFUL_APPLICATION",
}

// Options configures a Client.
type Options struct {
	// Name identifies this instance, e.g. "Google Safe Browsing" or a
	// regional service name.
	Name string
	// Endpoint is the threatMatches:find URL. Defaults to DefaultEndpoint.
	Endpoint string
	// APIKey is appended as the key query parameter.
	APIKey string
	// Client performs the HTTP requests. Defaults to http.DefaultClient.
	Client *http.Client
}

// Client talks to a threat-match REST API and fulfills the reputation.Client
// interface. It is safe for concurrent use.
type Client struct {
	name       string
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// New constructs a Client.
func New(options Options) *Client {
	if options.Endpoint == "" {
		options.Endpoint = DefaultEndpoint
	}
	if options.Client == nil {
		options.Client = http.DefaultClient
	}

	return &Client{
		name:       options.Name,
		endpoint:   options.Endpoint,
		apiKey:     options.APIKey,
		httpClient: options.Client,
	}
}

// Name implements reputation.Client.
func (c *Client) Name() string { return c.name }

// Check submits the URL to the threat-match API. Any returned match yields an
// unsafe verdict naming the threat type; an empty match set is safe.
func (c *Client) Check(ctx context.Context, url string) (reputation.Verdict, reputation.RateLimitStatus, error) {
	// https://developers.google.com/safe-browsing/v4/lookup-api
	type threatEntry struct {
		URL string `json:"url"`
	}
	body := struct {
		Client struct {
			ClientID      string `json:"clientId"`
			ClientVersion string `json:"clientVersion"`
		} `json:"client"`
		ThreatInfo struct {
			ThreatTypes      []string      `json:"threatTypes"`
			PlatformTypes    []string      `json:"platformTypes"`
			ThreatEntryTypes []string      `json:"threatEntryTypes"`
			ThreatEntries    []threatEntry `json:"threatEntries"`
		} `json:"threatInfo"`
	}{}
	body.Client.ClientID = "bookmark-scan-engine"
	body.Client.ClientVersion = "1.0"
	body.ThreatInfo.ThreatTypes = threatTypes
	body.ThreatInfo.PlatformTypes = []string{"ANY_PLATFORM"}
	body.ThreatInfo.ThreatEntryTypes = []string{"URL"}
	body.ThreatInfo.ThreatEntries = []threatEntry{{URL: url}}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return reputation.Verdict{}, reputation.RateLimitStatus{}, fmt.Errorf("could not marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx,
		http.MethodPost,
		c.endpoint+"?key="+c.apiKey,
		bytes.NewReader(bodyBytes))
	if err != nil {
		return reputation.Verdict{}, reputation.RateLimitStatus{}, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return reputation.Verdict{}, reputation.RateLimitStatus{}, serrors.Wrap(serrors.ErrNetwork, err, "could not send request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return reputation.Verdict{}, reputation.RateLimitStatus{}, fmt.Errorf("could not read response body: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return reputation.Verdict{},
			reputation.RateLimitStatus{},
			serrors.With(serrors.ErrRateLimited, "rate limited: %s", strings.TrimSpace(string(b)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return reputation.Verdict{},
			reputation.RateLimitStatus{},
			fmt.Errorf("threat match failed: %s", strings.TrimSpace(string(b)))
	}

	var matchResp struct {
		Matches []struct {
			ThreatType string `json:"threatType"`
		} `json:"matches"`
	}
	if err := json.Unmarshal(b, &matchResp); err != nil {
		return reputation.Verdict{}, reputation.RateLimitStatus{}, fmt.Errorf("could not decode response: %w", err)
	}

	if len(matchResp.Matches) == 0 {
		return reputation.Verdict{Status: domain.SafetyStatusSafe}, reputation.RateLimitStatus{}, nil
	}

	return reputation.Verdict{
		Status: domain.SafetyStatusUnsafe,
		Source: fmt.Sprintf("%s (%s)", c.name, matchResp.Matches[0].ThreatType),
	}, reputation.RateLimitStatus{}, nil
}

// Ensure Client conforms to the reputation.Client interface at compile time.
var _ reputation.Client = (*Client)(nil)
