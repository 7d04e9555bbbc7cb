package bulletin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultEndpoint is the Météo-France DPBRA bulletin endpoint; {id} is
	// replaced by the massif identifier.
	DefaultEndpoint = "https://public-api.meteofrance.fr/public/DPBRA/v1/massif/BRA?format=xml&id-massif={id}"

	// MassifIDMontBlanc is the upstream identifier for the Mont-Blanc massif.
	MassifIDMontBlanc = 3

	httpTimeout = 10 * time.Second

	bodySnippetLimit = 300
)

// Client fetches avalanche bulletin XML from Météo-France.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient constructs a Client with the given API key and the production
// endpoint.
func NewClient(apiKey string) *Client {
	return NewClientWithURL(DefaultEndpoint, apiKey)
}

// NewClientWithURL constructs a Client pointing at a custom endpoint. The
// endpoint may carry an {id} placeholder; otherwise the massif id is
// injected as a query parameter.
func NewClientWithURL(baseURL, apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

// resolveURL builds the bulletin URL for the given massif, substituting the
// {id} placeholder when present and injecting id-massif/format parameters
// when not.
func (c *Client) resolveURL(massifID int) (string, error) {
	if strings.Contains(c.baseURL, "{id}") {
		return strings.ReplaceAll(c.baseURL, "{id}", strconv.Itoa(massifID)), nil
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing bulletin endpoint: %w", err)
	}

	q := u.Query()
	if !q.Has("id-massif") && !q.Has("idMassif") {
		q.Set("id-massif", strconv.Itoa(massifID))
	}
	if !q.Has("format") {
		q.Set("format", "xml")
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// FetchXML retrieves the raw bulletin markup for the given massif. A missing
// API key is an error before any network call is made.
func (c *Client) FetchXML(ctx context.Context, massifID int) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("meteo-france API key is required to fetch the bulletin")
	}

	endpoint, err := c.resolveURL(massifID)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("creating bulletin request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching bulletin for massif %d: %w", massifID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading bulletin response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("bulletin fetch returned status %d: %s", resp.StatusCode, snippet(body))
	}

	return string(body), nil
}

// FetchAndParse retrieves and parses the bulletin for the given massif.
func (c *Client) FetchAndParse(ctx context.Context, massifID int) (*Bulletin, error) {
	xml, err := c.FetchXML(ctx, massifID)
	if err != nil {
		return nil, err
	}
	return Parse(xml)
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > bodySnippetLimit {
		return s[:bodySnippetLimit] + "..."
	}
	return s
}
