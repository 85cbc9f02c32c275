package extraviados

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultEndpoint is the public Extraviados MX instance.
const DefaultEndpoint = "https://extraviados.mx"

const requestTimeout = 2 * time.Minute

// ErrInvalidRange is returned when a query's start date is after its end
// date.
var ErrInvalidRange = fmt.Errorf("%w: start date is after end date", os.ErrInvalid)

type page struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []Mpp   `json:"results"`
}

type Options struct {
	// Endpoint is the API base URL. Defaults to [DefaultEndpoint].
	Endpoint string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}

	u, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("API endpoint: %w", err)
	}

	if !u.IsAbs() {
		return nil, fmt.Errorf("%w: API endpoint %q is not an absolute URL", os.ErrInvalid, opts.Endpoint)
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: requestTimeout,
		}
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}, nil
}

func (c *Client) getPage(ctx context.Context, pageURL string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", pageURL, resp.StatusCode)
	}

	var result page

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("unable to parse JSON returned by %s: %w", pageURL, err)
	}

	return &result, nil
}

// PostersUpdatedBetween sends all records whose updated_at timestamp falls
// between the two dates (inclusive) to the given channel, walking the API's
// pagination. The channel is not closed. Records arrive in API order.
func (c *Client) PostersUpdatedBetween(ctx context.Context, from, to time.Time, out chan<- Mpp) error {
	if from.After(to) {
		return fmt.Errorf("%w (%s > %s)", ErrInvalidRange,
			from.Format(time.DateOnly), to.Format(time.DateOnly))
	}

	params := url.Values{
		"updated_at_after":  []string{from.Format(time.DateOnly)},
		"updated_at_before": []string{to.Format(time.DateOnly)},
	}

	next := fmt.Sprintf("%s/api/v1/mpps/?%s", c.baseURL, params.Encode())

	for next != "" {
		c.logger.DebugContext(ctx, "Retrieving page",
			slog.String("url", next),
		)

		p, err := c.getPage(ctx, next)
		if err != nil {
			return err
		}

		for _, mpp := range p.Results {
			select {
			case <-ctx.Done():
				return ctx.Err()

			case out <- mpp:
			}
		}

		next = ""

		if p.Next != nil {
			next = *p.Next
		}
	}

	return nil
}
