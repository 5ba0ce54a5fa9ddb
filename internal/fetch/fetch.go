package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/TobiSchelling/vhireport/internal/config"
)

// Feed returns the raw series for one region.
type Feed interface {
	Fetch(ctx context.Context, regionID int) ([]byte, error)
}

// SourceFetchError reports that the provider could not deliver a region.
type SourceFetchError struct {
	RegionID int
	Status   int // HTTP status, 0 when no response was received
	Err      error
}

func (e *SourceFetchError) Error() string {
	if e.Status != 0 {
		if text := http.StatusText(e.Status); text != "" {
			return fmt.Sprintf("fetching region %d: %s", e.RegionID, text)
		}
		return fmt.Sprintf("fetching region %d: HTTP %d", e.RegionID, e.Status)
	}
	return fmt.Sprintf("fetching region %d: %v", e.RegionID, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

var errEmptyBody = errors.New("empty response body")

// HTTPFeed fetches series from the NOAA STAR get_TS_admin endpoint.
type HTTPFeed struct {
	cfg    config.Source
	client *http.Client
}

// NewHTTPFeed creates a feed for the configured endpoint.
func NewHTTPFeed(cfg config.Source) *HTTPFeed {
	timeout := cfg.Timeout()
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFeed{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// URL returns the request URL for a region.
func (f *HTTPFeed) URL(regionID int) string {
	params := url.Values{
		"country":    {f.cfg.Country},
		"provinceID": {strconv.Itoa(regionID)},
		"year1":      {strconv.Itoa(f.cfg.YearFrom)},
		"year2":      {strconv.Itoa(f.cfg.YearTo)},
		"type":       {f.cfg.Type},
	}
	return f.cfg.BaseURL + "?" + params.Encode()
}

// Fetch downloads the series for regionID.
func (f *HTTPFeed) Fetch(ctx context.Context, regionID int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL(regionID), nil)
	if err != nil {
		return nil, &SourceFetchError{RegionID: regionID, Err: err}
	}
	req.Header.Set("User-Agent", "vhireport/1.0 (vegetation health reports)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &SourceFetchError{RegionID: regionID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &SourceFetchError{RegionID: regionID, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SourceFetchError{RegionID: regionID, Err: err}
	}
	if len(body) == 0 {
		return nil, &SourceFetchError{RegionID: regionID, Err: errEmptyBody}
	}
	return body, nil
}
