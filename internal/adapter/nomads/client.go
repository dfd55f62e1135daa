// Package nomads fetches model output from the NOMADS HTTP mirror at
// nomads.ncep.noaa.gov. It is the fallback source when the open data S3
// buckets lag a cycle.
package nomads

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	fastshot "github.com/opus-domini/fast-shot"

	"github.com/couchcryptid/model-imagery-service/internal/domain"
	"github.com/couchcryptid/model-imagery-service/internal/grib"
)

// DefaultBaseURL is the public NOMADS endpoint.
const DefaultBaseURL = "https://nomads.ncep.noaa.gov"

// Client reads GRIB2 files and inventories over HTTP.
type Client struct {
	http   fastshot.ClientHttpMethods
	logger *slog.Logger
}

// NewClient builds a NOMADS client. baseURL may be empty, which selects
// DefaultBaseURL; tests point it at a local server.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := fastshot.NewClient(baseURL).
		Config().SetTimeout(timeout).
		Config().SetFollowRedirects(true).
		Build()
	return &Client{http: c, logger: logger}
}

// Name identifies the source in logs and metrics.
func (c *Client) Name() string { return "nomads" }

// ProbeRun reports whether the cycle's F01 inventory is present on the
// mirror. NOMADS answers 404 for cycles that have not landed yet.
func (c *Client) ProbeRun(ctx context.Context, m domain.Model, cycle time.Time) (bool, error) {
	path := m.NOMADSIndexPath(cycle, 1)
	resp, err := c.http.HEAD(path).
		Context().Set(ctx).
		Send()
	if err != nil {
		return false, fmt.Errorf("head %s: %w", path, err)
	}
	defer resp.Body().Close()

	if resp.Status().Code() == http.StatusNotFound {
		return false, nil
	}
	if resp.Status().IsError() {
		return false, fmt.Errorf("head %s: status %d", path, resp.Status().Code())
	}
	return true, nil
}

// FetchInventory downloads and parses the ".idx" inventory of the cycle's
// file at the given forecast hour.
func (c *Client) FetchInventory(ctx context.Context, m domain.Model, cycle time.Time, fxx int) (grib.Inventory, error) {
	path := m.NOMADSIndexPath(cycle, fxx)
	resp, err := c.http.GET(path).
		Context().Set(ctx).
		Retry().SetExponentialBackoff(time.Second, 3, 2.0).
		Send()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body().Close()

	if resp.Status().IsError() {
		return nil, fmt.Errorf("get %s: status %d", path, resp.Status().Code())
	}
	body, err := resp.Body().AsString()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	inv, err := grib.ParseInventory(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return inv, nil
}

// FetchRange downloads the byte range [start, end] of the cycle's GRIB2
// file. A negative end requests everything from start to EOF.
func (c *Client) FetchRange(ctx context.Context, m domain.Model, cycle time.Time, fxx int, start, end int64) ([]byte, error) {
	path := m.NOMADSPath(cycle, fxx)
	resp, err := c.http.GET(path).
		Context().Set(ctx).
		Header().Add("Range", rangeHeader(start, end)).
		Retry().SetExponentialBackoff(time.Second, 3, 2.0).
		Send()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body().Close()

	if resp.Status().IsError() {
		return nil, fmt.Errorf("get %s range %d-%d: status %d", path, start, end, resp.Status().Code())
	}
	body, err := resp.Body().AsString()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	c.logger.Debug("fetched grib range", "path", path, "bytes", len(body))
	return []byte(body), nil
}

func rangeHeader(start, end int64) string {
	if end < 0 {
		return fmt.Sprintf("bytes=%d-", start)
	}
	return fmt.Sprintf("bytes=%d-%d", start, end)
}
