// Package socrata fetches paginated JSON rows from Socrata open-data
// endpoints (data.cityofnewyork.us, data.ny.gov).
package socrata

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/citypulse/civic-etl/internal/domain"
)

// DefaultPageSize keeps pages small enough for the upstream API to answer
// reliably; the original datasets time out above ~10k rows per page.
const DefaultPageSize = 10000

// Query describes one window fetch against a Socrata endpoint.
type Query struct {
	Source   domain.SourceType
	Endpoint string
	Where    string // SoQL predicate over the source's date field(s)
	Order    string // optional $order clause
	Select   string // optional $select projection
	PageSize int
	Limit    int // record cap; 0 means no cap
}

// PageObserver receives the duration of each upstream page request.
type PageObserver interface {
	ObserveFetchPage(source string, d time.Duration)
}

// Client wraps a resty HTTP client with the Socrata pagination and app-token
// conventions. Safe for concurrent use.
type Client struct {
	http     *resty.Client
	appToken string
	observer PageObserver
	logger   *slog.Logger
}

// NewClient creates a Socrata client. appToken may be empty; it only raises
// rate limits. No retry is configured: a failed page surfaces as a FetchError
// carrying its offset and retry is the caller's policy.
func NewClient(appToken string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		http:     resty.New().SetTimeout(timeout),
		appToken: appToken,
		logger:   logger,
	}
}

// SetPageObserver attaches a per-page duration observer. nil disables
// observation.
func (c *Client) SetPageObserver(o PageObserver) { c.observer = o }

// ProbeFields requests a single record from an endpoint and returns its field
// names. An empty endpoint is a real condition (no data yet), reported as an
// empty slice with no error.
func (c *Client) ProbeFields(ctx context.Context, endpoint string) ([]string, error) {
	var rows []domain.RawRecord
	resp, err := c.request(ctx).
		SetQueryParam("$limit", "1").
		SetResult(&rows).
		Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", endpoint, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("probe %s: status %d", endpoint, resp.StatusCode())
	}
	if len(rows) == 0 {
		return nil, nil
	}
	fields := make([]string, 0, len(rows[0]))
	for name := range rows[0] {
		fields = append(fields, name)
	}
	return fields, nil
}

// FetchPage fetches one page at the given offset. Restartable: a failed fetch
// returns a FetchError carrying the offset it broke at.
func (c *Client) FetchPage(ctx context.Context, q Query, offset, size int) ([]domain.RawRecord, error) {
	var rows []domain.RawRecord
	req := c.request(ctx).
		SetQueryParam("$offset", strconv.Itoa(offset)).
		SetQueryParam("$limit", strconv.Itoa(size)).
		SetResult(&rows)
	if q.Where != "" {
		req.SetQueryParam("$where", q.Where)
	}
	if q.Order != "" {
		req.SetQueryParam("$order", q.Order)
	}
	if q.Select != "" {
		req.SetQueryParam("$select", q.Select)
	}

	start := time.Now()
	resp, err := req.Get(q.Endpoint)
	if c.observer != nil {
		c.observer.ObserveFetchPage(string(q.Source), time.Since(start))
	}
	if err != nil {
		return nil, &domain.FetchError{Source: q.Source, Offset: offset, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &domain.FetchError{
			Source: q.Source,
			Offset: offset,
			Err:    fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()),
		}
	}
	return rows, nil
}

// FetchWindow pages through a query until a short page or the record cap.
// Cancellation between pages is safe; nothing is committed per page.
func (c *Client) FetchWindow(ctx context.Context, q Query) ([]domain.RawRecord, error) {
	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	var all []domain.RawRecord
	for offset := 0; ; offset += size {
		if err := ctx.Err(); err != nil {
			return nil, &domain.FetchError{Source: q.Source, Offset: offset, Err: err}
		}

		c.logger.Info("fetching page", "source", string(q.Source), "offset", offset)
		rows, err := c.FetchPage(ctx, q, offset, size)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
		c.logger.Info("fetched page", "source", string(q.Source), "records", len(rows), "total", len(all))

		if q.Limit > 0 && len(all) >= q.Limit {
			return all[:q.Limit], nil
		}
		if len(rows) < size {
			return all, nil
		}
	}
}

// WhereBetween renders the inclusive date predicate Socrata expects:
// start-of-day on the lower bound through end-of-day on the upper.
func WhereBetween(field string, w domain.Window) string {
	return fmt.Sprintf("%s between '%s' and '%s'",
		field,
		w.Start.Format("2006-01-02T00:00:00"),
		w.End.Format("2006-01-02")+"T23:59:59")
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if c.appToken != "" {
		req.SetHeader("X-App-Token", c.appToken)
	}
	return req
}
