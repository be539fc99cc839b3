// Package noaa fetches daily weather observations from the NOAA Climate Data
// Online v2 API and pivots them into one reading per date.
package noaa

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/citypulse/civic-etl/internal/domain"
)

const (
	defaultBaseURL = "https://www.ncdc.noaa.gov/cdo-web/api/v2/data"

	// CentralParkStation is the fixed observation station for the city.
	CentralParkStation = "GHCND:USW00094728"

	// pageLimit is the API maximum per page. NOAA offsets are 1-based and
	// advance by the page limit, unlike Socrata's 0-based offsets.
	pageLimit = 1000
)

// PageObserver receives the duration of each upstream page request.
type PageObserver interface {
	ObserveFetchPage(source string, d time.Duration)
}

// Client wraps the NOAA CDO API. The token is mandatory upstream; a client
// with an empty token yields an empty window rather than failing, matching
// the feed's treat-missing-config-as-no-data contract.
type Client struct {
	http     *resty.Client
	baseURL  string
	token    string
	station  string
	observer PageObserver
	logger   *slog.Logger
}

// NewClient creates a NOAA CDO client for the Central Park station.
func NewClient(token string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		http:    resty.New().SetTimeout(timeout),
		baseURL: defaultBaseURL,
		token:   token,
		station: CentralParkStation,
		logger:  logger,
	}
}

// SetBaseURL overrides the API endpoint, for tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// SetPageObserver attaches a per-page duration observer. nil disables
// observation.
func (c *Client) SetPageObserver(o PageObserver) { c.observer = o }

// Source reports which canonical source this client fills.
func (c *Client) Source() domain.SourceType { return domain.SourceWeather }

type dataResponse struct {
	Results []observation `json:"results"`
}

type observation struct {
	Date     string  `json:"date"` // "2023-07-04T00:00:00"
	Datatype string  `json:"datatype"`
	Value    float64 `json:"value"`
}

// Fetch fetches TMAX/TMIN/PRCP/AWND observations for the window and pivots
// them into one RawRecord per date with the canonical weather field names,
// so the normalizer treats NOAA like any other source.
func (c *Client) Fetch(ctx context.Context, w domain.Window) ([]domain.RawRecord, error) {
	if c.token == "" {
		c.logger.Warn("no NOAA API token configured, skipping weather fetch")
		return nil, nil
	}

	var all []observation
	for offset := 1; ; offset += pageLimit {
		if err := ctx.Err(); err != nil {
			return nil, &domain.FetchError{Source: domain.SourceWeather, Offset: offset, Err: err}
		}

		c.logger.Info("fetching page", "source", string(domain.SourceWeather), "offset", offset)
		page, err := c.fetchPage(ctx, w, offset)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		if len(page) < pageLimit {
			break
		}
	}

	return pivotByDate(all), nil
}

func (c *Client) fetchPage(ctx context.Context, w domain.Window, offset int) ([]observation, error) {
	var body dataResponse
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("token", c.token).
		SetQueryParams(map[string]string{
			"datasetid":       "GHCND",
			"stationid":       c.station,
			"startdate":       w.Start.Format("2006-01-02"),
			"enddate":         w.End.Format("2006-01-02"),
			"units":           "standard",
			"datatypeid":      "TMAX,TMIN,PRCP,AWND",
			"includemetadata": "false",
			"limit":           strconv.Itoa(pageLimit),
			"offset":          strconv.Itoa(offset),
		}).
		SetResult(&body).
		Get(c.baseURL)
	if c.observer != nil {
		c.observer.ObserveFetchPage(string(domain.SourceWeather), time.Since(start))
	}
	if err != nil {
		return nil, &domain.FetchError{Source: domain.SourceWeather, Offset: offset, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &domain.FetchError{
			Source: domain.SourceWeather,
			Offset: offset,
			Err:    fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()),
		}
	}
	return body.Results, nil
}

// pivotByDate groups observations by calendar date and derives the reading
// fields: temperature is the TMAX/TMIN mean and only present when both are,
// precipitation and wind speed pass through. NOAA has no condition field.
func pivotByDate(obs []observation) []domain.RawRecord {
	byDate := make(map[string]map[string]float64)
	for _, o := range obs {
		date, _, _ := strings.Cut(o.Date, "T")
		if byDate[date] == nil {
			byDate[date] = make(map[string]float64)
		}
		byDate[date][o.Datatype] = o.Value
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	records := make([]domain.RawRecord, 0, len(dates))
	for _, date := range dates {
		values := byDate[date]
		rec := domain.RawRecord{"datetime": date}
		tmax, hasMax := values["TMAX"]
		tmin, hasMin := values["TMIN"]
		if hasMax && hasMin {
			rec["temperature"] = (tmax + tmin) / 2
		}
		if prcp, ok := values["PRCP"]; ok {
			rec["precipitation"] = prcp
		}
		if wind, ok := values["AWND"]; ok {
			rec["wind_speed"] = wind
		}
		records = append(records, rec)
	}
	return records
}
