package socrata

import (
	"context"
	"sort"
	"strings"

	"github.com/citypulse/civic-etl/internal/domain"
)

// Feed endpoints. 311 complaints, taxi trips, and permitted events live on
// the city portal; subway ridership is published by the state.
const (
	ComplaintsEndpoint = "https://data.cityofnewyork.us/resource/erm2-nwe9.json"
	RidershipEndpoint  = "https://data.ny.gov/resource/wujg-7c2s.json"

	eventsHistoricalEndpoint = "https://data.cityofnewyork.us/resource/bkfu-528j.json"
	eventsCurrentEndpoint    = "https://data.cityofnewyork.us/resource/tvpp-9vvx.json"
)

// tripDatasets maps a calendar year to its yellow-taxi dataset id. TLC
// publishes each year as a separate dataset; there is no combined feed.
var tripDatasets = map[int]string{
	2009: "9hdn-4gtv",
	2010: "db5u-fvkr",
	2011: "uwyp-v8h4",
	2012: "cvic-zcjb",
	2013: "t7ny-aygi",
	2014: "gkne-dk5s",
	2015: "ba8s-jw6u",
	2016: "k67s-dv2t",
	2017: "biws-g3hs",
	2018: "t29m-gskq",
	2019: "2upf-qytp",
	2020: "kxp8-n2sj",
	2021: "m6nq-qud6",
	2022: "qp3b-zxtp",
	2023: "uwyp-trry",
}

// TripYears lists the years with a known yellow-taxi dataset, ascending.
func TripYears() []int {
	years := make([]int, 0, len(tripDatasets))
	for y := range tripDatasets {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Feed fetches one Socrata-backed source over a date window.
type Feed struct {
	client   *Client
	source   domain.SourceType
	endpoint string
	// dateField drives the window predicate and result ordering.
	dateField string
	pageSize  int
	limit     int
}

func newFeed(c *Client, source domain.SourceType, endpoint, dateField string, pageSize, limit int) *Feed {
	return &Feed{client: c, source: source, endpoint: endpoint, dateField: dateField, pageSize: pageSize, limit: limit}
}

// NewComplaintsFeed fetches 311 service requests by created date.
func NewComplaintsFeed(c *Client, pageSize, limit int) *Feed {
	return newFeed(c, domain.SourceComplaints, ComplaintsEndpoint, "created_date", pageSize, limit)
}

// NewRidershipFeed fetches hourly subway ridership by transit timestamp.
func NewRidershipFeed(c *Client, pageSize, limit int) *Feed {
	return newFeed(c, domain.SourceRidership, RidershipEndpoint, "transit_timestamp", pageSize, limit)
}

// Source reports which canonical source this feed fills.
func (f *Feed) Source() domain.SourceType { return f.source }

// Fetch pages through the window. The upstream serves timestamps as local
// wall-clock text, so the predicate is rendered date-only.
func (f *Feed) Fetch(ctx context.Context, w domain.Window) ([]domain.RawRecord, error) {
	return f.client.FetchWindow(ctx, Query{
		Source:   f.source,
		Endpoint: f.endpoint,
		Where:    WhereBetween(f.dateField, w),
		Order:    f.dateField,
		PageSize: f.pageSize,
		Limit:    f.limit,
	})
}

// TripsFeed fetches yellow-taxi trips. Each calendar year touched by the
// window is fetched from its own dataset; 2016 and later renamed the date
// columns with a tpep_ prefix.
type TripsFeed struct {
	client   *Client
	pageSize int
	limit    int
}

func NewTripsFeed(c *Client, pageSize, limit int) *TripsFeed {
	return &TripsFeed{client: c, pageSize: pageSize, limit: limit}
}

func (f *TripsFeed) Source() domain.SourceType { return domain.SourceTrips }

// PickupColumn returns the pickup date column name used by a given year's
// dataset.
func PickupColumn(year int) string {
	if year < 2016 {
		return "pickup_datetime"
	}
	return "tpep_pickup_datetime"
}

func (f *TripsFeed) Fetch(ctx context.Context, w domain.Window) ([]domain.RawRecord, error) {
	var all []domain.RawRecord
	fetched := false
	for year := w.Start.Year(); year <= w.End.Year(); year++ {
		dataset, ok := tripDatasets[year]
		if !ok {
			f.client.logger.Warn("no trip dataset for year", "year", year)
			continue
		}
		fetched = true

		limit := f.limit
		if limit > 0 {
			limit -= len(all)
			if limit <= 0 {
				break
			}
		}
		rows, err := f.client.FetchWindow(ctx, Query{
			Source:   domain.SourceTrips,
			Endpoint: "https://data.cityofnewyork.us/resource/" + dataset + ".json",
			Where:    WhereBetween(PickupColumn(year), w),
			Order:    PickupColumn(year),
			PageSize: f.pageSize,
			Limit:    limit,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	if !fetched {
		f.client.logger.Warn("window covers no published trip dataset",
			"start", w.Start.Format("2006-01-02"), "end", w.End.Format("2006-01-02"))
	}
	return all, nil
}

// EventsFeed fetches permitted events. The city has published this dataset
// under more than one id with drifting schemas, so the feed probes a fixed
// endpoint order and uses the first one that answers with data.
type EventsFeed struct {
	client    *Client
	endpoints []string
	pageSize  int
	limit     int
}

func NewEventsFeed(c *Client, pageSize, limit int) *EventsFeed {
	return &EventsFeed{
		client:    c,
		endpoints: []string{eventsHistoricalEndpoint, eventsCurrentEndpoint},
		pageSize:  pageSize,
		limit:     limit,
	}
}

// SetEndpoints overrides the probe order, for tests.
func (f *EventsFeed) SetEndpoints(endpoints []string) { f.endpoints = endpoints }

func (f *EventsFeed) Source() domain.SourceType { return domain.SourceEvents }

func (f *EventsFeed) Fetch(ctx context.Context, w domain.Window) ([]domain.RawRecord, error) {
	anyEmpty := false
	for _, endpoint := range f.endpoints {
		fields, err := f.client.ProbeFields(ctx, endpoint)
		if err != nil {
			f.client.logger.Warn("events schema probe failed", "endpoint", endpoint, "error", err)
			continue
		}
		if len(fields) == 0 {
			// An empty endpoint may just be the stale half of the
			// historical/current split; a later candidate can still have rows.
			f.client.logger.Info("events endpoint empty", "endpoint", endpoint)
			anyEmpty = true
			continue
		}
		dateField, ok := eventDateField(fields)
		if !ok {
			f.client.logger.Warn("events endpoint has no date field", "endpoint", endpoint)
			continue
		}
		return f.client.FetchWindow(ctx, Query{
			Source:   domain.SourceEvents,
			Endpoint: endpoint,
			Where:    WhereBetween(dateField, w),
			Order:    dateField,
			PageSize: f.pageSize,
			Limit:    f.limit,
		})
	}
	if anyEmpty {
		// At least one endpoint answered with no rows: a real no-events
		// window, not a discovery failure.
		return nil, nil
	}
	return nil, &domain.SchemaDiscoveryError{Source: domain.SourceEvents, Endpoints: f.endpoints}
}

// eventDateField picks the window predicate column: known names first in
// priority order, then any field mentioning a date.
func eventDateField(fields []string) (string, bool) {
	known := []string{"start_date_time", "event_date", "startdate", "start_date"}
	present := make(map[string]bool, len(fields))
	for _, f := range fields {
		present[f] = true
	}
	for _, k := range known {
		if present[k] {
			return k, true
		}
	}
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	for _, f := range sorted {
		if strings.Contains(strings.ToLower(f), "date") {
			return f, true
		}
	}
	return "", false
}
