package socrata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citypulse/civic-etl/internal/domain"
)

func testWindow(startYear int, endYear int) domain.Window {
	return domain.Window{
		Start: time.Date(startYear, 7, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(endYear, 7, 8, 0, 0, 0, 0, time.UTC),
	}
}

func TestFeedFetch(t *testing.T) {
	var gotWhere, gotOrder string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWhere = r.URL.Query().Get("$where")
		gotOrder = r.URL.Query().Get("$order")
		writeRows(t, w, []map[string]any{{"unique_key": "1", "created_date": "2023-07-04T15:30:00.000"}})
	}))
	defer srv.Close()

	feed := newFeed(testClient(), domain.SourceComplaints, srv.URL, "created_date", 100, 0)

	rows, err := feed.Fetch(context.Background(), testWindow(2023, 2023))

	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, domain.SourceComplaints, feed.Source())
	assert.Equal(t, "created_date between '2023-07-01T00:00:00' and '2023-07-08T23:59:59'", gotWhere)
	assert.Equal(t, "created_date", gotOrder)
}

func TestTripsFeedColumnNames(t *testing.T) {
	assert.Equal(t, "pickup_datetime", PickupColumn(2014))
	assert.Equal(t, "pickup_datetime", PickupColumn(2015))
	assert.Equal(t, "tpep_pickup_datetime", PickupColumn(2016))
	assert.Equal(t, "tpep_pickup_datetime", PickupColumn(2023))
}

func TestTripsFeedUnknownYear(t *testing.T) {
	feed := NewTripsFeed(testClient(), 100, 0)

	// 2026 has no published dataset; the fetch yields nothing rather than
	// failing the whole run.
	rows, err := feed.Fetch(context.Background(), testWindow(2026, 2026))

	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTripYears(t *testing.T) {
	years := TripYears()
	require.NotEmpty(t, years)
	assert.Equal(t, 2009, years[0])
	assert.Equal(t, 2023, years[len(years)-1])
	assert.IsIncreasing(t, years)
}

func TestEventsFeedProbe(t *testing.T) {
	t.Run("first endpoint with data wins", func(t *testing.T) {
		var fetchWhere string
		good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("$where") != "" {
				fetchWhere = r.URL.Query().Get("$where")
			}
			writeRows(t, w, []map[string]any{{
				"event_id":        "1",
				"event_name":      "Parade",
				"start_date_time": "2023-07-04T10:00:00.000",
			}})
		}))
		defer good.Close()
		dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer dead.Close()

		feed := NewEventsFeed(testClient(), 100, 0)
		feed.SetEndpoints([]string{dead.URL, good.URL})

		rows, err := feed.Fetch(context.Background(), testWindow(2023, 2023))

		require.NoError(t, err)
		assert.Len(t, rows, 1)
		assert.Contains(t, fetchWhere, "start_date_time between")
	})

	t.Run("endpoint with rows but no date field is skipped", func(t *testing.T) {
		dateless := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeRows(t, w, []map[string]any{{"event_id": "1", "name": "Parade"}})
		}))
		defer dateless.Close()

		feed := NewEventsFeed(testClient(), 100, 0)
		feed.SetEndpoints([]string{dateless.URL})

		_, err := feed.Fetch(context.Background(), testWindow(2023, 2023))

		var serr *domain.SchemaDiscoveryError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, domain.SourceEvents, serr.Source)
	})

	t.Run("empty endpoint means no events, not an error", func(t *testing.T) {
		empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("[]"))
		}))
		defer empty.Close()

		feed := NewEventsFeed(testClient(), 100, 0)
		feed.SetEndpoints([]string{empty.URL})

		rows, err := feed.Fetch(context.Background(), testWindow(2023, 2023))

		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("empty endpoint falls through to a populated one", func(t *testing.T) {
		empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("[]"))
		}))
		defer empty.Close()
		good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeRows(t, w, []map[string]any{{
				"event_id":        "2",
				"event_name":      "Street Fair",
				"start_date_time": "2023-07-05T09:00:00.000",
			}})
		}))
		defer good.Close()

		feed := NewEventsFeed(testClient(), 100, 0)
		feed.SetEndpoints([]string{empty.URL, good.URL})

		rows, err := feed.Fetch(context.Background(), testWindow(2023, 2023))

		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "Street Fair", rows[0].FieldString("event_name"))
	})

	t.Run("all endpoints failing is a schema discovery error", func(t *testing.T) {
		dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer dead.Close()

		feed := NewEventsFeed(testClient(), 100, 0)
		feed.SetEndpoints([]string{dead.URL})

		_, err := feed.Fetch(context.Background(), testWindow(2023, 2023))

		var serr *domain.SchemaDiscoveryError
		require.ErrorAs(t, err, &serr)
	})
}

func TestEventDateField(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		want   string
		ok     bool
	}{
		{"priority order", []string{"event_date", "start_date_time", "name"}, "start_date_time", true},
		{"second priority", []string{"event_date", "startdate"}, "event_date", true},
		{"fallback to any date field", []string{"name", "published_date"}, "published_date", true},
		{"fallback is lexical", []string{"zz_date", "aa_date"}, "aa_date", true},
		{"no date field", []string{"name", "category"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := eventDateField(tt.fields)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
