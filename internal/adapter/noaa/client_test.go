package noaa

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citypulse/civic-etl/internal/domain"
)

func testWindow() domain.Window {
	return domain.Window{
		Start: time.Date(2023, 7, 4, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 7, 5, 0, 0, 0, 0, time.UTC),
	}
}

func serveObservations(t *testing.T, obs []observation, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(dataResponse{Results: obs}))
	}))
}

type recordingObserver struct {
	sources []string
}

func (o *recordingObserver) ObserveFetchPage(source string, _ time.Duration) {
	o.sources = append(o.sources, source)
}

func TestFetch(t *testing.T) {
	t.Run("pivots observations into one record per date", func(t *testing.T) {
		obs := []observation{
			{Date: "2023-07-04T00:00:00", Datatype: "TMAX", Value: 88},
			{Date: "2023-07-04T00:00:00", Datatype: "TMIN", Value: 72},
			{Date: "2023-07-04T00:00:00", Datatype: "PRCP", Value: 0.12},
			{Date: "2023-07-04T00:00:00", Datatype: "AWND", Value: 6.5},
			{Date: "2023-07-05T00:00:00", Datatype: "TMAX", Value: 90},
		}
		srv := serveObservations(t, obs, func(r *http.Request) {
			assert.Equal(t, "secret", r.Header.Get("token"))
			assert.Equal(t, "GHCND", r.URL.Query().Get("datasetid"))
			assert.Equal(t, CentralParkStation, r.URL.Query().Get("stationid"))
			assert.Equal(t, "2023-07-04", r.URL.Query().Get("startdate"))
			assert.Equal(t, "2023-07-05", r.URL.Query().Get("enddate"))
			assert.Equal(t, "1", r.URL.Query().Get("offset"))
		})
		defer srv.Close()

		c := NewClient("secret", 5*time.Second, slog.Default())
		c.SetBaseURL(srv.URL)

		recs, err := c.Fetch(context.Background(), testWindow())

		require.NoError(t, err)
		require.Len(t, recs, 2)

		first := recs[0]
		assert.Equal(t, "2023-07-04", first.FieldString("datetime"))
		temp, ok := first.FieldFloat("temperature")
		require.True(t, ok)
		assert.InDelta(t, 80.0, temp, 1e-9)
		prcp, ok := first.FieldFloat("precipitation")
		require.True(t, ok)
		assert.InDelta(t, 0.12, prcp, 1e-9)
		wind, ok := first.FieldFloat("wind_speed")
		require.True(t, ok)
		assert.InDelta(t, 6.5, wind, 1e-9)

		// Second date has TMAX only, so no derived temperature.
		second := recs[1]
		assert.Equal(t, "2023-07-05", second.FieldString("datetime"))
		_, ok = second.FieldFloat("temperature")
		assert.False(t, ok)
	})

	t.Run("observes each page request", func(t *testing.T) {
		srv := serveObservations(t, []observation{
			{Date: "2023-07-04T00:00:00", Datatype: "PRCP", Value: 0.1},
		}, nil)
		defer srv.Close()

		c := NewClient("secret", 5*time.Second, slog.Default())
		c.SetBaseURL(srv.URL)
		obs := &recordingObserver{}
		c.SetPageObserver(obs)

		_, err := c.Fetch(context.Background(), testWindow())

		require.NoError(t, err)
		assert.Equal(t, []string{string(domain.SourceWeather)}, obs.sources)
	})

	t.Run("empty token skips the fetch", func(t *testing.T) {
		c := NewClient("", 5*time.Second, slog.Default())

		recs, err := c.Fetch(context.Background(), testWindow())

		require.NoError(t, err)
		assert.Nil(t, recs)
	})

	t.Run("upstream error carries the offset", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "token invalid", http.StatusUnauthorized)
		}))
		defer srv.Close()

		c := NewClient("bad", 5*time.Second, slog.Default())
		c.SetBaseURL(srv.URL)

		_, err := c.Fetch(context.Background(), testWindow())

		var ferr *domain.FetchError
		require.ErrorAs(t, err, &ferr)
		assert.Equal(t, domain.SourceWeather, ferr.Source)
		assert.Equal(t, 1, ferr.Offset)
	})
}

func TestPivotByDate(t *testing.T) {
	t.Run("dates sorted ascending", func(t *testing.T) {
		recs := pivotByDate([]observation{
			{Date: "2023-07-06T00:00:00", Datatype: "PRCP", Value: 1},
			{Date: "2023-07-04T00:00:00", Datatype: "PRCP", Value: 2},
			{Date: "2023-07-05T00:00:00", Datatype: "PRCP", Value: 3},
		})
		require.Len(t, recs, 3)
		assert.Equal(t, "2023-07-04", recs[0].FieldString("datetime"))
		assert.Equal(t, "2023-07-06", recs[2].FieldString("datetime"))
	})

	t.Run("no observations yields no records", func(t *testing.T) {
		assert.Empty(t, pivotByDate(nil))
	})
}
