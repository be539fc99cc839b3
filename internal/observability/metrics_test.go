package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveFetchPage(t *testing.T) {
	m := NewMetricsForTesting()

	m.ObserveFetchPage("complaints", 120*time.Millisecond)
	m.ObserveFetchPage("complaints", 80*time.Millisecond)
	m.ObserveFetchPage("weather", 50*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(m.FetchPageDuration))
}
