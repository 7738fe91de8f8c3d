package stats

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielpatrickdp/cag-verifier/internal/router"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_Empty(t *testing.T) {
	snap := NewAggregator().Snapshot()
	assert.Zero(t, snap.Total)
	assert.Zero(t, snap.MeanProcessingMs)
	assert.Len(t, snap.Counts, 4)
	for _, p := range snap.Percentages {
		assert.Zero(t, p)
	}
}

func TestAggregator_CountsAndPercentages(t *testing.T) {
	a := NewAggregator()
	decisions := []router.Decision{router.Approved, router.Approved, router.Revised, router.Fallback}
	for _, d := range decisions {
		a.Record(d, time.Millisecond)
	}
	a.Record(router.Pending, time.Hour)

	snap := a.Snapshot()
	assert.Equal(t, uint64(4), snap.Total)
	assert.Equal(t, uint64(2), snap.Counts["approved"])
	assert.Equal(t, uint64(1), snap.Counts["revised"])
	assert.Equal(t, uint64(0), snap.Counts["rejected"])
	assert.InDelta(t, 50.0, snap.Percentages["approved"], 1e-9)
	assert.InDelta(t, 25.0, snap.Percentages["fallback"], 1e-9)

	var sum uint64
	for _, n := range snap.Counts {
		sum += n
	}
	assert.Equal(t, snap.Total, sum)
}

func TestAggregator_RollingMeanMatchesArithmeticMean(t *testing.T) {
	a := NewAggregator()
	samples := []time.Duration{3 * time.Millisecond, 250 * time.Millisecond, 17 * time.Millisecond, 1200 * time.Microsecond, 8 * time.Second}

	var sum float64
	for _, s := range samples {
		a.Record(router.Approved, s)
		sum += float64(s) / float64(time.Millisecond)
	}

	assert.InDelta(t, sum/float64(len(samples)), a.Snapshot().MeanProcessingMs, 1e-6)
}

func TestAggregator_ConcurrentRecord(t *testing.T) {
	a := NewAggregator()
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a.Record(router.Terminal()[i%4], time.Duration(i)*time.Millisecond)
			_ = a.Snapshot()
		}(i)
	}
	wg.Wait()

	snap := a.Snapshot()
	require.Equal(t, uint64(200), snap.Total)
	for _, d := range router.Terminal() {
		assert.Equal(t, uint64(50), snap.Counts[d.String()])
	}
	assert.InDelta(t, 99.5, snap.MeanProcessingMs, 1e-6)
}

func TestCollector(t *testing.T) {
	a := NewAggregator()
	a.Record(router.Approved, 10*time.Millisecond)
	a.Record(router.Rejected, 20*time.Millisecond)

	c := NewCollector(a)
	expected := `
# HELP cag_verifications_total Completed verifications by decision.
# TYPE cag_verifications_total counter
cag_verifications_total{decision="approved"} 1
cag_verifications_total{decision="fallback"} 0
cag_verifications_total{decision="rejected"} 1
cag_verifications_total{decision="revised"} 0
# HELP cag_processing_ms_mean Mean verification processing time in milliseconds.
# TYPE cag_processing_ms_mean gauge
cag_processing_ms_mean 15
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}
