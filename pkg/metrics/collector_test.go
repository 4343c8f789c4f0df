package metrics

import (
	"testing"

	"github.com/cuemby/slotsync/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type staticStats types.SlotStats

func (s staticStats) Stats() types.SlotStats { return types.SlotStats(s) }

func TestCollectorCollect(t *testing.T) {
	c := NewCollector(staticStats{Open: 40, Claimed: 3, Completed: 1}, 0)
	c.Collect()

	assert.Equal(t, float64(40), testutil.ToFloat64(SlotsTotal.WithLabelValues("open")))
	assert.Equal(t, float64(3), testutil.ToFloat64(SlotsTotal.WithLabelValues("claimed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(SlotsTotal.WithLabelValues("completed")))
}
