package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/marmos91/objectloader/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsDisabled(t *testing.T) {
	metrics.Reset()
	assert.Nil(t, NewLoaderMetrics())
	assert.Nil(t, NewStoreMetrics())
}

func TestLoaderMetricsRecord(t *testing.T) {
	metrics.Reset()
	metrics.InitRegistry()
	t.Cleanup(metrics.Reset)

	m := NewLoaderMetrics()
	require.NotNil(t, m)
	lm := m.(*loaderMetrics)

	m.ObserveBatch("cache-reader", 10, 3*time.Millisecond, nil)
	m.ObserveBatch("cache-reader", 2, time.Millisecond, errors.New("boom"))
	m.RecordCacheLookup(7, 3)
	m.RecordDeferment(metrics.DefermentCollapsed)
	m.SetPendingDeferments(4)
	m.RecordTransportDrop("items", "decode")
	m.RecordEmitted(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(lm.batches.WithLabelValues("cache-reader", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(lm.batches.WithLabelValues("cache-reader", "error")))
	assert.Equal(t, 7.0, testutil.ToFloat64(lm.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 3.0, testutil.ToFloat64(lm.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(lm.deferments.WithLabelValues(metrics.DefermentCollapsed)))
	assert.Equal(t, 4.0, testutil.ToFloat64(lm.pendingDeferment))
	assert.Equal(t, 1.0, testutil.ToFloat64(lm.transportDrops.WithLabelValues("items", "decode")))
	assert.Equal(t, 2.0, testutil.ToFloat64(lm.mergedChunks))
}

func TestStoreMetricsRecord(t *testing.T) {
	metrics.Reset()
	metrics.InitRegistry()
	t.Cleanup(metrics.Reset)

	m := NewStoreMetrics()
	require.NotNil(t, m)
	sm := m.(*storeMetrics)

	m.ObserveOperation("badger", "get_all", 5, time.Millisecond, nil)
	m.RecordBytes("badger", "get_all", 512)

	assert.Equal(t, 5.0, testutil.ToFloat64(sm.items.WithLabelValues("badger", "get_all")))
	assert.Equal(t, 512.0, testutil.ToFloat64(sm.bytes.WithLabelValues("badger", "get_all")))
}
