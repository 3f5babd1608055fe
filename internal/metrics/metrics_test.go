package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordStoreOperation(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordStoreOperation("append", nil, time.Millisecond)
	m.RecordStoreOperation("append", nil, time.Millisecond)
	m.RecordStoreOperation("append", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("append", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("append", "error")))
}

func TestRecordAppend(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordAppend(1, 2, 0)
	m.RecordAppend(2, 1, 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.VersionsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.WordsAddedTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.WordsRemovedTotal))
}

func TestRecordHTTPRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordHTTPRequest("GET", "/versions", 200, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/versions", "200")))
}
