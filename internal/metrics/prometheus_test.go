package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.RecordTaskPoll()
	rec.RecordTaskPoll()
	rec.RecordRequest("list repositories", 200)
	rec.RecordRequest("list repositories", 200)
	rec.RecordRequest("create repository", 403)
	rec.RecordUpload("rpms", nil)
	rec.RecordUpload("rpms", errors.New("boom"))
	rec.RecordDownload(nil)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["pulptool_task_polls_total"])
	assert.True(t, names["pulptool_api_requests_total"])
	assert.True(t, names["pulptool_uploads_total"])
	assert.True(t, names["pulptool_downloads_total"])

	assert.Equal(t, float64(2), testutil.ToFloat64(rec.taskPolls))
	assert.Equal(t, float64(2), testutil.ToFloat64(rec.requestTotal.WithLabelValues("list repositories", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.requestTotal.WithLabelValues("create repository", "403")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.uploadTotal.WithLabelValues("rpms", "true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.uploadTotal.WithLabelValues("rpms", "false")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.downloadTotal.WithLabelValues("true")))
}
