package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus counters.
type PrometheusRecorder struct {
	taskPolls     prometheus.Counter
	requestTotal  *prometheus.CounterVec
	uploadTotal   *prometheus.CounterVec
	downloadTotal *prometheus.CounterVec
}

// NewPrometheusRecorder creates a PrometheusRecorder and registers its
// collectors on the given registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		taskPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulptool_task_polls_total",
			Help: "Total number of asynchronous task status polls",
		}),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulptool_api_requests_total",
				Help: "Total number of Pulp API requests",
			},
			[]string{"operation", "status"},
		),
		uploadTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulptool_uploads_total",
				Help: "Total number of upload batches by content category",
			},
			[]string{"category", "success"},
		),
		downloadTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulptool_downloads_total",
				Help: "Total number of artifact downloads",
			},
			[]string{"success"},
		),
	}

	reg.MustRegister(r.taskPolls, r.requestTotal, r.uploadTotal, r.downloadTotal)
	return r
}

func (r *PrometheusRecorder) RecordTaskPoll() {
	r.taskPolls.Inc()
}

func (r *PrometheusRecorder) RecordRequest(op string, status int) {
	r.requestTotal.WithLabelValues(op, strconv.Itoa(status)).Inc()
}

func (r *PrometheusRecorder) RecordUpload(category string, err error) {
	r.uploadTotal.WithLabelValues(category, strconv.FormatBool(err == nil)).Inc()
}

func (r *PrometheusRecorder) RecordDownload(err error) {
	r.downloadTotal.WithLabelValues(strconv.FormatBool(err == nil)).Inc()
}
