package run

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics implements pipeline.Metrics on a per-server registry.
type metrics struct {
	registry *prometheus.Registry

	recordings     prometheus.Counter
	recording      prometheus.Gauge
	blocks         prometheus.Counter
	readFailures   prometheus.Counter
	segments       *prometheus.CounterVec
	refineFailures prometheus.Counter
	refineLatency  prometheus.Histogram
	hooks          *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		recordings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twopass_recordings_total",
			Help: "Recordings started.",
		}),
		recording: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "twopass_recording",
			Help: "1 while a recording is active.",
		}),
		blocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twopass_blocks_captured_total",
			Help: "Audio blocks read from the capture source.",
		}),
		readFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twopass_capture_read_failures_total",
			Help: "Failed capture reads.",
		}),
		segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twopass_segments_committed_total",
			Help: "Segments committed to the transcript.",
		}, []string{"refined"}),
		refineFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twopass_refinements_failed_total",
			Help: "Refinement passes that returned an error.",
		}),
		refineLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "twopass_refinement_seconds",
			Help:    "Wall time of the refinement pass.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		hooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twopass_hooks_total",
			Help: "Hook jobs by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.recordings, m.recording, m.blocks, m.readFailures,
		m.segments, m.refineFailures, m.refineLatency, m.hooks,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *metrics) BlockCaptured() { m.blocks.Inc() }
func (m *metrics) ReadFailed()    { m.readFailures.Inc() }

func (m *metrics) SegmentCommitted(refined bool) {
	m.segments.WithLabelValues(strconv.FormatBool(refined)).Inc()
}

func (m *metrics) RefinementObserved(d time.Duration, err error) {
	m.refineLatency.Observe(d.Seconds())
	if err != nil {
		m.refineFailures.Inc()
	}
}

func (m *metrics) RecordingChanged(active bool) {
	if active {
		m.recordings.Inc()
		m.recording.Set(1)
		return
	}
	m.recording.Set(0)
}

func (m *metrics) incHook(outcome string) { m.hooks.WithLabelValues(outcome).Inc() }

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (s *Server) metricsServe(ctxDone <-chan struct{}, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctxDone
		_ = server.Close()
	}()
	s.logger.Infof("metrics listening on http://%s/metrics", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Warnf("metrics server: %v", err)
	}
}
