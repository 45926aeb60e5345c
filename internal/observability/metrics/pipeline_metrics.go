package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Processor outcomes recorded per event.
const (
	OutcomeProcessed   = "processed"
	OutcomeRetry       = "retry"
	OutcomeError       = "error"
	OutcomeInterrupted = "interrupted"
)

// PipelineMetrics tracks the webhook ingest and batch processing pipeline.
type PipelineMetrics struct {
	webhookReceived *prometheus.CounterVec
	eventsHandled   *prometheus.CounterVec
	batchDuration   prometheus.Observer
	batchSize       prometheus.Observer
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Pipeline returns the singleton pipeline metrics registry.
func Pipeline() *PipelineMetrics {
	return PipelineWithConfig(Config{})
}

// PipelineWithConfig returns the singleton pipeline metrics registry using config labels.
func PipelineWithConfig(cfg Config) *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return pipelineMetrics
}

// ResetPipelineMetricsForTest resets the pipeline metrics singleton for tests.
func ResetPipelineMetricsForTest() {
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
}

func newPipelineMetrics(registerer prometheus.Registerer, cfg Config) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	webhookReceived := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "partnersync_webhook_received_total",
		Help:        "Partner webhook deliveries by outcome.",
		ConstLabels: constLabels,
	}, []string{"status"})
	eventsHandled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "partnersync_processor_events_total",
		Help:        "Stored webhook events handled by the batch processor.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	batchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "partnersync_processor_batch_duration_seconds",
		Help:        "Wall time of one processing batch.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		ConstLabels: constLabels,
	})
	batchSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "partnersync_processor_batch_events",
		Help:        "Events fetched per processing batch.",
		Buckets:     []float64{0, 1, 2, 5, 10, 25, 50, 100},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(webhookReceived, eventsHandled, batchDuration, batchSize)

	return &PipelineMetrics{
		webhookReceived: webhookReceived,
		eventsHandled:   eventsHandled,
		batchDuration:   batchDuration,
		batchSize:       batchSize,
	}
}

// IncWebhookReceived counts one webhook call. status is the result status or rejection kind.
func (m *PipelineMetrics) IncWebhookReceived(status string) {
	if m == nil || m.webhookReceived == nil {
		return
	}
	m.webhookReceived.WithLabelValues(status).Inc()
}

// IncEventOutcome counts one event handled by the processor.
func (m *PipelineMetrics) IncEventOutcome(outcome string) {
	if m == nil || m.eventsHandled == nil {
		return
	}
	m.eventsHandled.WithLabelValues(outcome).Inc()
}

// ObserveBatch records the elapsed time and fetched size of one batch.
func (m *PipelineMetrics) ObserveBatch(duration time.Duration, fetched int) {
	if m == nil {
		return
	}
	if m.batchDuration != nil {
		m.batchDuration.Observe(duration.Seconds())
	}
	if m.batchSize != nil {
		m.batchSize.Observe(float64(fetched))
	}
}
