package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the stream client's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	framesTotal     prometheus.Counter
	frameBytes      prometheus.Counter
	malformedFrames prometheus.Counter
	eventsTotal     *prometheus.CounterVec
	decodeErrors    *prometheus.CounterVec
	commandsSent    *prometheus.CounterVec
	commandsDropped prometheus.Counter
	sendFailures    prometheus.Counter
	connectFailures prometheus.Counter
	reconnects      prometheus.Counter
	handlerPanics   prometheus.Counter
	sinkDropped     *prometheus.CounterVec
	connectionState prometheus.Gauge
	recorderDropped prometheus.Counter
	recorderWritten prometheus.Counter
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_frames_total",
			Help: "Total number of inbound frames",
		}),
		frameBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_frame_bytes_total",
			Help: "Total bytes of inbound frames",
		}),
		malformedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_malformed_frames_total",
			Help: "Frames that could not be scanned",
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_events_total",
			Help: "Decoded events by type",
		}, []string{"type"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_decode_errors_total",
			Help: "Objects that failed to decode, by reason",
		}, []string{"reason"}),
		commandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_commands_sent_total",
			Help: "Commands written to the transport, by action",
		}, []string{"action"}),
		commandsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_commands_dropped_total",
			Help: "Commands discarded because their connection ended",
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_send_failures_total",
			Help: "Commands that failed to transmit",
		}),
		connectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_connect_failures_total",
			Help: "Connect cycles that exhausted their attempts",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_reconnects_total",
			Help: "Successful connects after the first",
		}),
		handlerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_handler_panics_total",
			Help: "Recovered handler panics",
		}),
		sinkDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_sink_dropped_total",
			Help: "Events dropped by a full downstream queue",
		}, []string{"sink"}),
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_connection_state",
			Help: "Connection state (0 disconnected, 1 connecting, 2 connected, 3 authenticating, 4 authenticated, 5 closing)",
		}),
		recorderDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_recorder_dropped_total",
			Help: "Frames the recorder could not buffer",
		}),
		recorderWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_recorder_written_total",
			Help: "Frames persisted by the recorder",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.framesTotal,
		m.frameBytes,
		m.malformedFrames,
		m.eventsTotal,
		m.decodeErrors,
		m.commandsSent,
		m.commandsDropped,
		m.sendFailures,
		m.connectFailures,
		m.reconnects,
		m.handlerPanics,
		m.sinkDropped,
		m.connectionState,
		m.recorderDropped,
		m.recorderWritten,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) FrameReceived(size int) {
	if m == nil {
		return
	}
	m.framesTotal.Inc()
	m.frameBytes.Add(float64(size))
}

func (m *Metrics) MalformedFrame() {
	if m == nil {
		return
	}
	m.malformedFrames.Inc()
}

func (m *Metrics) EventDecoded(kind string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) DecodeError(reason string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) CommandSent(action string) {
	if m == nil {
		return
	}
	m.commandsSent.WithLabelValues(action).Inc()
}

func (m *Metrics) CommandDropped() {
	if m == nil {
		return
	}
	m.commandsDropped.Inc()
}

func (m *Metrics) SendFailure() {
	if m == nil {
		return
	}
	m.sendFailures.Inc()
}

func (m *Metrics) ConnectFailure() {
	if m == nil {
		return
	}
	m.connectFailures.Inc()
}

func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) HandlerPanic() {
	if m == nil {
		return
	}
	m.handlerPanics.Inc()
}

func (m *Metrics) SinkDropped(sink string) {
	if m == nil {
		return
	}
	m.sinkDropped.WithLabelValues(sink).Inc()
}

func (m *Metrics) SetConnectionState(state int) {
	if m == nil {
		return
	}
	m.connectionState.Set(float64(state))
}

func (m *Metrics) RecorderDropped() {
	if m == nil {
		return
	}
	m.recorderDropped.Inc()
}

func (m *Metrics) RecorderWritten(n int) {
	if m == nil {
		return
	}
	m.recorderWritten.Add(float64(n))
}
