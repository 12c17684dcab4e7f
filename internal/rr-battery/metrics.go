package battery

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports the reported status as Prometheus gauges.
type Metrics struct {
	voltage        prometheus.Gauge
	current        prometheus.Gauge
	capacity       prometheus.Gauge
	state          *prometheus.GaugeVec
	chargeVmax     prometheus.Gauge
	idleFullVmax   prometheus.Gauge
	energyFull     prometheus.Gauge
	reports        prometheus.Counter
	readFailures   prometheus.Counter
	reportFailures prometheus.Counter
}

// NewMetrics registers the battery metrics on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		voltage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redreactor_battery_voltage_volts",
			Help: "Averaged battery voltage",
		}),
		current: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redreactor_battery_current_milliamps",
			Help: "Averaged battery current, negative while charging",
		}),
		capacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redreactor_battery_capacity_percent",
			Help: "Estimated remaining capacity",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "redreactor_battery_state",
			Help: "1 for the current battery state",
		}, []string{"state"}),
		chargeVmax: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redreactor_battery_charge_vmax_volts",
			Help: "Voltage just before the last charge cycle completed",
		}),
		idleFullVmax: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redreactor_battery_idle_full_vmax_volts",
			Help: "Voltage when the battery was last found full",
		}),
		energyFull: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redreactor_battery_energy_full_uwh",
			Help: "Estimated energy of a full battery",
		}),
		reports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redreactor_reports_total",
			Help: "Number of status reports",
		}),
		readFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redreactor_sensor_read_failures_total",
			Help: "Number of failed sensor reads",
		}),
		reportFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redreactor_report_failures_total",
			Help: "Number of reports the driver did not accept",
		}),
	}
	collectors := []prometheus.Collector{
		m.voltage, m.current, m.capacity, m.state, m.chargeVmax,
		m.idleFullVmax, m.energyFull, m.reports, m.readFailures, m.reportFailures,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Publish(s Status) error {
	m.voltage.Set(s.AvgVoltage)
	m.current.Set(s.AvgCurrent)
	m.capacity.Set(float64(s.Capacity))
	for _, label := range stateLabels {
		v := 0.0
		if label == s.state.Label() {
			v = 1
		}
		m.state.WithLabelValues(label).Set(v)
	}
	m.chargeVmax.Set(s.ChargeVmax)
	m.idleFullVmax.Set(s.IdleFullVmax)
	m.energyFull.Set(float64(s.EnergyFull))
	m.reports.Inc()
	return nil
}

func (m *Metrics) ReadFailed() {
	m.readFailures.Inc()
}

func (m *Metrics) ReportFailed() {
	m.reportFailures.Inc()
}

// serveMetrics serves g on addr in the background.
func serveMetrics(addr string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server stopped: %v", err)
		}
	}()
	return srv
}
