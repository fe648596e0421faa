package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram in the in-process metrics
// registry.
type MetricID uint8

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricRegisterSuccess
	MetricRegisterFailure
	MetricRegisterRateLimited
	MetricSessionCreated
	MetricSessionInvalidated
	MetricValidateSuccess
	MetricValidateFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricReuseRecovered
	MetricVerificationSent
	MetricVerificationSuccess
	MetricVerificationFailure
	MetricMFAEnrollStarted
	MetricMFAEnabled
	MetricMFASuccess
	MetricMFAFailure
	MetricRecoveryCodeUsed
	MetricPasswordChangeSuccess
	MetricPasswordChangeFailure
	MetricKeyRotation
	MetricPolicyReload
	MetricAdminLoginSuccess
	MetricAdminLoginFailure
	MetricAdminDenied
	MetricAdminAPIKeyUsed
	MetricValidateLatency // histogram

	MetricIDCount
)

// histogram bounds in microseconds, powers of ten up to 1s plus overflow.
var HistogramBoundsMicros = [8]uint64{1, 10, 100, 1000, 10000, 100000, 1000000, 0}

// Config controls which metric families are recorded.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// Metrics holds lock-free counters and optional latency histograms. A nil
// *Metrics or a disabled config makes every operation a no-op.
type Metrics struct {
	cfg        Config
	counters   [MetricIDCount]atomic.Uint64
	histograms [MetricIDCount][8]atomic.Uint64
}

// New creates a metrics registry.
func New(cfg Config) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return &Metrics{cfg: cfg}
}

// Inc increments a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= MetricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Observe records a duration into the metric's histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.cfg.EnableLatency || id >= MetricIDCount {
		return
	}
	micros := uint64(d.Microseconds())
	bucket := len(HistogramBoundsMicros) - 1
	for i, bound := range HistogramBoundsMicros[:len(HistogramBoundsMicros)-1] {
		if micros <= bound {
			bucket = i
			break
		}
	}
	m.histograms[id][bucket].Add(1)
}

// Snapshot is a point-in-time deep copy of all recorded metrics.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// Snapshot copies every non-zero counter and histogram.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		if v := m.counters[id].Load(); v > 0 {
			snap.Counters[id] = v
		}
		var buckets []uint64
		var nonZero bool
		for i := range m.histograms[id] {
			v := m.histograms[id][i].Load()
			if v > 0 {
				nonZero = true
			}
			buckets = append(buckets, v)
		}
		if nonZero {
			snap.Histograms[id] = buckets
		}
	}
	return snap
}
