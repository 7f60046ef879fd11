package metrics

import (
	"github.com/go-logr/logr"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/llm-d/llm-d-cpu-hotplug/internal/latency"
	"github.com/llm-d/llm-d-cpu-hotplug/internal/logging"
)

type collectorImpl struct {
	collectFunc  func(ch chan<- prom.Metric)
	describeFunc func(ch chan<- *prom.Desc)
}

func (c collectorImpl) Collect(ch chan<- prom.Metric) {
	c.collectFunc(ch)
}

func (c collectorImpl) Describe(ch chan<- *prom.Desc) {
	c.describeFunc(ch)
}

// OnlineReader reports the number of online and possible cores.
type OnlineReader interface {
	OnlineCount() int
	PossibleCount() int
}

// NewLatencyCollector exposes the latency tracker counters. The values are
// read from a single snapshot on every scrape.
func NewLatencyCollector(reader latency.Reader, instance string, log logr.Logger) prom.Collector {
	constLabels := prom.Labels{labelInstance: instance}
	count := prom.NewDesc(
		prom.BuildFQName(promNamespace, transitionSubsystem, "completed_total"),
		"Completed core transitions",
		[]string{labelDirection}, constLabels,
	)
	total := prom.NewDesc(
		prom.BuildFQName(promNamespace, transitionSubsystem, "latency_milliseconds_total"),
		"Accumulated latency of completed core transitions",
		[]string{labelDirection}, constLabels,
	)
	maxMs := prom.NewDesc(
		prom.BuildFQName(promNamespace, transitionSubsystem, "latency_max_milliseconds"),
		"Slowest completed core transition",
		[]string{labelDirection}, constLabels,
	)

	return collectorImpl{
		describeFunc: func(ch chan<- *prom.Desc) {
			ch <- count
			ch <- total
			ch <- maxMs
		},
		collectFunc: func(ch chan<- prom.Metric) {
			snap := reader.Snapshot()
			log.V(logging.TRACE).Info("Collecting latency metrics", "snapshot", snap)
			for _, dir := range []latency.Direction{latency.Up, latency.Down} {
				ch <- prom.MustNewConstMetric(count, prom.CounterValue, float64(snap.Count(dir)), string(dir))
				ch <- prom.MustNewConstMetric(total, prom.CounterValue, float64(snap.TotalMs(dir)), string(dir))
				ch <- prom.MustNewConstMetric(maxMs, prom.GaugeValue, float64(snap.MaxMs(dir)), string(dir))
			}
		},
	}
}

// NewCoreCollector exposes the online and possible core counts.
func NewCoreCollector(reader OnlineReader, instance string) prom.Collector {
	constLabels := prom.Labels{labelInstance: instance}
	online := prom.NewDesc(
		prom.BuildFQName(promNamespace, "cores", "online"),
		"Cores currently online",
		nil, constLabels,
	)
	possible := prom.NewDesc(
		prom.BuildFQName(promNamespace, "cores", "possible"),
		"Cores that can be brought online",
		nil, constLabels,
	)

	return collectorImpl{
		describeFunc: func(ch chan<- *prom.Desc) {
			ch <- online
			ch <- possible
		},
		collectFunc: func(ch chan<- prom.Metric) {
			ch <- prom.MustNewConstMetric(online, prom.GaugeValue, float64(reader.OnlineCount()))
			ch <- prom.MustNewConstMetric(possible, prom.GaugeValue, float64(reader.PossibleCount()))
		},
	}
}

// RegisterCollectors registers the latency and core collectors with reg.
func RegisterCollectors(reg prom.Registerer, reader latency.Reader, cores OnlineReader, instance string, log logr.Logger) error {
	log = log.WithName("collectors")
	for _, c := range []prom.Collector{
		NewLatencyCollector(reader, instance, log),
		NewCoreCollector(cores, instance),
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
