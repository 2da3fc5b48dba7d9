package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/krisalay/coordcache/types"
)

// Prometheus exports cache events as coordcache_cache_events_total{cache,event}.
type Prometheus struct {
	hit, miss, set, del, eviction, expire prometheus.Counter
}

var _ types.Metrics = (*Prometheus)(nil)

// NewPrometheus registers the event counter on reg and binds it to one cache name.
// Registering a second cache on the same registry reuses the existing collector.
func NewPrometheus(reg prometheus.Registerer, cache string) (*Prometheus, error) {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coordcache",
		Subsystem: "cache",
		Name:      "events_total",
		Help:      "Two-tier cache events by type.",
	}, []string{"cache", "event"})

	if err := reg.Register(vec); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		vec = are.ExistingCollector.(*prometheus.CounterVec)
	}

	return &Prometheus{
		hit:      vec.WithLabelValues(cache, "hit"),
		miss:     vec.WithLabelValues(cache, "miss"),
		set:      vec.WithLabelValues(cache, "set"),
		del:      vec.WithLabelValues(cache, "delete"),
		eviction: vec.WithLabelValues(cache, "eviction"),
		expire:   vec.WithLabelValues(cache, "expire"),
	}, nil
}

func (p *Prometheus) Hit()      { p.hit.Inc() }
func (p *Prometheus) Miss()     { p.miss.Inc() }
func (p *Prometheus) Set()      { p.set.Inc() }
func (p *Prometheus) Delete()   { p.del.Inc() }
func (p *Prometheus) Eviction() { p.eviction.Inc() }
func (p *Prometheus) Expire()   { p.expire.Inc() }
