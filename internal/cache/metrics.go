package cache

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_cache_lookups_total",
			Help: "Cache lookups by key family and result",
		},
		[]string{"family", "result"},
	)

	sharedLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_cache_shared_loads_total",
			Help: "Loads answered by an in-flight call for the same key",
		},
		[]string{"family"},
	)
)

// family keeps label cardinality bounded: "levels:summary:<owner>:abc" ->
// "levels:summary", "permissions:a@x.com" -> "permissions".
func family(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if parts[0] == "levels" && len(parts) > 1 {
		return parts[0] + ":" + parts[1]
	}
	return parts[0]
}

func recordHit(key string)    { lookupsTotal.WithLabelValues(family(key), "hit").Inc() }
func recordMiss(key string)   { lookupsTotal.WithLabelValues(family(key), "miss").Inc() }
func recordShared(key string) { sharedLoadsTotal.WithLabelValues(family(key)).Inc() }
