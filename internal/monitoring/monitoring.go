package monitoring

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	nuts "github.com/vaudience/go-nuts"
)

var eventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dashboard_events_total",
		Help: "Domain events recorded by the dashboard",
	},
	[]string{"event"},
)

// Config holds monitoring configuration
type Config struct {
	MetricsEnabled bool
	MetricsPath    string
}

// Service provides monitoring functionality
type Service struct {
	config Config

	mu     sync.Mutex
	events map[string][]time.Time
	now    func() time.Time
}

// NewService creates a new monitoring service
func NewService(config Config) *Service {
	return &Service{
		config: config,
		events: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// RecordEvent records a monitored event with labels
func (s *Service) RecordEvent(eventName string, labels map[string]string) {
	ts := s.now()

	s.mu.Lock()
	s.events[eventName] = append(s.events[eventName], ts)
	s.mu.Unlock()

	if s.config.MetricsEnabled {
		eventsTotal.WithLabelValues(eventName).Inc()
	}
	nuts.L.Infof("[Monitoring] Event %s recorded at %v with labels: %s", eventName, ts.Format(time.RFC3339), formatLabels(labels))
}

// GetEventMetrics counts the events whose name starts with eventType that
// were recorded within duration. Entries older than that are dropped.
func (s *Service) GetEventMetrics(eventType string, duration time.Duration) (map[string]int64, error) {
	cutoff := s.now().Add(-duration)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64)
	for name, stamps := range s.events {
		kept := stamps[:0]
		for _, ts := range stamps {
			if !ts.Before(cutoff) {
				kept = append(kept, ts)
			}
		}
		s.events[name] = kept
		if strings.HasPrefix(name, eventType) && len(kept) > 0 {
			out[name] = int64(len(kept))
		}
	}
	return out, nil
}

func formatLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	return strings.Join(parts, ",")
}
