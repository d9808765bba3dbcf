// Package metrics exposes prometheus instrumentation for the player.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ResolvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medusa_player_resolves_total",
		Help: "Schedule resolutions, by trigger.",
	}, []string{"reason"})

	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medusa_player_errors_total",
		Help: "Recovered errors, by kind.",
	}, []string{"kind"})

	ItemsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medusa_player_items_started_total",
		Help: "Items handed to the renderer.",
	})

	CompletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medusa_player_completions_total",
		Help: "Completion reports from the renderer, by outcome.",
	}, []string{"outcome"})

	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medusa_player_events_total",
		Help: "Live-update notifications received, by type.",
	}, []string{"type"})

	ChannelReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medusa_player_channel_reconnects_total",
		Help: "Live-update channel reconnect attempts.",
	})

	State = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "medusa_player_state",
		Help: "1 for the orchestrator's current state, 0 otherwise.",
	}, []string{"state"})

	LastHeartbeat = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "medusa_player_last_heartbeat_timestamp_seconds",
		Help: "Unix time of the last controller heartbeat.",
	})

	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medusa_player_content_cache_requests_total",
		Help: "Content cache lookups, by result.",
	}, []string{"result"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
