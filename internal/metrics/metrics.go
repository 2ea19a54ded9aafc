package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActiveIncidents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ambutrack_active_incidents",
			Help: "Number of unresolved incidents",
		},
	)
	IncidentsFiledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ambutrack_incidents_filed_total",
			Help: "Total SOS incidents filed",
		},
	)
	PositionWritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ambutrack_position_writes_total",
			Help: "Total responder position writes accepted",
		},
	)
	PositionWritesDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ambutrack_position_writes_dropped_total",
			Help: "Total responder position writes dropped by the write gate",
		},
	)
	RouteFetchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ambutrack_route_fetches_total",
			Help: "Total directions API fetches",
		},
	)
	RouteFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ambutrack_route_fallbacks_total",
			Help: "Total straight-line route fallbacks",
		},
	)
	WebsocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ambutrack_websocket_connections",
			Help: "Current websocket connections",
		},
	)
	OutboxQueueSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ambutrack_outbox_queue_size",
			Help: "Outbox events awaiting publication",
		},
	)
)

func Init(mux *http.ServeMux) {
	prometheus.MustRegister(
		ActiveIncidents,
		IncidentsFiledTotal,
		PositionWritesTotal,
		PositionWritesDroppedTotal,
		RouteFetchesTotal,
		RouteFallbacksTotal,
		WebsocketConnections,
		OutboxQueueSize,
	)
	mux.Handle("/metrics", promhttp.Handler())
}

func StartGauges(ctx context.Context, db *pgxpool.Pool) {
	go func() {
		t := time.NewTicker(10 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				var cnt int
				_ = db.QueryRow(context.Background(), `SELECT COUNT(*) FROM incidents WHERE status <> 'RESOLVED'`).Scan(&cnt)
				ActiveIncidents.Set(float64(cnt))
			}
		}
	}()
	go func() {
		t := time.NewTicker(10 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				var cnt int
				_ = db.QueryRow(context.Background(), `SELECT COUNT(*) FROM outbox_events WHERE published_at IS NULL`).Scan(&cnt)
				OutboxQueueSize.Set(float64(cnt))
			}
		}
	}()
}
