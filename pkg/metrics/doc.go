/*
Package metrics provides Prometheus metrics collection, health
reporting, and timing helpers for the replica storage layer.

The metrics package defines and registers all replica metrics using
the Prometheus client library, giving observability into transaction
throughput, task set size, operation log growth, working set
occupancy, and sync activity. Metrics are exposed via an HTTP endpoint
for scraping by a Prometheus server.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │  Transactions: count, duration, busy count  │          │
	│  │  Tasks: total by backend                    │          │
	│  │  Operations: appended count, log length     │          │
	│  │  Working set: occupancy, size               │          │
	│  │  Sync: operations sent/received, duration   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Collector                      │          │
	│  │  - Polls a Storage backend every 15s        │          │
	│  │  - Updates the gauge metrics above           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Timer is a reusable helper for observing durations into a histogram
or histogram vec; callers start one with NewTimer and record it with
ObserveDuration or ObserveDurationVec when the operation finishes.

Collector samples a CollectorStore on a ticker and updates the gauge
metrics (task count, operation log length, working set occupancy and
size) under that backend's label. CollectorStore is a narrow interface
any storage.Storage satisfies through a small adapter in cmd/replica,
kept local to this package to avoid an import cycle with pkg/storage
(which imports pkg/metrics to record its own transaction counters).

HealthChecker tracks named components' health independently of
Prometheus and serves /health, /ready, and /live endpoints with JSON
bodies, following the liveness/readiness split common to container
orchestration platforms: liveness always succeeds while the process is
running, readiness fails until critical components (storage, sync)
report healthy.
*/
package metrics
