// Package main hosts the playback beacon daemon.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, and session endpoints. A player attaches with its
//     tracker options, in-band data-setup attribute, and initial state; afterwards it reports each player event
//     together with a state snapshot.
//   - Tracking: internal/session keeps one player.Remote and tracker.Tracker per attached player. Events for one
//     session are serialized; different sessions run concurrently.
//   - Providers: each tracker is handed the capability named by provider.kind. "primary" emulates the global
//     ga("send", "event", fields) call, "legacy" the _gaq.push(["_trackEvent", ...]) queue, "none" leaves the
//     tracker on its no-op provider.
//   - Delivery & fanout: both capabilities emit records into the delivery Hub, which forwards each one to the
//     configured sinks (zap log, Prometheus, Pub/Sub, Postgres, GCS archive). Delivery is best-effort: a full
//     buffer drops records and sink failures are logged, never retried.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging; Prometheus
//     metrics are exported via the metrics middleware and /metrics handler.
//
// Quick checklist:
//   - Configure env vars: BEACON_SERVER_PORT, BEACON_PROVIDER_KIND, BEACON_TRACKER_PERCENTS_PLAYED_INTERVAL,
//     BEACON_PUBSUB_PROJECT_ID/BEACON_PUBSUB_TOPIC_NAME, BEACON_DB_DSN, BEACON_ARCHIVE_GCS_BUCKET,
//     BEACON_SESSION_IDLE_TIMEOUT_SECONDS.
//   - Run locally: go run ./cmd/beacond -config config.yaml (or rely solely on env overrides).
//   - Shutdown: SIGINT/SIGTERM stops the HTTP server, flushes the hub, then closes external clients.
package main
