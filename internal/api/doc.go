// Package api hosts the HTTP server, middleware, and REST handlers through
// which remote players report their lifecycle. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/sessions to attach a tracker to a player.
//   - POST /v1/sessions/{id}/events to report player events.
//   - POST /v1/sessions/{id}/beacons to send a custom beacon.
//   - GET /v1/sessions/{id}/beacons to read persisted beacons through the
//     BeaconRepository interface.
package api
