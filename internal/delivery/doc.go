// Package delivery moves beacons from trackers to their destinations. The Hub
// accepts records without ever blocking the tracker and forwards each one, in
// order, to pluggable sinks such as structured logs, Prometheus metrics,
// Pub/Sub, Postgres, or an object-storage archive. Command and Queue adapt the
// hub to the two provider conventions a tracker knows how to call.
package delivery
