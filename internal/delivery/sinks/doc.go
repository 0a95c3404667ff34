// Package sinks implements concrete beacon consumers such as Prometheus,
// Pub/Sub, Postgres, an object-storage archive and structured logging. Each
// sink satisfies the delivery.Sink interface and is safe for repeated
// Consume/Close cycles.
package sinks
