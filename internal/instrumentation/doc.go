// Package instrumentation provides OpenTelemetry metrics for the sync engine,
// exported through Prometheus.
//
// The Provider owns the meter provider and the scrape handler; Metrics is a
// nil-safe recorder handed to the components that emit measurements, so
// wiring metrics stays optional everywhere.
package instrumentation
