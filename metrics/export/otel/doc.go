// Package otel binds authcore metrics to OpenTelemetry observable
// instruments.
//
// Every instrument comes from the internaldefs tables, the audit drop
// counter included. Counters become Int64ObservableCounters. The validate
// latency histogram becomes a "_bucket" gauge carrying an "le" attribute per
// cumulative bucket plus a "_count" gauge. One callback takes a single
// [internaldefs.Read] per collection, so all values come from the same
// snapshot.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
