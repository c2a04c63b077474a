// Package internaldefs holds the metric tables, bucket bounds and the
// scrape reader [Read] shared by the exporters.
//
// Both the Prometheus and OTel exporters read from here, so a rename
// changes every exporter at once.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
