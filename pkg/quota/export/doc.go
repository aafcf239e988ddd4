// Package export serializes usage records for dashboards and
// reporting. CSV output flattens the endpoint breakdown into a JSON
// cell; JSON output preserves the record structure as-is.
package export
