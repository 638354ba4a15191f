// Package batch converts many documents to one output format.
//
// Engine.Convert resolves an output directory, checks that every document
// maps to a distinct output file, then converts either sequentially or through
// a weighted semaphore that admits at most MaxWorkers compilations at a time,
// in submission order. Results always come back in submission order.
//
// With ContinueOnError every document yields a Result; failures, including
// panics inside a conversion, become Success=false entries. Without it the
// first failure stops new work: in-flight conversions finish, later documents
// are left out of Results and counted by Outcome.Skipped.
//
// When GenerateIndex is set and something succeeded, an index.html (HTML
// batches) or index.md artifact listing the outputs is written next to them.
// Outcome.Stats derives rates and averages; figures that would divide by zero
// are Metric values with Valid=false and render as "N/A".
package batch
