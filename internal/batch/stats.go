// ABOUTME: Derived performance figures for a batch outcome
// ABOUTME: Any figure that would divide by zero is reported as not applicable

package batch

import (
	"strconv"
	"time"
)

// NotApplicable is how an invalid Metric renders.
const NotApplicable = "N/A"

// Metric is a derived figure that may be undefined.
type Metric struct {
	Value float64
	Valid bool
}

func ratio(num, den float64) Metric {
	if den <= 0 {
		return Metric{}
	}
	return Metric{Value: num / den, Valid: true}
}

// Format renders the value with the given number of decimals and a suffix,
// or NotApplicable.
func (m Metric) Format(decimals int, suffix string) string {
	if !m.Valid {
		return NotApplicable
	}
	return strconv.FormatFloat(m.Value, 'f', decimals, 64) + suffix
}

// String renders the metric with two decimals.
func (m Metric) String() string { return m.Format(2, "") }

const bytesPerMB = 1024 * 1024

// Stats are the aggregate figures reported for a batch.
type Stats struct {
	Total          int
	Succeeded      int
	Failed         int
	Skipped        int
	SuccessRate    Metric // percent
	Elapsed        time.Duration
	AvgPerDocument Metric // seconds
	TotalBytes     int64
	TotalMB        float64
	MBPerSecond    Metric
	DocsPerSecond  Metric
}

// Stats computes the outcome's figures. Only successful outputs count towards
// the output size.
func (o *Outcome) Stats() Stats {
	s := Stats{
		Total:     o.Total(),
		Succeeded: o.SuccessCount(),
		Failed:    o.FailedCount(),
		Skipped:   o.Skipped(),
		Elapsed:   o.Elapsed,
	}
	for _, r := range o.Successful() {
		s.TotalBytes += r.Size
	}
	s.TotalMB = float64(s.TotalBytes) / bytesPerMB

	seconds := o.Elapsed.Seconds()
	s.SuccessRate = ratio(float64(s.Succeeded)*100, float64(s.Total))
	s.AvgPerDocument = ratio(seconds, float64(s.Total))
	s.MBPerSecond = ratio(s.TotalMB, seconds)
	s.DocsPerSecond = ratio(float64(s.Total), seconds)
	return s
}
