// ABOUTME: Tests for derived batch statistics.
// ABOUTME: Covers normal figures and the not-applicable guards.

package batch

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStats(t *testing.T) {
	out := &Outcome{
		Submitted: 2,
		Elapsed:   2 * time.Second,
		Results: []Result{
			{Name: "a", Success: true, Size: bytesPerMB},
			{Name: "b", Error: "boom", Size: 999},
		},
	}

	s := out.Stats()

	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, int64(bytesPerMB), s.TotalBytes, "failed sizes are not counted")
	assert.Equal(t, "50.0%", s.SuccessRate.Format(1, "%"))
	assert.Equal(t, "1.00", s.AvgPerDocument.String())
	assert.Equal(t, "0.50", s.MBPerSecond.String())
	assert.Equal(t, "1.00", s.DocsPerSecond.String())
}

func TestStats_ZeroElapsed(t *testing.T) {
	out := &Outcome{Submitted: 1, Results: []Result{{Name: "a", Success: true, Size: 10}}}

	s := out.Stats()

	assert.True(t, s.SuccessRate.Valid)
	assert.Equal(t, "0.00", s.AvgPerDocument.String())
	assert.False(t, s.MBPerSecond.Valid)
	assert.False(t, s.DocsPerSecond.Valid)
	assert.Equal(t, NotApplicable, s.DocsPerSecond.Format(2, " docs/s"))
}

func TestStats_NeverProducesNaNOrInf(t *testing.T) {
	s := (&Outcome{}).Stats()
	for _, m := range []Metric{s.SuccessRate, s.AvgPerDocument, s.MBPerSecond, s.DocsPerSecond} {
		assert.False(t, m.Valid)
		assert.False(t, math.IsNaN(m.Value))
		assert.False(t, math.IsInf(m.Value, 0))
	}
}
