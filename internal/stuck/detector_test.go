package stuck

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		WindowSize:        10,
		EvaluateEvery:     3,
		RepeatingN:        3,
		RepeatingMinCount: 3,
		SimilarityThresh:  0.8,
		StepTimeout:       5 * time.Second,
		NoProgressWindow:  10 * time.Second,
		Cooldown:          30 * time.Second,
	}
}

func record(name string, ts time.Time, success bool, dur time.Duration, step int) ActionRecord {
	return ActionRecord{
		ActionName: name,
		Timestamp:  ts,
		Duration:   dur,
		Success:    success,
		StepNumber: step,
	}
}

func TestDetector_NotStuckBelowEvaluationCadence(t *testing.T) {
	d := NewDetector(testConfig())
	base := time.Now()

	report := d.Record(record("click_button", base, false, time.Second, 1))
	assert.False(t, report.IsStuck)

	report = d.Record(record("click_button", base.Add(time.Second), false, time.Second, 2))
	assert.False(t, report.IsStuck)
}

func TestDetector_RepeatingActionsTrigger(t *testing.T) {
	d := NewDetector(testConfig())
	base := time.Now()

	var last Report
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		last = d.Record(record("click same button", ts, false, time.Second, i+1))
	}

	require.True(t, last.IsStuck)
	assert.Equal(t, ReasonRepeating, last.Reason)
	assert.NotEmpty(t, last.Summary)
}

func TestDetector_ConsecutiveFailuresTrigger(t *testing.T) {
	d := NewDetector(testConfig())
	base := time.Now()

	// Distinct action names so the repeating trigger (checked first) does
	// not also fire.
	actions := []string{"open_tab", "click_search", "read_page"}
	var last Report
	for i, name := range actions {
		ts := base.Add(time.Duration(i) * time.Second)
		last = d.Record(record(name, ts, false, time.Second, i+1))
	}

	require.True(t, last.IsStuck)
	assert.Equal(t, ReasonConsecutiveFailure, last.Reason)
}

func TestDetector_StepTimeoutTrigger(t *testing.T) {
	d := NewDetector(testConfig())
	base := time.Now()

	d.Record(record("open_tab", base, true, time.Second, 1))
	d.Record(record("click_search", base.Add(time.Second), true, time.Second, 2))
	report := d.Record(record("wait_for_results", base.Add(2*time.Second), true, 10*time.Second, 3))

	require.True(t, report.IsStuck)
	assert.Equal(t, ReasonStepTimeout, report.Reason)
}

func TestDetector_NoProgressTrigger(t *testing.T) {
	d := NewDetector(testConfig())
	base := time.Now()

	d.Record(record("open_tab", base, true, time.Second, 1))
	d.Record(record("click_search", base.Add(time.Second), false, time.Second, 2))
	report := d.Record(record("read_page", base.Add(20*time.Second), false, time.Second, 3))

	require.True(t, report.IsStuck)
	assert.Equal(t, ReasonNoProgress, report.Reason)
}

func TestDetector_CooldownSuppressesReport(t *testing.T) {
	d := NewDetector(testConfig())
	base := time.Now()

	actions := []string{"open_tab", "click_search", "read_page"}
	var last Report
	for i, name := range actions {
		ts := base.Add(time.Duration(i) * time.Second)
		last = d.Record(record(name, ts, false, time.Second, i+1))
	}
	require.True(t, last.IsStuck)

	// Another evaluation cadence hit, still within the cooldown window.
	for i, name := range actions {
		ts := base.Add(time.Duration(4+i) * time.Second)
		last = d.Record(record(name, ts, false, time.Second, 4+i))
	}
	assert.False(t, last.IsStuck)
}

func TestDetector_ResetClearsState(t *testing.T) {
	d := NewDetector(testConfig())
	base := time.Now()

	actions := []string{"open_tab", "click_search", "read_page"}
	for i, name := range actions {
		ts := base.Add(time.Duration(i) * time.Second)
		d.Record(record(name, ts, false, time.Second, i+1))
	}

	d.Reset()

	// Fresh window; failures before reset must not count toward a trigger.
	var last Report
	for i, name := range actions {
		ts := base.Add(time.Duration(100+i) * time.Second)
		last = d.Record(record(name, ts, true, time.Second, i+1))
	}
	assert.False(t, last.IsStuck)
}
