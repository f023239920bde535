package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReport(t *testing.T) {
	r := NewReport()
	assert.True(t, r.Valid, "new report should be valid")
	assert.Empty(t, r.Errors)
	assert.Empty(t, r.Warnings)
	assert.Empty(t, r.Info)
	assert.Equal(t, "0 errors, 0 warnings, 0 info", r.Summary)
}

func TestAddError(t *testing.T) {
	r := NewReport()
	r.AddError(Result{Stage: StageLoad, Message: "missing column"})

	assert.False(t, r.Valid, "report with error should be invalid")
	require.Len(t, r.Errors, 1)
	assert.Equal(t, SeverityError, r.Errors[0].Severity)
	assert.Equal(t, "1 errors, 0 warnings, 0 info", r.Summary)
}

func TestAddWarning(t *testing.T) {
	r := NewReport()
	r.AddWarning(Result{Stage: StageLoad, Message: "rows dropped"})

	assert.True(t, r.Valid, "warnings should not invalidate report")
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, SeverityWarning, r.Warnings[0].Severity)
}

func TestAddInfo(t *testing.T) {
	r := NewReport()
	r.AddInfo(Result{Stage: StageEstimate, Message: "zero-rated"})

	assert.True(t, r.Valid)
	assert.Len(t, r.Info, 1)
}

func TestMerge(t *testing.T) {
	r1 := NewReport()
	r1.AddWarning(Result{Stage: StageLoad, Message: "warn1"})

	r2 := NewReport()
	r2.AddError(Result{Stage: StageForecast, Message: "err1"})
	r2.AddWarning(Result{Stage: StageForecast, Message: "warn2"})
	r2.AddInfo(Result{Stage: StageEstimate, Message: "info1"})

	r1.Merge(r2)

	assert.False(t, r1.Valid, "merged report should be invalid when other has errors")
	assert.Len(t, r1.Errors, 1)
	assert.Len(t, r1.Warnings, 2)
	assert.Len(t, r1.Info, 1)
	assert.Equal(t, "1 errors, 2 warnings, 1 info", r1.Summary)
}

func TestMergeValidIntoValid(t *testing.T) {
	r1 := NewReport()
	r2 := NewReport()
	r2.AddInfo(Result{Stage: StageAggregate, Message: "note"})

	r1.Merge(r2)
	r1.Merge(nil)

	assert.True(t, r1.Valid, "merging two valid reports should stay valid")
	assert.Len(t, r1.Info, 1)
}

func TestByStage(t *testing.T) {
	r := NewReport()
	r.AddInfo(Result{Stage: StageForecast, Message: "params"})
	r.AddWarning(Result{Stage: StageLoad, Message: "dropped"})
	r.AddError(Result{Stage: StageForecast, Message: "insufficient"})

	got := r.ByStage(StageForecast)
	require.Len(t, got, 2)
	assert.Equal(t, "insufficient", got[0].Message, "errors come first")
	assert.Equal(t, "params", got[1].Message)
	assert.Empty(t, r.ByStage(StageEstimate))
}
