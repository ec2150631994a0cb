package eprime

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `*** Header-Begin ***
Experiment: slot_machine
SessionDate: 07-21-2005
StartTime: 11:11:11
*** Subject-Begin ***
Subject: 101
*** Block-Begin ***
Procedure: TrialProc
stim_time: 3400
run_start: 2000
*** Block-End ***
*** Block-Begin ***
Procedure: TrialProc
stim_time: 4400
run_start: 2000
*** Block-End ***
*** Subject-End ***
*** Header-End ***
`

func TestParseNestedFrames(t *testing.T) {
	lf, err := NewLogFrameParser().Parse(strings.NewReader(sampleLog))
	require.NoError(t, err)

	assert.Equal(t, 3, lf.TopLevel())
	assert.Len(t, lf.TopFrames(), 1)
	assert.Len(t, lf.Frames(), 4)
	assert.Equal(t, map[string]bool{"Header": true, "Subject": true, "Block": true}, lf.Levels())

	data := lf.ToTabularData()
	require.Len(t, data.Rows, 2)

	// Leaf keys come first, then ancestors outward; Experiment is renamed.
	wantColumns := []string{
		"Procedure", "stim_time", "run_start",
		"Subject",
		"ExperimentName", "SessionDate", "StartTime",
	}
	if diff := cmp.Diff(wantColumns, data.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "3400", data.Value(0, "stim_time"))
	assert.Equal(t, "4400", data.Value(1, "stim_time"))
	assert.Equal(t, "slot_machine", data.Value(0, "ExperimentName"))
	assert.Equal(t, "101", data.Value(1, "Subject"))
}

func TestParsePreservesColonsInValues(t *testing.T) {
	lf, err := NewLogFrameParser().Parse(strings.NewReader(sampleLog))
	require.NoError(t, err)
	assert.Equal(t, "11:11:11", lf.ToTabularData().Value(0, "StartTime"))
}

func TestParseRowPerLeafFrame(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("*** Session-Begin ***\n")
	for i := 0; i < 7; i++ {
		sb.WriteString("*** Trial-Begin ***\nx: 1\n*** Trial-End ***\n")
	}
	sb.WriteString("*** Session-End ***\n")

	lf, err := NewLogFrameParser().Parse(strings.NewReader(sb.String()))
	require.NoError(t, err)
	assert.Len(t, lf.ToTabularData().Rows, 7)
}

const flatLog = `*** Header-Begin ***
Experiment: slot_machine
*** Header-End ***
*** LogFrame-Begin ***
stim_time: 3400
*** LogFrame-End ***
*** LogFrame-Begin ***
stim_time: 4400
*** LogFrame-End ***
`

func TestParseFlatLogLevelsByMarkerName(t *testing.T) {
	lf, err := NewLogFrameParser().Parse(strings.NewReader(flatLog))
	require.NoError(t, err)

	// Frames at the same nesting depth still get distinct levels when their
	// marker names differ; every marker name shows up as a level.
	assert.Equal(t, map[string]bool{"Header": true, "LogFrame": true}, lf.Levels())
	assert.Equal(t, 2, lf.TopLevel())
	require.Len(t, lf.TopFrames(), 1)
	v, ok := lf.TopFrames()[0].Get("Experiment")
	require.True(t, ok)
	assert.Equal(t, "slot_machine", v)

	// Only the LogFrame frames are leaves; the header is not a row.
	data := lf.ToTabularData()
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "3400", data.Value(0, "stim_time"))
	assert.Equal(t, "4400", data.Value(1, "stim_time"))
}

func TestParseRepeatedMarkerNameSharesLevel(t *testing.T) {
	lf, err := NewLogFrameParser().Parse(strings.NewReader(flatLog))
	require.NoError(t, err)

	frames := lf.Frames()
	require.Len(t, frames, 3)
	assert.Equal(t, 2, frames[0].Level)
	assert.Equal(t, 1, frames[1].Level)
	assert.Equal(t, frames[1].Level, frames[2].Level)
}

const ambiguousLog = `*** Session-Begin ***
RT: 100
*** Trial-Begin ***
Procedure: TrialProc
RT: 250
*** Trial-End ***
*** Session-End ***
`

func TestParseRenamesAmbiguousColumns(t *testing.T) {
	lf, err := NewLogFrameParser().Parse(strings.NewReader(ambiguousLog))
	require.NoError(t, err)

	assert.True(t, lf.SkipColumns()["RT"])

	data := lf.ToTabularData()
	require.Len(t, data.Rows, 1)
	row := data.Rows[0]

	_, bare := row["RT"]
	assert.False(t, bare, "bare ambiguous name must not survive")
	assert.NotContains(t, data.Columns, "RT")

	// The Trial frame carries a Procedure key naming its level; the Session
	// frame falls back to its marker name.
	assert.Equal(t, "250", row["RT[TrialProc]"])
	assert.Equal(t, "100", row["RT[Session]"])
}

func TestParseWithCustomLevelNamer(t *testing.T) {
	parser := NewLogFrameParser().WithLevelNamer(func(f *Frame, levelName string) string {
		return levelName
	})
	lf, err := parser.Parse(strings.NewReader(ambiguousLog))
	require.NoError(t, err)

	row := lf.ToTabularData().Rows[0]
	assert.Equal(t, "250", row["RT[Trial]"])
	assert.Equal(t, "100", row["RT[Session]"])
}

func TestParseUnclosedFrameFails(t *testing.T) {
	input := `*** Header-Begin ***
Experiment: x
*** Block-Begin ***
a: 1
*** Block-End ***
`
	_, err := NewLogFrameParser().Parse(strings.NewReader(input))
	require.Error(t, err)
	var damaged *DamagedFileError
	require.ErrorAs(t, err, &damaged)
	assert.Equal(t, 1, damaged.Line, "should point at the begin-marker left open")
	assert.Contains(t, damaged.Error(), "line 1")
}

func TestParsePermissiveWithMalformedLines(t *testing.T) {
	input := `*** Weird ***
*** Block-Begin ***
no delimiter on this line
: valueless key
a: 1
*** Block-End ***
`
	lf, err := NewLogFrameParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	data := lf.ToTabularData()
	require.Len(t, data.Rows, 1)
	assert.Equal(t, "1", data.Value(0, "a"))
}

func TestParseEmptyInput(t *testing.T) {
	lf, err := NewLogFrameParser().Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, lf.ToTabularData().Rows)
	assert.Equal(t, 0, lf.TopLevel())
}

func TestCanParse(t *testing.T) {
	p := NewLogFrameParser()
	assert.True(t, p.CanParse([]string{"*** Header-Begin ***", "Experiment: x"}))
	assert.True(t, p.CanParse([]string{"garbage", "*** LogFrame-Begin ***"}))
	assert.False(t, p.CanParse([]string{"a\tb", "1\t2"}))
	assert.False(t, p.CanParse(nil))
}
