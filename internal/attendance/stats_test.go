package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePercentage(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		want    int
	}{
		{"empty", nil, 0},
		{"half", []Entry{{"a", StatusPresent}, {"b", StatusPresent}, {"c", StatusAbsent}, {"d", StatusAbsent}}, 50},
		{"rounds up", []Entry{{"a", StatusPresent}, {"b", StatusPresent}, {"c", StatusAbsent}}, 67},
		{"rounds down", []Entry{{"a", StatusPresent}, {"b", StatusAbsent}, {"c", StatusAbsent}}, 33},
		{"all present", []Entry{{"a", StatusPresent}}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputePercentage(tt.entries))
		})
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize([]Entry{{"a", StatusPresent}, {"b", StatusAbsent}, {"c", StatusPresent}, {"d", StatusPresent}})
	assert.Equal(t, Summary{Present: 3, Absent: 1, Total: 4, Percentage: 75}, got)
}

func TestAttendanceBand(t *testing.T) {
	assert.Equal(t, BandGood, AttendanceBand(75))
	assert.Equal(t, BandWarning, AttendanceBand(74))
	assert.Equal(t, BandWarning, AttendanceBand(50))
	assert.Equal(t, BandPoor, AttendanceBand(49))
}

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]Status{
		"present": StatusPresent,
		"online":  StatusPresent,
		"offline": StatusPresent,
		"Late":    StatusPresent,
		"absent":  StatusAbsent,
	} {
		got, err := ParseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseStatus("excused")
	assert.Error(t, err)
}

func TestOverview(t *testing.T) {
	s := NewStore()
	assert.Equal(t, Overview{Band: BandPoor}, s.Overview())

	s.Restore(DemoSnapshot())
	ov := s.Overview()
	assert.Equal(t, 1, ov.Batches)
	assert.Equal(t, 2, ov.SubBatches)
	assert.Equal(t, 2, ov.Students)
	assert.Equal(t, 2, ov.Records)
	assert.Equal(t, Summary{Present: 2, Absent: 1, Total: 3, Percentage: 67}, ov.Attendance)
	assert.Equal(t, BandWarning, ov.Band)
}
