package attendance

import "math"

// Summary aggregates attendance entries.
type Summary struct {
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Band classifies an attendance percentage.
type Band string

const (
	BandGood    Band = "good"
	BandWarning Band = "warning"
	BandPoor    Band = "poor"
)

// AttendanceBand maps a percentage to good (>=75), warning (>=50) or poor.
func AttendanceBand(pct int) Band {
	switch {
	case pct >= 75:
		return BandGood
	case pct >= 50:
		return BandWarning
	default:
		return BandPoor
	}
}

// Percentage returns present/total*100 rounded to the nearest integer, or 0
// when total is 0.
func Percentage(present, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(present) / float64(total) * 100))
}

// ComputePercentage is the present percentage over entries.
func ComputePercentage(entries []Entry) int {
	return Summarize(entries).Percentage
}

// Summarize counts entries by status.
func Summarize(entries []Entry) Summary {
	var sum Summary
	for _, e := range entries {
		sum.add(e.Status)
	}
	sum.Percentage = Percentage(sum.Present, sum.Total)
	return sum
}

func (s *Summary) add(status Status) {
	s.Total++
	if status == StatusPresent {
		s.Present++
	} else {
		s.Absent++
	}
}

// StudentSummary counts only the student's own entries across the ledger.
func (s *Store) StudentSummary(studentID string) Summary {
	return SummarizeStudent(s.StudentAttendance(studentID), studentID)
}

// SummarizeStudent counts studentID's entries in records, ignoring everyone
// else on the roll-call.
func SummarizeStudent(records []AttendanceRecord, studentID string) Summary {
	var sum Summary
	for _, r := range records {
		for _, e := range r.Entries {
			if e.StudentID == studentID {
				sum.add(e.Status)
			}
		}
	}
	sum.Percentage = Percentage(sum.Present, sum.Total)
	return sum
}

// Overview is the admin dashboard view of the whole store.
type Overview struct {
	Batches    int     `json:"batches"`
	SubBatches int     `json:"sub_batches"`
	Students   int     `json:"students"`
	Records    int     `json:"records"`
	Attendance Summary `json:"attendance"`
	Band       Band    `json:"band"`
}

// Overview computes store-wide counts and the overall attendance rate.
func (s *Store) Overview() Overview {
	snap := s.Snapshot()
	ov := Overview{
		Batches:  len(snap.Batches),
		Students: len(snap.Students),
		Records:  len(snap.Records),
	}
	for _, b := range snap.Batches {
		ov.SubBatches += len(b.SubBatches)
	}
	var entries []Entry
	for _, r := range snap.Records {
		entries = append(entries, r.Entries...)
	}
	ov.Attendance = Summarize(entries)
	ov.Band = AttendanceBand(ov.Attendance.Percentage)
	return ov
}
