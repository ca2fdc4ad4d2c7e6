package attendance

import "time"

// Fixed ids of the demo data. The student ids line up with the demo login
// accounts so students can see their own attendance.
const (
	DemoBatchID     = "batch-1"
	DemoFrontendID  = "sub-batch-1"
	DemoBackendID   = "sub-batch-2"
	DemoStudentJohn = "student-1"
	DemoStudentJane = "student-2"
)

// DemoSnapshot is a small consistent dataset for local development.
func DemoSnapshot() Snapshot {
	day := time.Date(2023, time.January, 15, 0, 0, 0, 0, time.UTC)
	return Snapshot{
		Batches: []Batch{{
			ID:          DemoBatchID,
			Name:        "Web Development Bootcamp",
			Description: "Intensive web development training",
			Students:    []string{DemoStudentJohn, DemoStudentJane},
			SubBatches: []SubBatch{
				{
					ID:          DemoFrontendID,
					Name:        "Frontend Group",
					Description: "Focus on React, HTML, CSS",
					Students:    []string{DemoStudentJohn, DemoStudentJane},
				},
				{
					ID:          DemoBackendID,
					Name:        "Backend Group",
					Description: "Focus on Node.js, Express, MongoDB",
					Students:    []string{DemoStudentJohn},
				},
			},
			CreatedAt: time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		}},
		Students: []Student{
			{ID: DemoStudentJohn, Name: "John Doe", Email: "john@example.com", StudentID: "S10001", Batches: []string{DemoBatchID}},
			{ID: DemoStudentJane, Name: "Jane Smith", Email: "jane@example.com", StudentID: "S10002", Batches: []string{DemoBatchID}},
		},
		Records: []AttendanceRecord{
			{
				ID: "att-1", BatchID: DemoBatchID, SubBatchID: DemoFrontendID, Date: day,
				Entries: []Entry{
					{StudentID: DemoStudentJohn, Status: StatusPresent},
					{StudentID: DemoStudentJane, Status: StatusAbsent},
				},
			},
			{
				ID: "att-2", BatchID: DemoBatchID, SubBatchID: DemoBackendID, Date: day,
				Entries: []Entry{{StudentID: DemoStudentJohn, Status: StatusPresent}},
			},
		},
	}
}
