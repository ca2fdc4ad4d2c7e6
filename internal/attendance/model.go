package attendance

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Status is the outcome for one student in one roll-call.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

// ParseStatus accepts both vocabularies seen in clients. The attendance-mode
// values online, offline and late all count as present.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "present", "online", "offline", "late":
		return StatusPresent, nil
	case "absent":
		return StatusAbsent, nil
	}
	return "", fmt.Errorf("unknown attendance status %q", s)
}

// SubBatch is a named subdivision of a batch roster.
type SubBatch struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Students    []string `json:"students"`
}

// Batch is a cohort of students sharing a training program.
type Batch struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Students    []string   `json:"students"`
	SubBatches  []SubBatch `json:"sub_batches"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SubBatch returns the sub-batch with the given id.
func (b Batch) SubBatch(id string) (SubBatch, bool) {
	if i := b.subBatchIndex(id); i >= 0 {
		return b.SubBatches[i], true
	}
	return SubBatch{}, false
}

func (b Batch) subBatchIndex(id string) int {
	return slices.IndexFunc(b.SubBatches, func(sb SubBatch) bool { return sb.ID == id })
}

// SubBatchInput describes a sub-batch to create alongside its batch.
type SubBatchInput struct {
	Name        string
	Description string
}

// Student is an enrolled learner. StudentID is the human-facing number.
type Student struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	StudentID string   `json:"student_id"`
	Batches   []string `json:"batches"`
}

// Entry is one student's status inside a record.
type Entry struct {
	StudentID string `json:"student_id"`
	Status    Status `json:"status"`
}

// AttendanceRecord is one roll-call for a sub-batch on a calendar day.
type AttendanceRecord struct {
	ID         string    `json:"id"`
	BatchID    string    `json:"batch_id"`
	SubBatchID string    `json:"sub_batch_id"`
	Date       time.Time `json:"date"`
	Entries    []Entry   `json:"entries"`
}

// HasStudent reports whether the record carries an entry for studentID.
func (r AttendanceRecord) HasStudent(studentID string) bool {
	return slices.ContainsFunc(r.Entries, func(e Entry) bool { return e.StudentID == studentID })
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateLayout is the wire format for record dates.
const DateLayout = "2006-01-02"

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// Snapshot is the full serialisable state of a Store.
type Snapshot struct {
	Batches  []Batch            `json:"batches"`
	Students []Student          `json:"students"`
	Records  []AttendanceRecord `json:"records"`
}

func addID(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

func removeID(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(v string) bool { return v == id })
}

func cloneIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return slices.Clone(ids)
}

func cloneBatch(b Batch) Batch {
	b.Students = cloneIDs(b.Students)
	subs := make([]SubBatch, len(b.SubBatches))
	for i, sb := range b.SubBatches {
		sb.Students = cloneIDs(sb.Students)
		subs[i] = sb
	}
	b.SubBatches = subs
	return b
}

func cloneStudent(s Student) Student {
	s.Batches = cloneIDs(s.Batches)
	return s
}

func cloneRecord(r AttendanceRecord) AttendanceRecord {
	r.Entries = slices.Clone(r.Entries)
	if r.Entries == nil {
		r.Entries = []Entry{}
	}
	return r
}
