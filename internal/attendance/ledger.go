package attendance

import (
	"errors"
	"fmt"
	"time"

	"attendboard/internal/notify"
)

// ErrDuplicateAttendance is returned by RecordAttendanceOnce when a record
// already exists for the batch, sub-batch and day.
var ErrDuplicateAttendance = errors.New("attendance already recorded for this date")

// ReferenceError reports a record naming a batch, sub-batch or student that
// does not exist.
type ReferenceError struct {
	Kind string // "batch", "sub-batch" or "student"
	ID   string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// checkRefs resolves every id rec points at. Callers hold the lock.
func (st *state) checkRefs(rec AttendanceRecord) error {
	bi := st.batchIndex(rec.BatchID)
	if bi < 0 {
		return &ReferenceError{Kind: "batch", ID: rec.BatchID}
	}
	if st.batches[bi].subBatchIndex(rec.SubBatchID) < 0 {
		return &ReferenceError{Kind: "sub-batch", ID: rec.SubBatchID}
	}
	for _, e := range rec.Entries {
		if st.studentIndex(e.StudentID) < 0 {
			return &ReferenceError{Kind: "student", ID: e.StudentID}
		}
	}
	return nil
}

// RecordAttendance appends a new record. It does not check for an existing
// record on the same day; callers wanting at most one per day use
// FindRecord or RecordAttendanceOnce.
func (s *Store) RecordAttendance(batchID, subBatchID string, date time.Time, entries []Entry) AttendanceRecord {
	rec := s.newRecord(batchID, subBatchID, date, entries)

	s.st.mu.Lock()
	s.st.records = append(s.st.records, cloneRecord(rec))
	s.st.mu.Unlock()

	s.emit(recordedNotification(rec))
	return rec
}

// RecordAttendanceOnce records attendance unless a record for the same
// batch, sub-batch and day exists, in which case the existing record is
// returned with ErrDuplicateAttendance and an informational notification.
// A record naming an unknown batch, sub-batch or student is refused with a
// *ReferenceError and no notification.
func (s *Store) RecordAttendanceOnce(batchID, subBatchID string, date time.Time, entries []Entry) (AttendanceRecord, error) {
	rec := s.newRecord(batchID, subBatchID, date, entries)

	s.st.mu.Lock()
	if existing, ok := s.st.findRecord(batchID, subBatchID, rec.Date); ok {
		s.st.mu.Unlock()
		s.emit(notify.Info("Attendance already recorded",
			"Attendance for this date and batch has already been recorded. Please choose another date or batch."))
		return existing, ErrDuplicateAttendance
	}
	if err := s.st.checkRefs(rec); err != nil {
		s.st.mu.Unlock()
		return AttendanceRecord{}, err
	}
	s.st.records = append(s.st.records, cloneRecord(rec))
	s.st.mu.Unlock()

	s.emit(recordedNotification(rec))
	return rec, nil
}

func (s *Store) newRecord(batchID, subBatchID string, date time.Time, entries []Entry) AttendanceRecord {
	return cloneRecord(AttendanceRecord{
		ID:         s.newID(),
		BatchID:    batchID,
		SubBatchID: subBatchID,
		Date:       Day(date),
		Entries:    entries,
	})
}

func recordedNotification(rec AttendanceRecord) notify.Notification {
	return notify.Success(fmt.Sprintf("Attendance recorded for %s", rec.Date.Format(DateLayout)))
}

// FindRecord returns the first record for the batch, sub-batch and day.
func (s *Store) FindRecord(batchID, subBatchID string, date time.Time) (AttendanceRecord, bool) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return s.st.findRecord(batchID, subBatchID, Day(date))
}

func (st *state) findRecord(batchID, subBatchID string, day time.Time) (AttendanceRecord, bool) {
	for _, r := range st.records {
		if r.BatchID == batchID && r.SubBatchID == subBatchID && r.Date.Equal(day) {
			return cloneRecord(r), true
		}
	}
	return AttendanceRecord{}, false
}

// UpdateAttendance replaces the record with the same id wholesale.
func (s *Store) UpdateAttendance(rec AttendanceRecord) bool {
	rec = cloneRecord(rec)
	rec.Date = Day(rec.Date)

	s.st.mu.Lock()
	i := s.st.recordIndex(rec.ID)
	if i < 0 {
		s.st.mu.Unlock()
		return false
	}
	s.st.records[i] = rec
	s.st.mu.Unlock()

	s.emit(notify.Success(fmt.Sprintf("Attendance updated for %s", rec.Date.Format(DateLayout))))
	return true
}

// UpdateAttendanceChecked is UpdateAttendance that refuses, with a
// *ReferenceError, a replacement naming an unknown batch, sub-batch or
// student. A missing record is (false, nil).
func (s *Store) UpdateAttendanceChecked(rec AttendanceRecord) (bool, error) {
	rec = cloneRecord(rec)
	rec.Date = Day(rec.Date)

	s.st.mu.Lock()
	i := s.st.recordIndex(rec.ID)
	if i < 0 {
		s.st.mu.Unlock()
		return false, nil
	}
	if err := s.st.checkRefs(rec); err != nil {
		s.st.mu.Unlock()
		return false, err
	}
	s.st.records[i] = rec
	s.st.mu.Unlock()

	s.emit(notify.Success(fmt.Sprintf("Attendance updated for %s", rec.Date.Format(DateLayout))))
	return true, nil
}

// Record returns the record with the given id.
func (s *Store) Record(id string) (AttendanceRecord, bool) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if i := s.st.recordIndex(id); i >= 0 {
		return cloneRecord(s.st.records[i]), true
	}
	return AttendanceRecord{}, false
}

// Records returns the whole ledger in insertion order.
func (s *Store) Records() []AttendanceRecord {
	return s.filterRecords(func(AttendanceRecord) bool { return true })
}

// StudentAttendance returns every record with an entry for the student, in
// insertion order.
func (s *Store) StudentAttendance(studentID string) []AttendanceRecord {
	return s.filterRecords(func(r AttendanceRecord) bool { return r.HasStudent(studentID) })
}

// BatchAttendance returns every record of the batch, in insertion order.
func (s *Store) BatchAttendance(batchID string) []AttendanceRecord {
	return s.filterRecords(func(r AttendanceRecord) bool { return r.BatchID == batchID })
}

// SubBatchAttendance returns every record of the sub-batch, in insertion order.
func (s *Store) SubBatchAttendance(batchID, subBatchID string) []AttendanceRecord {
	return s.filterRecords(func(r AttendanceRecord) bool {
		return r.BatchID == batchID && r.SubBatchID == subBatchID
	})
}

func (s *Store) filterRecords(keep func(AttendanceRecord) bool) []AttendanceRecord {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	out := []AttendanceRecord{}
	for _, r := range s.st.records {
		if keep(r) {
			out = append(out, cloneRecord(r))
		}
	}
	return out
}
