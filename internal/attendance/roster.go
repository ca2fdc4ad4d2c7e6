package attendance

import (
	"fmt"
	"slices"

	"attendboard/internal/notify"
)

// CreateBatch adds a batch with an empty roster and the given sub-batches.
func (s *Store) CreateBatch(name, description string, subBatches []SubBatchInput) Batch {
	b := Batch{
		ID:          s.newID(),
		Name:        name,
		Description: description,
		Students:    []string{},
		SubBatches:  make([]SubBatch, 0, len(subBatches)),
		CreatedAt:   s.now(),
	}
	for _, in := range subBatches {
		b.SubBatches = append(b.SubBatches, SubBatch{
			ID:          s.newID(),
			Name:        in.Name,
			Description: in.Description,
			Students:    []string{},
		})
	}

	s.st.mu.Lock()
	s.st.batches = append(s.st.batches, cloneBatch(b))
	s.st.mu.Unlock()

	s.emit(notify.Success(fmt.Sprintf("Batch %q has been created", b.Name)))
	return b
}

// UpdateBatch replaces the batch with the same id wholesale.
func (s *Store) UpdateBatch(b Batch) bool {
	s.st.mu.Lock()
	i := s.st.batchIndex(b.ID)
	if i < 0 {
		s.st.mu.Unlock()
		return false
	}
	s.st.batches[i] = cloneBatch(b)
	s.st.mu.Unlock()

	s.emit(notify.Success(fmt.Sprintf("Batch %q has been updated", b.Name)))
	return true
}

// DeleteBatch removes the batch, its id from every student, and its records.
func (s *Store) DeleteBatch(batchID string) bool {
	s.st.mu.Lock()
	i := s.st.batchIndex(batchID)
	if i < 0 {
		s.st.mu.Unlock()
		return false
	}
	name := s.st.batches[i].Name
	s.st.batches = slices.Delete(s.st.batches, i, i+1)
	for j := range s.st.students {
		s.st.students[j].Batches = removeID(s.st.students[j].Batches, batchID)
	}
	s.st.records = slices.DeleteFunc(s.st.records, func(r AttendanceRecord) bool {
		return r.BatchID == batchID
	})
	s.st.mu.Unlock()

	s.emit(notify.Success(fmt.Sprintf("Batch %q has been deleted", name)))
	return true
}

// CreateStudent adds a student. The batch ids are stored on the student only;
// the batches' rosters are left untouched. Use CreateStudentEnrolled for the
// reciprocal behavior.
func (s *Store) CreateStudent(name, email, studentID string, batchIDs []string) Student {
	st := Student{
		ID:        s.newID(),
		Name:      name,
		Email:     email,
		StudentID: studentID,
		Batches:   []string{},
	}
	for _, id := range batchIDs {
		st.Batches = addID(st.Batches, id)
	}

	s.st.mu.Lock()
	s.st.students = append(s.st.students, cloneStudent(st))
	s.st.mu.Unlock()

	s.emit(notify.Success(fmt.Sprintf("Student %q has been added", st.Name)))
	return st
}

// CreateStudentEnrolled adds a student and assigns them to every listed batch
// that exists, updating both sides. Unknown batch ids are dropped.
func (s *Store) CreateStudentEnrolled(name, email, studentID string, batchIDs []string) Student {
	st := Student{
		ID:        s.newID(),
		Name:      name,
		Email:     email,
		StudentID: studentID,
		Batches:   []string{},
	}

	s.st.mu.Lock()
	for _, id := range batchIDs {
		bi := s.st.batchIndex(id)
		if bi < 0 {
			continue
		}
		st.Batches = addID(st.Batches, id)
		s.st.batches[bi].Students = addID(s.st.batches[bi].Students, st.ID)
	}
	s.st.students = append(s.st.students, cloneStudent(st))
	s.st.mu.Unlock()

	s.emit(notify.Success(fmt.Sprintf("Student %q has been added", st.Name)))
	return st
}

// UpdateStudent replaces the student with the same id wholesale.
func (s *Store) UpdateStudent(st Student) bool {
	s.st.mu.Lock()
	i := s.st.studentIndex(st.ID)
	if i < 0 {
		s.st.mu.Unlock()
		return false
	}
	s.st.students[i] = cloneStudent(st)
	s.st.mu.Unlock()

	s.emit(notify.Success(fmt.Sprintf("Student %q has been updated", st.Name)))
	return true
}

// DeleteStudent removes the student from the roster, every batch and
// sub-batch, and every record's entries. Records themselves are kept.
func (s *Store) DeleteStudent(studentID string) bool {
	s.st.mu.Lock()
	i := s.st.studentIndex(studentID)
	if i < 0 {
		s.st.mu.Unlock()
		return false
	}
	name := s.st.students[i].Name
	s.st.students = slices.Delete(s.st.students, i, i+1)
	for bi := range s.st.batches {
		b := &s.st.batches[bi]
		b.Students = removeID(b.Students, studentID)
		for si := range b.SubBatches {
			b.SubBatches[si].Students = removeID(b.SubBatches[si].Students, studentID)
		}
	}
	for ri := range s.st.records {
		s.st.records[ri].Entries = slices.DeleteFunc(s.st.records[ri].Entries, func(e Entry) bool {
			return e.StudentID == studentID
		})
	}
	s.st.mu.Unlock()

	s.emit(notify.Success(fmt.Sprintf("Student %q has been deleted", name)))
	return true
}

// AssignStudentToBatch links student and batch on both sides. Idempotent.
func (s *Store) AssignStudentToBatch(studentID, batchID string) bool {
	s.st.mu.Lock()
	si, bi := s.st.studentIndex(studentID), s.st.batchIndex(batchID)
	if si < 0 || bi < 0 {
		s.st.mu.Unlock()
		return false
	}
	s.st.assign(si, bi)
	student, batch := s.st.students[si].Name, s.st.batches[bi].Name
	s.st.mu.Unlock()

	s.emit(notify.Success(fmt.Sprintf("%s added to %s", student, batch)))
	return true
}

func (st *state) assign(si, bi int) {
	st.students[si].Batches = addID(st.students[si].Batches, st.batches[bi].ID)
	st.batches[bi].Students = addID(st.batches[bi].Students, st.students[si].ID)
}

// UnassignStudentFromBatch unlinks student and batch, and removes the student
// from every sub-batch of that batch.
func (s *Store) UnassignStudentFromBatch(studentID, batchID string) bool {
	s.st.mu.Lock()
	si, bi := s.st.studentIndex(studentID), s.st.batchIndex(batchID)
	if si < 0 || bi < 0 {
		s.st.mu.Unlock()
		return false
	}
	s.st.students[si].Batches = removeID(s.st.students[si].Batches, batchID)
	b := &s.st.batches[bi]
	b.Students = removeID(b.Students, studentID)
	for i := range b.SubBatches {
		b.SubBatches[i].Students = removeID(b.SubBatches[i].Students, studentID)
	}
	student, batch := s.st.students[si].Name, b.Name
	s.st.mu.Unlock()

	s.emit(notify.Success(fmt.Sprintf("%s removed from %s", student, batch)))
	return true
}

// AssignStudentToSubBatch adds the student to a sub-batch, first enrolling
// them in the parent batch if needed. Idempotent.
func (s *Store) AssignStudentToSubBatch(studentID, batchID, subBatchID string) bool {
	s.st.mu.Lock()
	si, bi := s.st.studentIndex(studentID), s.st.batchIndex(batchID)
	if si < 0 || bi < 0 {
		s.st.mu.Unlock()
		return false
	}
	sbi := s.st.batches[bi].subBatchIndex(subBatchID)
	if sbi < 0 {
		s.st.mu.Unlock()
		return false
	}
	if !slices.Contains(s.st.batches[bi].Students, studentID) {
		s.st.assign(si, bi)
	}
	sb := &s.st.batches[bi].SubBatches[sbi]
	sb.Students = addID(sb.Students, studentID)
	student, subBatch := s.st.students[si].Name, sb.Name
	s.st.mu.Unlock()

	s.emit(notify.Success(fmt.Sprintf("%s added to %s", student, subBatch)))
	return true
}

// UnassignStudentFromSubBatch removes the student from the sub-batch only.
func (s *Store) UnassignStudentFromSubBatch(studentID, batchID, subBatchID string) bool {
	s.st.mu.Lock()
	si, bi := s.st.studentIndex(studentID), s.st.batchIndex(batchID)
	if si < 0 || bi < 0 {
		s.st.mu.Unlock()
		return false
	}
	sbi := s.st.batches[bi].subBatchIndex(subBatchID)
	if sbi < 0 {
		s.st.mu.Unlock()
		return false
	}
	sb := &s.st.batches[bi].SubBatches[sbi]
	sb.Students = removeID(sb.Students, studentID)
	student, subBatch := s.st.students[si].Name, sb.Name
	s.st.mu.Unlock()

	s.emit(notify.Success(fmt.Sprintf("%s removed from %s", student, subBatch)))
	return true
}

// Batches returns every batch in creation order.
func (s *Store) Batches() []Batch {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return cloneAll(s.st.batches, cloneBatch)
}

// Batch returns the batch with the given id.
func (s *Store) Batch(id string) (Batch, bool) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if i := s.st.batchIndex(id); i >= 0 {
		return cloneBatch(s.st.batches[i]), true
	}
	return Batch{}, false
}

// Students returns every student in creation order.
func (s *Store) Students() []Student {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return cloneAll(s.st.students, cloneStudent)
}

// Student returns the student with the given id.
func (s *Store) Student(id string) (Student, bool) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if i := s.st.studentIndex(id); i >= 0 {
		return cloneStudent(s.st.students[i]), true
	}
	return Student{}, false
}

// StudentsInSubBatch resolves a sub-batch roster to students, skipping ids
// that no longer exist. ok is false when the batch or sub-batch is unknown.
func (s *Store) StudentsInSubBatch(batchID, subBatchID string) (students []Student, ok bool) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	bi := s.st.batchIndex(batchID)
	if bi < 0 {
		return nil, false
	}
	sb, ok := s.st.batches[bi].SubBatch(subBatchID)
	if !ok {
		return nil, false
	}
	students = []Student{}
	for _, id := range sb.Students {
		if i := s.st.studentIndex(id); i >= 0 {
			students = append(students, cloneStudent(s.st.students[i]))
		}
	}
	return students, true
}
