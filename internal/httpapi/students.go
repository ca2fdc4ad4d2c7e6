package httpapi

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"attendboard/internal/attendance"
	"attendboard/internal/auth"
)

type createStudentRequest struct {
	Name      string   `json:"name" binding:"required"`
	Email     string   `json:"email" binding:"required,email"`
	StudentID string   `json:"student_id" binding:"required"`
	Batches   []string `json:"batches"`
	// Enroll also adds the student to each batch's roster.
	Enroll bool `json:"enroll"`
}

type updateStudentRequest struct {
	Name      string   `json:"name" binding:"required"`
	Email     string   `json:"email" binding:"required,email"`
	StudentID string   `json:"student_id" binding:"required"`
	Batches   []string `json:"batches"`
}

// ListStudents lists every student. q narrows the list to names, emails or
// student ids containing it, ignoring case.
func (h *Handler) ListStudents(c *gin.Context) {
	students := h.store.Students()
	if q := strings.ToLower(strings.TrimSpace(c.Query("q"))); q != "" {
		students = slices.DeleteFunc(students, func(s attendance.Student) bool {
			return !strings.Contains(strings.ToLower(s.Name), q) &&
				!strings.Contains(strings.ToLower(s.Email), q) &&
				!strings.Contains(strings.ToLower(s.StudentID), q)
		})
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

// selfOrAdmin aborts with 403 unless the caller may view the student in :id.
func selfOrAdmin(c *gin.Context) bool {
	u, _ := auth.UserFrom(c)
	if !canViewStudent(u, c.Param("id")) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return false
	}
	return true
}

func (h *Handler) GetStudent(c *gin.Context) {
	if !selfOrAdmin(c) {
		return
	}
	st, ok := h.store.Student(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": st})
}

func (h *Handler) CreateStudent(c *gin.Context) {
	var req createStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	st, rec := h.scoped()
	var student attendance.Student
	if req.Enroll {
		student = st.CreateStudentEnrolled(req.Name, req.Email, req.StudentID, req.Batches)
	} else {
		student = st.CreateStudent(req.Name, req.Email, req.StudentID, req.Batches)
	}
	h.metrics.Mutation("create_student", true)
	c.JSON(http.StatusCreated, gin.H{"student": student, "notification": rec.Last()})
}

func (h *Handler) UpdateStudent(c *gin.Context) {
	var req updateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	student := attendance.Student{
		ID:        c.Param("id"),
		Name:      req.Name,
		Email:     req.Email,
		StudentID: req.StudentID,
		Batches:   req.Batches,
	}

	st, rec := h.scoped()
	ok := st.UpdateStudent(student)
	if ok {
		student, _ = h.store.Student(student.ID)
	}
	h.applied(c, "update_student", ok, rec, "student", student)
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	st, rec := h.scoped()
	h.applied(c, "delete_student", st.DeleteStudent(c.Param("id")), rec, "student", nil)
}

func (h *Handler) StudentAttendance(c *gin.Context) {
	if !selfOrAdmin(c) {
		return
	}
	records, ok := h.studentRecords(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *Handler) StudentSummary(c *gin.Context) {
	if !selfOrAdmin(c) {
		return
	}
	records, ok := h.studentRecords(c)
	if !ok {
		return
	}
	sum := attendance.SummarizeStudent(records, c.Param("id"))
	c.JSON(http.StatusOK, gin.H{
		"summary": sum,
		"band":    attendance.AttendanceBand(sum.Percentage),
	})
}

// monthLayout is the wire format of the month filter.
const monthLayout = "2006-01"

// studentRecords returns the records of the student in :id, newest first,
// narrowed by the optional batch_id and month (YYYY-MM) query parameters.
func (h *Handler) studentRecords(c *gin.Context) ([]attendance.AttendanceRecord, bool) {
	batchID := c.Query("batch_id")
	var month time.Time
	if m := c.Query("month"); m != "" {
		t, err := time.Parse(monthLayout, m)
		if err != nil {
			badRequest(c, fmt.Errorf("invalid month %q, want YYYY-MM", m))
			return nil, false
		}
		month = t
	}

	records := slices.DeleteFunc(h.store.StudentAttendance(c.Param("id")), func(r attendance.AttendanceRecord) bool {
		if batchID != "" && r.BatchID != batchID {
			return true
		}
		if !month.IsZero() {
			y, m, _ := r.Date.Date()
			return y != month.Year() || m != month.Month()
		}
		return false
	})
	slices.SortStableFunc(records, func(a, b attendance.AttendanceRecord) int {
		return b.Date.Compare(a.Date)
	})
	return records, true
}
