package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendboard/internal/attendance"
)

type entryRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	Status    string `json:"status" binding:"required,attendance_status"`
}

type recordRequest struct {
	BatchID    string         `json:"batch_id" binding:"required"`
	SubBatchID string         `json:"sub_batch_id" binding:"required"`
	Date       string         `json:"date" binding:"required,datetime=2006-01-02"`
	Entries    []entryRequest `json:"entries" binding:"dive"`
}

func (r recordRequest) record() (attendance.AttendanceRecord, error) {
	day, err := attendance.ParseDay(r.Date)
	if err != nil {
		return attendance.AttendanceRecord{}, err
	}
	entries := make([]attendance.Entry, 0, len(r.Entries))
	for _, e := range r.Entries {
		status, err := attendance.ParseStatus(e.Status)
		if err != nil {
			return attendance.AttendanceRecord{}, err
		}
		entries = append(entries, attendance.Entry{StudentID: e.StudentID, Status: status})
	}
	return attendance.AttendanceRecord{
		BatchID:    r.BatchID,
		SubBatchID: r.SubBatchID,
		Date:       day,
		Entries:    entries,
	}, nil
}

// RecordAttendance records one roll-call. A second record for the same
// batch, sub-batch and day is refused with 409 and the existing record.
func (h *Handler) RecordAttendance(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	in, err := req.record()
	if err != nil {
		badRequest(c, err)
		return
	}

	st, rec := h.scoped()
	out, err := st.RecordAttendanceOnce(in.BatchID, in.SubBatchID, in.Date, in.Entries)
	if refError(c, err) {
		h.metrics.Mutation("record_attendance", false)
		return
	}
	if errors.Is(err, attendance.ErrDuplicateAttendance) {
		h.metrics.Mutations.WithLabelValues("record_attendance", "duplicate").Inc()
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "record": out, "notification": rec.Last()})
		return
	}
	h.metrics.Mutation("record_attendance", true)
	c.JSON(http.StatusCreated, gin.H{"record": out, "notification": rec.Last()})
}

func (h *Handler) UpdateAttendance(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	in, err := req.record()
	if err != nil {
		badRequest(c, err)
		return
	}
	in.ID = c.Param("id")

	st, rec := h.scoped()
	ok, err := st.UpdateAttendanceChecked(in)
	if refError(c, err) {
		h.metrics.Mutation("update_attendance", false)
		return
	}
	if ok {
		in, _ = h.store.Record(in.ID)
	}
	h.applied(c, "update_attendance", ok, rec, "record", in)
}

// refError writes the response for a record naming a missing batch or
// sub-batch (404) or an unknown student (400), and reports whether it did.
func refError(c *gin.Context, err error) bool {
	var ref *attendance.ReferenceError
	if !errors.As(err, &ref) {
		return false
	}
	switch ref.Kind {
	case "student":
		badRequest(c, ref)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": ref.Error()})
	}
	return true
}

// LookupAttendance is the pre-check for an existing roll-call on a day.
func (h *Handler) LookupAttendance(c *gin.Context) {
	day, err := attendance.ParseDay(c.Query("date"))
	if err != nil {
		badRequest(c, err)
		return
	}
	r, ok := h.store.FindRecord(c.Query("batch_id"), c.Query("sub_batch_id"), day)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": r})
}

func (h *Handler) BatchAttendance(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"records": h.store.BatchAttendance(c.Param("id"))})
}

func (h *Handler) SubBatchAttendance(c *gin.Context) {
	records := h.store.SubBatchAttendance(c.Param("id"), c.Param("subID"))
	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"summary": summarizeRecords(records),
	})
}

func summarizeRecords(records []attendance.AttendanceRecord) attendance.Summary {
	var entries []attendance.Entry
	for _, r := range records {
		entries = append(entries, r.Entries...)
	}
	return attendance.Summarize(entries)
}
