package httpapi

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"attendboard/internal/attendance"
	"attendboard/internal/auth"
)

type subBatchRequest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Students    []string `json:"students"`
}

type createBatchRequest struct {
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	SubBatches  []subBatchRequest `json:"sub_batches" binding:"dive"`
}

type updateBatchRequest struct {
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	Students    []string          `json:"students"`
	SubBatches  []subBatchRequest `json:"sub_batches" binding:"dive"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (h *Handler) ListBatches(c *gin.Context) {
	u, _ := auth.UserFrom(c)
	batches := h.store.Batches()
	switch u.Role {
	case auth.RoleAdmin:
	case auth.RoleStudent:
		batches = slices.DeleteFunc(batches, func(b attendance.Batch) bool {
			return !slices.Contains(b.Students, u.ID)
		})
	default:
		batches = nil
	}
	if batches == nil {
		batches = []attendance.Batch{}
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

func (h *Handler) GetBatch(c *gin.Context) {
	b, ok := h.store.Batch(c.Param("id"))
	u, _ := auth.UserFrom(c)
	if ok && u.Role == auth.RoleStudent && !slices.Contains(b.Students, u.ID) {
		ok = false
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch": b})
}

func (h *Handler) CreateBatch(c *gin.Context) {
	var req createBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	subs := make([]attendance.SubBatchInput, 0, len(req.SubBatches))
	for _, sb := range req.SubBatches {
		subs = append(subs, attendance.SubBatchInput{Name: sb.Name, Description: sb.Description})
	}

	st, rec := h.scoped()
	b := st.CreateBatch(req.Name, req.Description, subs)
	h.metrics.Mutation("create_batch", true)
	c.JSON(http.StatusCreated, gin.H{"batch": b, "notification": rec.Last()})
}

// UpdateBatch replaces the batch. Sub-batches sent without an id are new and
// get one assigned; a zero created_at keeps the stored value.
func (h *Handler) UpdateBatch(c *gin.Context) {
	var req updateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	b := attendance.Batch{
		ID:          c.Param("id"),
		Name:        req.Name,
		Description: req.Description,
		Students:    req.Students,
		CreatedAt:   req.CreatedAt,
	}
	if b.CreatedAt.IsZero() {
		if cur, ok := h.store.Batch(b.ID); ok {
			b.CreatedAt = cur.CreatedAt
		}
	}
	for _, sb := range req.SubBatches {
		if sb.ID == "" {
			sb.ID = uuid.NewString()
		}
		b.SubBatches = append(b.SubBatches, attendance.SubBatch{
			ID:          sb.ID,
			Name:        sb.Name,
			Description: sb.Description,
			Students:    sb.Students,
		})
	}

	st, rec := h.scoped()
	ok := st.UpdateBatch(b)
	if ok {
		b, _ = h.store.Batch(b.ID)
	}
	h.applied(c, "update_batch", ok, rec, "batch", b)
}

func (h *Handler) DeleteBatch(c *gin.Context) {
	st, rec := h.scoped()
	h.applied(c, "delete_batch", st.DeleteBatch(c.Param("id")), rec, "batch", nil)
}

func (h *Handler) AssignToBatch(c *gin.Context) {
	st, rec := h.scoped()
	ok := st.AssignStudentToBatch(c.Param("studentID"), c.Param("id"))
	h.applied(c, "assign_batch", ok, rec, "batch", h.batchOrNil(ok, c.Param("id")))
}

func (h *Handler) UnassignFromBatch(c *gin.Context) {
	st, rec := h.scoped()
	ok := st.UnassignStudentFromBatch(c.Param("studentID"), c.Param("id"))
	h.applied(c, "unassign_batch", ok, rec, "batch", h.batchOrNil(ok, c.Param("id")))
}

func (h *Handler) AssignToSubBatch(c *gin.Context) {
	st, rec := h.scoped()
	ok := st.AssignStudentToSubBatch(c.Param("studentID"), c.Param("id"), c.Param("subID"))
	h.applied(c, "assign_sub_batch", ok, rec, "batch", h.batchOrNil(ok, c.Param("id")))
}

func (h *Handler) UnassignFromSubBatch(c *gin.Context) {
	st, rec := h.scoped()
	ok := st.UnassignStudentFromSubBatch(c.Param("studentID"), c.Param("id"), c.Param("subID"))
	h.applied(c, "unassign_sub_batch", ok, rec, "batch", h.batchOrNil(ok, c.Param("id")))
}

func (h *Handler) batchOrNil(ok bool, id string) any {
	if !ok {
		return nil
	}
	if b, found := h.store.Batch(id); found {
		return b
	}
	return nil
}

// SubBatchRoster lists the students of a sub-batch, for pre-filling a roll-call.
func (h *Handler) SubBatchRoster(c *gin.Context) {
	students, ok := h.store.StudentsInSubBatch(c.Param("id"), c.Param("subID"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "sub-batch not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (h *Handler) Dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"overview": h.store.Overview()})
}
