package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"attendboard/internal/attendance"
	"attendboard/internal/auth"
	"attendboard/internal/metrics"
	"attendboard/internal/notify"
)

// Pinger is a dependency the health endpoint checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	store   *attendance.Store
	auth    *auth.Authenticator
	metrics *metrics.Metrics
	log     *slog.Logger
	checks  map[string]Pinger
}

func New(store *attendance.Store, authn *auth.Authenticator, m *metrics.Metrics, log *slog.Logger) *Handler {
	registerValidators()
	return &Handler{
		store:   store,
		auth:    authn,
		metrics: m,
		log:     log,
		checks:  map[string]Pinger{},
	}
}

// AddHealthCheck reports p under name on /healthz.
func (h *Handler) AddHealthCheck(name string, p Pinger) {
	h.checks[name] = p
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	v1.POST("/auth/login", h.Login)

	authed := v1.Group("", auth.RequireSession(h.auth))
	authed.GET("/auth/session", h.Session)
	authed.POST("/auth/logout", h.Logout)

	authed.GET("/batches", h.ListBatches)
	authed.GET("/batches/:id", h.GetBatch)
	authed.GET("/students/:id", h.GetStudent)
	authed.GET("/students/:id/attendance", h.StudentAttendance)
	authed.GET("/students/:id/summary", h.StudentSummary)

	admin := authed.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/dashboard", h.Dashboard)

	admin.POST("/batches", h.CreateBatch)
	admin.PUT("/batches/:id", h.UpdateBatch)
	admin.DELETE("/batches/:id", h.DeleteBatch)
	admin.POST("/batches/:id/students/:studentID", h.AssignToBatch)
	admin.DELETE("/batches/:id/students/:studentID", h.UnassignFromBatch)
	admin.GET("/batches/:id/sub-batches/:subID/students", h.SubBatchRoster)
	admin.POST("/batches/:id/sub-batches/:subID/students/:studentID", h.AssignToSubBatch)
	admin.DELETE("/batches/:id/sub-batches/:subID/students/:studentID", h.UnassignFromSubBatch)
	admin.GET("/batches/:id/attendance", h.BatchAttendance)
	admin.GET("/batches/:id/sub-batches/:subID/attendance", h.SubBatchAttendance)

	admin.GET("/students", h.ListStudents)
	admin.POST("/students", h.CreateStudent)
	admin.PUT("/students/:id", h.UpdateStudent)
	admin.DELETE("/students/:id", h.DeleteStudent)

	admin.POST("/attendance", h.RecordAttendance)
	admin.GET("/attendance/lookup", h.LookupAttendance)
	admin.PUT("/attendance/:id", h.UpdateAttendance)
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for name, p := range h.checks {
		healthy := p.Ping(ctx) == nil
		deps[name] = healthy
		if !healthy {
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "dependencies": deps})
}

// scoped returns a store view whose notifications are captured for the
// response, plus the capture.
func (h *Handler) scoped() (*attendance.Store, *notify.Recorder) {
	rec := &notify.Recorder{}
	return h.store.With(rec), rec
}

// applied writes the outcome of a store command. A false ok is a not-found
// no-op.
func (h *Handler) applied(c *gin.Context, op string, ok bool, rec *notify.Recorder, what string, payload any) {
	h.metrics.Mutation(op, ok)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
		return
	}
	body := gin.H{"notification": rec.Last()}
	if payload != nil {
		body[what] = payload
	}
	c.JSON(http.StatusOK, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// canViewStudent allows admins everything and students only themselves.
func canViewStudent(u auth.User, studentID string) bool {
	switch u.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleStudent:
		return u.ID == studentID
	default:
		return false
	}
}
