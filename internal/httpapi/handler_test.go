package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendboard/internal/attendance"
	"attendboard/internal/auth"
	"attendboard/internal/httpapi"
	"attendboard/internal/metrics"
	"attendboard/internal/notify"
)

type fixture struct {
	router *gin.Engine
	store  *attendance.Store
	events *notify.Recorder
	h      *httpapi.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	events := &notify.Recorder{}
	store := attendance.NewStore(attendance.WithNotifier(events))
	store.Restore(attendance.DemoSnapshot())
	authn := &auth.Authenticator{
		Directory: auth.NewDemoDirectory(),
		Sessions:  auth.NewMemorySessions(),
		Issuer:    "attendboard-test",
		Key:       "test-key",
		TTL:       time.Hour,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := httpapi.New(store, authn, metrics.New(prometheus.NewRegistry()), log)

	r := gin.New()
	h.Register(r)
	return &fixture{router: r, store: store, events: events, h: h}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) login(t *testing.T, email string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": email, "password": auth.DemoPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

type batchResponse struct {
	Batch        attendance.Batch     `json:"batch"`
	Notification *notify.Notification `json:"notification"`
}

type studentResponse struct {
	Student      attendance.Student   `json:"student"`
	Notification *notify.Notification `json:"notification"`
}

type recordResponse struct {
	Record       attendance.AttendanceRecord `json:"record"`
	Notification *notify.Notification        `json:"notification"`
	Error        string                      `json:"error"`
}

func TestAuthFlow(t *testing.T) {
	f := newFixture(t)

	t.Run("InvalidCredentials", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "john@example.com", "password": "nope"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("ValidationError", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "not-an-email"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("StudentLoginCarriesProfile", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "john@example.com", "password": auth.DemoPassword})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[struct {
			Token   string              `json:"token"`
			User    auth.User           `json:"user"`
			Student *attendance.Student `json:"student"`
		}](t, w)
		assert.Equal(t, auth.RoleStudent, resp.User.Role)
		require.NotNil(t, resp.Student)
		assert.Equal(t, "S10001", resp.Student.StudentID)

		w = f.do(t, http.MethodGet, "/v1/auth/session", resp.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"student_id":"S10001"`)

		w = f.do(t, http.MethodPost, "/v1/auth/logout", resp.Token, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = f.do(t, http.MethodGet, "/v1/auth/session", resp.Token, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("AdminOnlyRoutes", func(t *testing.T) {
		student := f.login(t, "jane@example.com")
		assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/v1/students", student, nil).Code)
		assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodDelete, "/v1/batches/"+attendance.DemoBatchID, student, nil).Code)
		assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/v1/batches", "", nil).Code)
	})
}

func TestStudentSelfAccess(t *testing.T) {
	f := newFixture(t)
	jane := f.login(t, "jane@example.com")

	w := f.do(t, http.MethodGet, "/v1/students/"+attendance.DemoStudentJane+"/summary", jane, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Summary attendance.Summary `json:"summary"`
		Band    attendance.Band    `json:"band"`
	}](t, w)
	assert.Equal(t, attendance.Summary{Absent: 1, Total: 1}, resp.Summary)
	assert.Equal(t, attendance.BandPoor, resp.Band)

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/v1/students/"+attendance.DemoStudentJohn+"/attendance", jane, nil).Code)

	w = f.do(t, http.MethodGet, "/v1/batches", jane, nil)
	require.Equal(t, http.StatusOK, w.Code)
	batches := decode[struct {
		Batches []attendance.Batch `json:"batches"`
	}](t, w)
	require.Len(t, batches.Batches, 1)
	assert.Equal(t, attendance.DemoBatchID, batches.Batches[0].ID)
}

func TestBootcampScenarioOverHTTP(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "admin@example.com")

	w := f.do(t, http.MethodPost, "/v1/batches", admin, map[string]any{
		"name":        "Bootcamp",
		"sub_batches": []map[string]string{{"name": "Frontend"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[batchResponse](t, w)
	require.NotNil(t, created.Notification)
	assert.Equal(t, notify.SeveritySuccess, created.Notification.Severity)
	bootcamp := created.Batch
	frontend := bootcamp.SubBatches[0]

	w = f.do(t, http.MethodPost, "/v1/students", admin, map[string]any{
		"name": "Ada", "email": "ada@example.com", "student_id": "S20001",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ada := decode[studentResponse](t, w).Student

	w = f.do(t, http.MethodPost, "/v1/batches/"+bootcamp.ID+"/sub-batches/"+frontend.ID+"/students/"+ada.ID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assigned := decode[batchResponse](t, w).Batch
	assert.Contains(t, assigned.Students, ada.ID)
	assert.Contains(t, assigned.SubBatches[0].Students, ada.ID)

	roll := map[string]any{
		"batch_id":     bootcamp.ID,
		"sub_batch_id": frontend.ID,
		"date":         "2024-01-10",
		"entries":      []map[string]string{{"student_id": ada.ID, "status": "online"}},
	}
	w = f.do(t, http.MethodPost, "/v1/attendance", admin, roll)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	recorded := decode[recordResponse](t, w).Record
	assert.Equal(t, attendance.StatusPresent, recorded.Entries[0].Status)

	w = f.do(t, http.MethodPost, "/v1/attendance", admin, roll)
	require.Equal(t, http.StatusConflict, w.Code)
	dup := decode[recordResponse](t, w)
	assert.Equal(t, recorded.ID, dup.Record.ID)
	require.NotNil(t, dup.Notification)
	assert.Equal(t, notify.SeverityInfo, dup.Notification.Severity)

	w = f.do(t, http.MethodGet, "/v1/attendance/lookup?batch_id="+bootcamp.ID+"&sub_batch_id="+frontend.ID+"&date=2024-01-10", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, recorded.ID, decode[recordResponse](t, w).Record.ID)

	w = f.do(t, http.MethodGet, "/v1/students/"+ada.ID+"/attendance", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	records := decode[struct {
		Records []attendance.AttendanceRecord `json:"records"`
	}](t, w).Records
	require.Len(t, records, 1)
	assert.Equal(t, recorded.ID, records[0].ID)

	w = f.do(t, http.MethodDelete, "/v1/students/"+ada.ID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/v1/students/"+ada.ID+"/attendance", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"records":[]}`, w.Body.String())

	kept, ok := f.store.Record(recorded.ID)
	require.True(t, ok)
	assert.Empty(t, kept.Entries)
}

func TestNotFoundNoOps(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "admin@example.com")
	before := len(f.events.All())

	tests := []struct {
		method, path string
		body         any
	}{
		{http.MethodDelete, "/v1/batches/missing", nil},
		{http.MethodDelete, "/v1/students/missing", nil},
		{http.MethodPut, "/v1/batches/missing", map[string]any{"name": "x"}},
		{http.MethodPut, "/v1/students/missing", map[string]any{"name": "x", "email": "x@example.com", "student_id": "S"}},
		{http.MethodPost, "/v1/batches/" + attendance.DemoBatchID + "/students/missing", nil},
		{http.MethodPost, "/v1/batches/" + attendance.DemoBatchID + "/sub-batches/missing/students/" + attendance.DemoStudentJane, nil},
		{http.MethodPut, "/v1/attendance/missing", map[string]any{"batch_id": "b", "sub_batch_id": "s", "date": "2024-01-10"}},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := f.do(t, tt.method, tt.path, admin, tt.body)
			assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
		})
	}
	assert.Len(t, f.events.All(), before, "no-ops emit no notifications")
}

func TestRecordAttendanceValidation(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "admin@example.com")

	base := func() map[string]any {
		return map[string]any{
			"batch_id":     attendance.DemoBatchID,
			"sub_batch_id": attendance.DemoFrontendID,
			"date":         "2024-02-01",
			"entries":      []map[string]string{{"student_id": attendance.DemoStudentJohn, "status": "present"}},
		}
	}

	bad := base()
	bad["entries"] = []map[string]string{{"student_id": attendance.DemoStudentJohn, "status": "excused"}}
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/v1/attendance", admin, bad).Code)

	bad = base()
	bad["date"] = "01/02/2024"
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/v1/attendance", admin, bad).Code)

	bad = base()
	bad["batch_id"] = "missing"
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/v1/attendance", admin, bad).Code)

	assert.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/v1/attendance", admin, base()).Code)
}

func TestUpdateBatchAndDashboard(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "admin@example.com")

	w := f.do(t, http.MethodPut, "/v1/batches/"+attendance.DemoBatchID, admin, map[string]any{
		"name":     "Renamed",
		"students": []string{attendance.DemoStudentJohn},
		"sub_batches": []map[string]any{
			{"id": attendance.DemoFrontendID, "name": "Frontend Group", "students": []string{attendance.DemoStudentJohn}},
			{"name": "Data Group"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[batchResponse](t, w).Batch
	assert.Equal(t, "Renamed", updated.Name)
	require.Len(t, updated.SubBatches, 2)
	assert.NotEmpty(t, updated.SubBatches[1].ID)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), updated.CreatedAt.UTC())

	w = f.do(t, http.MethodGet, "/v1/dashboard", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	ov := decode[struct {
		Overview attendance.Overview `json:"overview"`
	}](t, w).Overview
	assert.Equal(t, 1, ov.Batches)
	assert.Equal(t, 2, ov.SubBatches)
	assert.Equal(t, 67, ov.Attendance.Percentage)

	w = f.do(t, http.MethodDelete, "/v1/batches/"+attendance.DemoBatchID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	john, _ := f.store.Student(attendance.DemoStudentJohn)
	assert.Empty(t, john.Batches)
	assert.Empty(t, f.store.Records())
}

func TestSubBatchRosterAndAttendance(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "admin@example.com")

	w := f.do(t, http.MethodGet, "/v1/batches/"+attendance.DemoBatchID+"/sub-batches/"+attendance.DemoBackendID+"/students", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	roster := decode[struct {
		Students []attendance.Student `json:"students"`
	}](t, w).Students
	require.Len(t, roster, 1)
	assert.Equal(t, "John Doe", roster[0].Name)

	w = f.do(t, http.MethodGet, "/v1/batches/"+attendance.DemoBatchID+"/sub-batches/"+attendance.DemoFrontendID+"/attendance", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Records []attendance.AttendanceRecord `json:"records"`
		Summary attendance.Summary            `json:"summary"`
	}](t, w)
	assert.Len(t, resp.Records, 1)
	assert.Equal(t, 50, resp.Summary.Percentage)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	f.h.AddHealthCheck("sessions", pinger{})
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "", nil).Code)

	f.h.AddHealthCheck("redis", pinger{err: errors.New("down")})
	w := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":false`)
}

func TestRecordAttendanceRejectsUnknownReferences(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "admin@example.com")
	before := f.store.Overview()

	roll := func(subBatchID, studentID string) map[string]any {
		return map[string]any{
			"batch_id":     attendance.DemoBatchID,
			"sub_batch_id": subBatchID,
			"date":         "2024-03-01",
			"entries":      []map[string]string{{"student_id": studentID, "status": "present"}},
		}
	}

	w := f.do(t, http.MethodPost, "/v1/attendance", admin, roll("no-such-sub", attendance.DemoStudentJohn))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `sub-batch \"no-such-sub\" not found`)

	w = f.do(t, http.MethodPost, "/v1/attendance", admin, roll(attendance.DemoFrontendID, "ghost-student"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ghost-student")

	assert.Empty(t, f.store.StudentAttendance("ghost-student"))
	assert.Equal(t, before, f.store.Overview())
}

func TestUpdateAttendanceRejectsUnknownReferences(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "admin@example.com")
	original, ok := f.store.Record("att-1")
	require.True(t, ok)

	body := func(batchID, subBatchID, studentID string) map[string]any {
		return map[string]any{
			"batch_id":     batchID,
			"sub_batch_id": subBatchID,
			"date":         "2023-01-15",
			"entries":      []map[string]string{{"student_id": studentID, "status": "absent"}},
		}
	}

	w := f.do(t, http.MethodPut, "/v1/attendance/att-1", admin, body("no-such-batch", attendance.DemoFrontendID, attendance.DemoStudentJohn))
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.do(t, http.MethodPut, "/v1/attendance/att-1", admin, body(attendance.DemoBatchID, "no-such-sub", attendance.DemoStudentJohn))
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.do(t, http.MethodPut, "/v1/attendance/att-1", admin, body(attendance.DemoBatchID, attendance.DemoFrontendID, "ghost-student"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	current, _ := f.store.Record("att-1")
	assert.Equal(t, original, current)

	w = f.do(t, http.MethodPut, "/v1/attendance/att-1", admin, body(attendance.DemoBatchID, attendance.DemoBackendID, attendance.DemoStudentJohn))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	current, _ = f.store.Record("att-1")
	assert.Equal(t, attendance.DemoBackendID, current.SubBatchID)
}

func TestListStudentsSearch(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "admin@example.com")

	names := func(q string) []string {
		w := f.do(t, http.MethodGet, "/v1/students?q="+q, admin, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var out []string
		for _, s := range decode[struct {
			Students []attendance.Student `json:"students"`
		}](t, w).Students {
			out = append(out, s.Name)
		}
		return out
	}

	tests := []struct {
		q    string
		want []string
	}{
		{"", []string{"John Doe", "Jane Smith"}},
		{"JANE", []string{"Jane Smith"}},
		{"john%40example", []string{"John Doe"}},
		{"s1000", []string{"John Doe", "Jane Smith"}},
		{"S10002", []string{"Jane Smith"}},
		{"nobody", nil},
	}
	for _, tt := range tests {
		t.Run("q="+tt.q, func(t *testing.T) {
			assert.Equal(t, tt.want, names(tt.q))
		})
	}
}

func TestStudentAttendanceFilters(t *testing.T) {
	f := newFixture(t)
	john := f.login(t, "john@example.com")

	data := f.store.CreateBatch("Data Science", "", []attendance.SubBatchInput{{Name: "Evening"}})
	f.store.AssignStudentToSubBatch(attendance.DemoStudentJohn, data.ID, data.SubBatches[0].ID)
	day := func(s string) time.Time {
		d, err := attendance.ParseDay(s)
		require.NoError(t, err)
		return d
	}
	feb := f.store.RecordAttendance(attendance.DemoBatchID, attendance.DemoFrontendID, day("2023-02-03"),
		[]attendance.Entry{{StudentID: attendance.DemoStudentJohn, Status: attendance.StatusPresent}})
	other := f.store.RecordAttendance(data.ID, data.SubBatches[0].ID, day("2023-01-20"),
		[]attendance.Entry{{StudentID: attendance.DemoStudentJohn, Status: attendance.StatusAbsent}})

	ids := func(query string) []string {
		w := f.do(t, http.MethodGet, "/v1/students/"+attendance.DemoStudentJohn+"/attendance"+query, john, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var out []string
		for _, r := range decode[struct {
			Records []attendance.AttendanceRecord `json:"records"`
		}](t, w).Records {
			out = append(out, r.ID)
		}
		return out
	}

	assert.Equal(t, []string{feb.ID, other.ID, "att-1", "att-2"}, ids(""), "newest first, ties in insertion order")
	assert.Equal(t, []string{other.ID, "att-1", "att-2"}, ids("?month=2023-01"))
	assert.Equal(t, []string{other.ID}, ids("?batch_id="+data.ID))
	assert.Equal(t, []string{"att-1", "att-2"}, ids("?batch_id="+attendance.DemoBatchID+"&month=2023-01"))
	assert.Empty(t, ids("?month=2022-12"))

	w := f.do(t, http.MethodGet, "/v1/students/"+attendance.DemoStudentJohn+"/summary?batch_id="+data.ID, john, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Summary attendance.Summary `json:"summary"`
		Band    attendance.Band    `json:"band"`
	}](t, w)
	assert.Equal(t, attendance.Summary{Absent: 1, Total: 1}, resp.Summary)
	assert.Equal(t, attendance.BandPoor, resp.Band)

	w = f.do(t, http.MethodGet, "/v1/students/"+attendance.DemoStudentJohn+"/summary?month=2023-02", john, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, attendance.Summary{Present: 1, Total: 1, Percentage: 100}, decode[struct {
		Summary attendance.Summary `json:"summary"`
	}](t, w).Summary)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/v1/students/"+attendance.DemoStudentJohn+"/attendance?month=Feb-2023", john, nil).Code)
}
