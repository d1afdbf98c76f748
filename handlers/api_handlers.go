package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"bus-attendance-server-go/cache"
	"bus-attendance-server-go/history"
	"bus-attendance-server-go/ledger"
	"bus-attendance-server-go/models"
	"bus-attendance-server-go/nepcal"
	"bus-attendance-server-go/roster"
)

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	Registry   *roster.Registry
	Ledger     *ledger.Ledger
	Reconciler *ledger.Reconciler
	History    *history.Service
	Cache      cache.SummaryCache
}

// NewAPIHandler creates an APIHandler with injected services.
func NewAPIHandler(reg *roster.Registry, led *ledger.Ledger, rec *ledger.Reconciler, hist *history.Service, c cache.SummaryCache) *APIHandler {
	if c == nil {
		c = cache.Noop{}
	}
	return &APIHandler{Registry: reg, Ledger: led, Reconciler: rec, History: hist, Cache: c}
}

// respondError maps the typed service errors to HTTP statuses. Unknown errors
// become a 500 without leaking internals.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrRouteNotFound), errors.Is(err, models.ErrStudentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrDuplicateName),
		errors.Is(err, models.ErrAlreadyArchived),
		errors.Is(err, models.ErrAlreadyActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrBadStudentID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("Internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// --- Route and roster handlers ---

// GetRoutes handles GET /api/routes
func (h *APIHandler) GetRoutes(c *gin.Context) {
	routes, err := h.Registry.ListRoutes()
	if err != nil {
		respondError(c, err)
		return
	}
	if routes == nil {
		routes = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"routes": routes})
}

// GetAllStudents handles GET /api/students
func (h *APIHandler) GetAllStudents(c *gin.Context) {
	students, err := h.Registry.AllStudents()
	if err != nil {
		respondError(c, err)
		return
	}
	if students == nil {
		students = []models.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

// GetRouteStudents handles GET /api/routes/:routeName/students
func (h *APIHandler) GetRouteStudents(c *gin.Context) {
	includeArchived := c.Query("archived") == "true"
	students, err := h.Registry.ListStudents(c.Param("routeName"), includeArchived)
	if err != nil {
		respondError(c, err)
		return
	}
	if students == nil {
		students = []models.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

// GetArchivedStudents handles GET /api/routes/:routeName/archived
func (h *APIHandler) GetArchivedStudents(c *gin.Context) {
	students, err := h.Registry.ListStudents(c.Param("routeName"), true)
	if err != nil {
		respondError(c, err)
		return
	}
	archived := make([]models.Student, 0, len(students))
	for _, s := range students {
		if !s.Active() {
			archived = append(archived, s)
		}
	}
	c.JSON(http.StatusOK, gin.H{"students": archived})
}

type addStudentRequest struct {
	Route string `json:"route" binding:"required"`
	Name  string `json:"name" binding:"required"`
}

// AddStudent handles POST /api/students
func (h *APIHandler) AddStudent(c *gin.Context) {
	var req addStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	student, err := h.Registry.AddStudent(req.Route, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Cache.BumpRoute(c.Request.Context(), req.Route)
	c.JSON(http.StatusCreated, gin.H{"message": "Student added successfully", "student": student})
}

// ArchiveStudent handles POST /api/students/:studentId/archive
func (h *APIHandler) ArchiveStudent(c *gin.Context) {
	h.setStudentStatus(c, h.Registry.Archive, "Student archived successfully")
}

// RestoreStudent handles POST /api/students/:studentId/restore
func (h *APIHandler) RestoreStudent(c *gin.Context) {
	h.setStudentStatus(c, h.Registry.Restore, "Student restored successfully")
}

func (h *APIHandler) setStudentStatus(c *gin.Context, op func(string) error, message string) {
	id := c.Param("studentId")
	if err := op(id); err != nil {
		respondError(c, err)
		return
	}
	if route, _, err := models.SplitStudentID(id); err == nil {
		h.Cache.BumpRoute(c.Request.Context(), route)
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// --- Attendance handlers ---

type attendanceResponse struct {
	Attendance map[string]bool `json:"attendance"`
	Present    int             `json:"present"`
	Total      int             `json:"total"`
}

// GetRouteAttendance handles GET /api/attendance/:routeName/:date
func (h *APIHandler) GetRouteAttendance(c *gin.Context) {
	route := c.Param("routeName")
	date := c.Param("date")

	if payload, ok := h.Cache.GetSummary(c.Request.Context(), route, date); ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(payload))
		return
	}

	attendance, err := h.Ledger.Attendance(route, date)
	if err != nil {
		respondError(c, err)
		return
	}
	sum := history.Summarize(attendance)
	resp := attendanceResponse{Attendance: attendance, Present: sum.Present, Total: sum.Total}
	payload, err := json.Marshal(resp)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Cache.SetSummary(c.Request.Context(), route, date, string(payload))
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

type saveAttendanceRequest struct {
	Route      string          `json:"route" binding:"required"`
	Date       string          `json:"date" binding:"required"`
	Attendance map[string]bool `json:"attendance" binding:"required"`
}

// SaveAttendance handles POST /api/attendance
func (h *APIHandler) SaveAttendance(c *gin.Context) {
	var req saveAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if err := h.Ledger.SetAttendance(req.Route, req.Date, req.Attendance); err != nil {
		respondError(c, err)
		return
	}
	h.Cache.BumpRoute(c.Request.Context(), req.Route)
	sum, err := h.History.Summary(req.Route, req.Date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Attendance saved successfully",
		"present": sum.Present,
		"total":   sum.Total,
	})
}

// --- History handlers ---

// GetStudentHistory handles GET /api/history/student/:studentId
func (h *APIHandler) GetStudentHistory(c *gin.Context) {
	timeline, err := h.History.StudentTimeline(c.Param("studentId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if timeline.Entries == nil {
		timeline.Entries = []ledger.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"student": timeline.Student, "history": timeline.Entries})
}

// GetDateHistory handles GET /api/history/date/:date
func (h *APIHandler) GetDateHistory(c *gin.Context) {
	entries, err := h.History.DateSnapshot(c.Param("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	if entries == nil {
		entries = []ledger.DateEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// --- Sync handler ---

type syncRequest struct {
	Records []models.SyncRecord `json:"records"`
}

// SyncOfflineData handles POST /api/sync: replays a batch of buffered
// attendance records, reporting per-record failures instead of aborting.
func (h *APIHandler) SyncOfflineData(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	result := h.Reconciler.Replay(req.Records)
	bumped := make(map[string]bool)
	for _, rec := range req.Records {
		if rec.Route != "" && !bumped[rec.Route] {
			h.Cache.BumpRoute(c.Request.Context(), rec.Route)
			bumped[rec.Route] = true
		}
	}
	failures := result.Failures
	if failures == nil {
		failures = []ledger.Failure{}
	}
	c.JSON(http.StatusOK, gin.H{
		"synced_count": result.Applied,
		"failures":     failures,
	})
}

// --- Utility handlers ---

// GetNepaliDate handles GET /api/nepali-date
func (h *APIHandler) GetNepaliDate(c *gin.Context) {
	date, err := nepcal.Today()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nepali_date": date})
}

// PingHandler handles GET /api/ping
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}
