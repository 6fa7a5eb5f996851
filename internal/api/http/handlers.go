package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"buildsim/internal/engine"
	"buildsim/internal/meter"
	"buildsim/internal/observability/metrics"
	"buildsim/internal/schedule"
	"buildsim/internal/summary"
)

const scheduleValuePrefix = "/api/v1/schedules/"

// ScheduleValueHandler serves live schedule reads and external overrides.
type ScheduleValueHandler struct {
	schedules *schedule.Compiler
}

// NewScheduleValueHandler constructs a ScheduleValueHandler.
func NewScheduleValueHandler(schedules *schedule.Compiler) *ScheduleValueHandler {
	return &ScheduleValueHandler{schedules: schedules}
}

// ServeHTTP handles GET and POST /api/v1/schedules/{name}/value.
func (h *ScheduleValueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.schedules == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	name, ok := scheduleNameFromPath(r.URL.Path)
	if !ok {
		http.Error(w, "schedule name is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.currentValue(w, name)
	case http.MethodPost:
		h.override(w, r, name)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *ScheduleValueHandler) currentValue(w http.ResponseWriter, name string) {
	id, ok := h.schedules.IndexOf(name)
	if !ok {
		http.Error(w, "unknown schedule", http.StatusNotFound)
		return
	}
	value, err := h.schedules.CurrentValue(id)
	if err != nil {
		http.Error(w, "read schedule error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(scheduleValueResponse{Name: name, Value: value})
}

func (h *ScheduleValueHandler) override(w http.ResponseWriter, r *http.Request, name string) {
	var body scheduleValueRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "body must be json with a value field", http.StatusBadRequest)
		return
	}
	if body.Value == nil {
		http.Error(w, "value is required", http.StatusBadRequest)
		return
	}

	err := h.schedules.SetExternalValue(name, *body.Value)
	switch {
	case errors.Is(err, schedule.ErrUnknownSchedule):
		http.Error(w, "unknown schedule", http.StatusNotFound)
		return
	case errors.Is(err, schedule.ErrNotExternal):
		http.Error(w, "schedule is not externally driven", http.StatusConflict)
		return
	case err != nil:
		http.Error(w, "override schedule error", http.StatusInternalServerError)
		return
	}

	metrics.RecordExternalOverride()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(scheduleValueResponse{Name: name, Value: *body.Value})
}

type scheduleValueRequest struct {
	Value *float64 `json:"value"`
}

type scheduleValueResponse struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// scheduleNameFromPath extracts the schedule name from
// /api/v1/schedules/{name}/value.
func scheduleNameFromPath(path string) (string, bool) {
	rest, found := strings.CutPrefix(path, scheduleValuePrefix)
	if !found {
		return "", false
	}
	rest, found = strings.CutSuffix(rest, "/value")
	if !found || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	name, err := url.PathUnescape(rest)
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}

// RunStatusHandler reports the simulation clock position.
type RunStatusHandler struct {
	engine *engine.Engine
}

// NewRunStatusHandler constructs a RunStatusHandler.
func NewRunStatusHandler(eng *engine.Engine) *RunStatusHandler {
	return &RunStatusHandler{engine: eng}
}

// ServeHTTP handles GET /api/v1/run.
func (h *RunStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.engine == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	clock := h.engine.Clock()
	status := runStatusResponse{
		Environment: h.engine.Environment(),
		DayOfSim:    clock.DayOfSim,
		Month:       clock.Month,
		Day:         clock.Day,
		Hour:        clock.Hour,
		TimeStep:    clock.TimeStep,
		Warmup:      h.engine.InWarmup(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

type runStatusResponse struct {
	Environment string `json:"environment"`
	DayOfSim    int    `json:"day_of_sim"`
	Month       int    `json:"month"`
	Day         int    `json:"day"`
	Hour        int    `json:"hour"`
	TimeStep    int    `json:"time_step"`
	Warmup      bool   `json:"warmup"`
}

// SummaryExportHandler serves the annual meter summary as XLSX or PDF.
type SummaryExportHandler struct {
	meters      *meter.Engine
	environment string
	year        int
}

// NewSummaryExportHandler constructs a SummaryExportHandler.
func NewSummaryExportHandler(meters *meter.Engine, environment string, year int) *SummaryExportHandler {
	return &SummaryExportHandler{meters: meters, environment: environment, year: year}
}

// ServeHTTP handles GET /api/v1/summary/meters.xlsx and meters.pdf.
func (h *SummaryExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.meters == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	report, err := summary.Build(h.meters, h.environment, h.year)
	if err != nil {
		http.Error(w, "build summary error", http.StatusInternalServerError)
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, ".xlsx"):
		data, err := summary.BuildXLSX(report)
		if err != nil {
			http.Error(w, "render xlsx error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="meters.xlsx"`)
		_, _ = w.Write(data)
	case strings.HasSuffix(r.URL.Path, ".pdf"):
		data, err := summary.BuildPDF(report)
		if err != nil {
			http.Error(w, "render pdf error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="meters.pdf"`)
		_, _ = w.Write(data)
	default:
		http.Error(w, "format must be .xlsx or .pdf", http.StatusBadRequest)
	}
}

// HealthzHandler answers liveness probes.
func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
