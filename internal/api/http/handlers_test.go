package apihttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"buildsim/internal/calendar"
	"buildsim/internal/input"
	"buildsim/internal/schedule"
)

func compileSchedules(t *testing.T) *schedule.Compiler {
	t.Helper()
	compiler, err := schedule.NewCompiler(1, nil)
	if err != nil {
		t.Fatalf("NewCompiler: %v", err)
	}
	deck := input.NewDeck([]input.Object{
		{Class: "ExternalInterface:Schedule", Name: "Grid Signal", Alpha: []string{""}, Number: []float64{0.5}},
		{Class: "Schedule:Constant", Name: "Fixed", Alpha: []string{""}, Number: []float64{2.0}},
	})
	if err := compiler.Compile(deck); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	clock, err := calendar.NewClock(2026, 1, calendar.DaySunday, false)
	if err != nil {
		t.Fatalf("NewClock: %v", err)
	}
	if err := compiler.UpdateAll(clock); err != nil {
		t.Fatalf("UpdateAll: %v", err)
	}
	return compiler
}

func TestScheduleValueGet(t *testing.T) {
	handler := NewScheduleValueHandler(compileSchedules(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/schedules/Grid%20Signal/value", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Name != "Grid Signal" || body.Value != 0.5 {
		t.Fatalf("got %q=%v, want Grid Signal=0.5", body.Name, body.Value)
	}
}

func TestScheduleValueOverride(t *testing.T) {
	compiler := compileSchedules(t)
	handler := NewScheduleValueHandler(compiler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules/Grid%20Signal/value",
		strings.NewReader(`{"value":0.9}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}

	// The override lands on the next schedule update.
	clock, err := calendar.NewClock(2026, 1, calendar.DaySunday, false)
	if err != nil {
		t.Fatalf("NewClock: %v", err)
	}
	if err := compiler.UpdateAll(clock); err != nil {
		t.Fatalf("UpdateAll: %v", err)
	}
	id, _ := compiler.IndexOf("Grid Signal")
	value, err := compiler.CurrentValue(id)
	if err != nil {
		t.Fatalf("CurrentValue: %v", err)
	}
	if value != 0.9 {
		t.Fatalf("value after update = %v, want 0.9", value)
	}
}

func TestScheduleValueOverrideErrors(t *testing.T) {
	handler := NewScheduleValueHandler(compileSchedules(t))

	cases := []struct {
		name string
		path string
		body string
		code int
	}{
		{"unknown schedule", "/api/v1/schedules/Nobody/value", `{"value":1}`, http.StatusNotFound},
		{"not external", "/api/v1/schedules/Fixed/value", `{"value":1}`, http.StatusConflict},
		{"missing value", "/api/v1/schedules/Grid%20Signal/value", `{}`, http.StatusBadRequest},
		{"bad json", "/api/v1/schedules/Grid%20Signal/value", `nope`, http.StatusBadRequest},
		{"bad path", "/api/v1/schedules/Grid%20Signal", `{"value":1}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.code, resp.Code)
		}
	}
}

func TestScheduleNameFromPath(t *testing.T) {
	cases := []struct {
		path string
		name string
		ok   bool
	}{
		{"/api/v1/schedules/Grid%20Signal/value", "Grid Signal", true},
		{"/api/v1/schedules/Fixed/value", "Fixed", true},
		{"/api/v1/schedules//value", "", false},
		{"/api/v1/schedules/value", "", false},
		{"/api/v1/schedules/a/b/value", "", false},
		{"/healthz", "", false},
	}
	for _, tc := range cases {
		name, ok := scheduleNameFromPath(tc.path)
		if ok != tc.ok || name != tc.name {
			t.Fatalf("%s: got %q/%v, want %q/%v", tc.path, name, ok, tc.name, tc.ok)
		}
	}
}

func TestHealthz(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	HealthzHandler(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}
