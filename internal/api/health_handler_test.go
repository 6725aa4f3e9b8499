package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHandleHealth_AllUp(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	mock.ExpectQuery("SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	hc := NewHealthChecker(db, redisClient)
	rec := httptest.NewRecorder()
	hc.HandleHealth(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status.Status != "healthy" {
		t.Errorf("status = %q, want healthy, checks: %+v", status.Status, status.Checks)
	}
}

func TestHandleHealth_NoRedisIsHealthy(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	mock.ExpectQuery("SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	hc := NewHealthChecker(db, nil)
	rec := httptest.NewRecorder()
	hc.HandleHealth(rec, httptest.NewRequest("GET", "/health", nil))

	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// Redis is an optional cache; its absence must not degrade health.
	if status.Status != "healthy" {
		t.Errorf("status = %q, want healthy, checks: %+v", status.Status, status.Checks)
	}
}

func TestHandleReadiness_DatabaseDown(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	mock.ExpectQuery("SELECT 1").
		WillReturnError(sqlmock.ErrCancelled)

	hc := NewHealthChecker(db, nil)
	rec := httptest.NewRecorder()
	hc.HandleReadiness(rec, httptest.NewRequest("GET", "/health/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandleLiveness(t *testing.T) {
	hc := NewHealthChecker(nil, nil)
	rec := httptest.NewRecorder()
	hc.HandleLiveness(rec, httptest.NewRequest("GET", "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
