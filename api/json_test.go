package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestJSONHandler(t *testing.T) {
	tests := []struct {
		name     string
		data     any
		err      error
		wantCode int
		wantBody string
	}{
		{
			name:     "status",
			data:     PowerStatus{State: "idle"},
			wantCode: http.StatusOK,
			wantBody: `{"state":"idle"}`,
		},
		{
			name:     "active request",
			data:     PowerStatus{State: "claimed", Request: &RequestData{Mode: "reboot", Reason: "update"}},
			wantCode: http.StatusOK,
			wantBody: `{"state":"claimed","request":{"mode":"reboot","reason":"update"}}`,
		},
		{
			name:     "handler error",
			err:      errors.New("probe failed"),
			wantCode: http.StatusInternalServerError,
			wantBody: "probe failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := JSONHandler(func(w http.ResponseWriter, r *http.Request) (any, error) {
				return tt.data, tt.err
			})
			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest(http.MethodGet, "/power", nil))

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			if got := strings.TrimSpace(w.Body.String()); got != tt.wantBody {
				t.Errorf("body = %s, want %s", got, tt.wantBody)
			}
			if tt.err == nil && w.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type = %s, want application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		status   int
		data     any
		wantBody string
	}{
		{http.StatusAccepted, TriggerResponse{Result: "accepted", Mode: "poweroff"}, `{"result":"accepted","mode":"poweroff"}`},
		{http.StatusConflict, TriggerResponse{Result: "already_running", Mode: "reboot"}, `{"result":"already_running","mode":"reboot"}`},
		{http.StatusOK, CancelledData{PendingData: PendingData{Mode: "recovery", Reason: "recovery"}, Cause: CancelReasonExpired},
			`{"mode":"recovery","reason":"recovery","expires_at":"0001-01-01T00:00:00Z","cause":"expired"}`},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		writeJSON(w, tt.status, tt.data)

		if w.Code != tt.status {
			t.Errorf("status code = %d, want %d", w.Code, tt.status)
		}
		if got := strings.TrimSpace(w.Body.String()); got != tt.wantBody {
			t.Errorf("body = %s, want %s", got, tt.wantBody)
		}
	}
}

// An unencodable value still keeps the status already sent.
func TestWriteJSON_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusAccepted, make(chan int))
	if w.Code != http.StatusAccepted {
		t.Errorf("status code = %d, want 202", w.Code)
	}
}

func BenchmarkJSONHandler(b *testing.B) {
	handler := JSONHandler(func(w http.ResponseWriter, r *http.Request) (any, error) {
		return PowerStatus{State: "idle"}, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/power", nil)

	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		handler(w, req)
	}
}
