package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/focusd/focusd/internal/capture"
	"github.com/focusd/focusd/internal/storage"
)

var turnIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type TurnStore interface {
	GetTurnsByDate(date string) ([]storage.Turn, error)
	GetTurn(id string) (storage.Turn, error)
	GetDates() ([]string, error)
	GetNudgesByDate(date string) ([]storage.Nudge, error)
}

type chatRequest struct {
	Message string `json:"message"`
}

func registerAPIRoutes(mux *http.ServeMux, store TurnStore, controls ControlHooks) {
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Message == "" {
			writeJSONError(w, http.StatusBadRequest, "message is required")
			return
		}
		if controls.SubmitChat == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "chat unavailable")
			return
		}

		turn, err := controls.SubmitChat(r.Context(), req.Message)
		if err != nil {
			writeJSONError(w, http.StatusBadGateway, fmt.Sprintf("chat: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, turn)
	})

	mux.HandleFunc("POST /api/recording/toggle", func(w http.ResponseWriter, r *http.Request) {
		if controls.ToggleRecording == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "recording unavailable")
			return
		}
		enabled, accepted := controls.ToggleRecording()
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled, "accepted": accepted})
	})

	mux.HandleFunc("POST /api/capture/{kind}/start", func(w http.ResponseWriter, r *http.Request) {
		kind, ok := captureKind(r.PathValue("kind"))
		if !ok {
			writeJSONError(w, http.StatusBadRequest, "unknown capture kind")
			return
		}
		if controls.StartCapture == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "capture unavailable")
			return
		}

		if err := controls.StartCapture(kind); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, capture.ErrUnknownKind) {
				status = http.StatusBadRequest
			}
			writeJSONError(w, status, fmt.Sprintf("start capture: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/capture/{kind}/stop", func(w http.ResponseWriter, r *http.Request) {
		kind, ok := captureKind(r.PathValue("kind"))
		if !ok {
			writeJSONError(w, http.StatusBadRequest, "unknown capture kind")
			return
		}
		if controls.StopCapture != nil {
			controls.StopCapture(kind)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/turns", func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		turns, err := store.GetTurnsByDate(date)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list turns: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, turns)
	})

	mux.HandleFunc("GET /api/turns/{id}", func(w http.ResponseWriter, r *http.Request) {
		turnID := r.PathValue("id")
		if !turnIDPattern.MatchString(turnID) {
			writeJSONError(w, http.StatusForbidden, "invalid turn id")
			return
		}

		turn, err := store.GetTurn(turnID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, sql.ErrNoRows) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get turn: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, turn)
	})

	mux.HandleFunc("GET /api/nudges", func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		nudges, err := store.GetNudgesByDate(date)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list nudges: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, nudges)
	})

	mux.HandleFunc("GET /api/dates", func(w http.ResponseWriter, r *http.Request) {
		dates, err := store.GetDates()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get dates: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, dates)
	})

	mux.HandleFunc("POST /api/reset", func(w http.ResponseWriter, r *http.Request) {
		if controls.Reset == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "reset unavailable")
			return
		}
		if err := controls.Reset(r.Context()); err != nil {
			writeJSONError(w, http.StatusBadGateway, fmt.Sprintf("reset: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{}
		if controls.Status != nil {
			status = controls.Status()
		}
		var warnings []string
		if controls.Warnings != nil {
			warnings = controls.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}
		status["warnings"] = warnings
		writeJSON(w, http.StatusOK, status)
	})
}

func captureKind(raw string) (capture.Kind, bool) {
	kind := capture.Kind(raw)
	switch kind {
	case capture.KindScreen, capture.KindCamera:
		return kind, true
	}
	return "", false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ControlHooks bridge API routes to the components owned by main. Nil hooks
// degrade to 503 so the API stays usable while a device is absent.
type ControlHooks struct {
	SubmitChat      func(ctx context.Context, message string) (storage.Turn, error)
	ToggleRecording func() (enabled, accepted bool)
	StartCapture    func(kind capture.Kind) error
	StopCapture     func(kind capture.Kind)
	Reset           func(ctx context.Context) error
	Status          func() map[string]any
	Warnings        func() []string
}
