// Package waitlist implements the landing page signup endpoint.
package waitlist

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Handler serves POST /api/waitlist and GET /api/waitlist-debug.
// A nil Store answers every submission with 503.
type Handler struct {
	Store       Store
	Environment string
	Logger      *slog.Logger
}

type submission struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type successResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Data    []Entry `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Submit adds a signup.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
		return
	}
	if h.Store == nil {
		h.logger().Error("waitlist: store not configured")
		writeUnavailable(w)
		return
	}

	var sub submission
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&sub); err != nil {
		h.logger().Error("waitlist: unexpected error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "An unexpected error occurred"})
		return
	}
	sub.Name = strings.TrimSpace(sub.Name)
	sub.Email = strings.TrimSpace(sub.Email)
	if sub.Name == "" || sub.Email == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Name and email are required"})
		return
	}

	entry, err := h.Store.Add(r.Context(), sub.Name, sub.Email)
	switch {
	case errors.Is(err, ErrDuplicate):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "This email address is already on the waitlist"})
		return
	case errors.Is(err, ErrUnavailable):
		h.logger().Error("waitlist: store unavailable", "backend", h.Store.Backend(), "error", err)
		writeUnavailable(w)
		return
	case err != nil:
		h.logger().Error("waitlist: submit failed", "backend", h.Store.Backend(), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: "Failed to submit to waitlist: " + err.Error(),
		})
		return
	}

	h.logger().Info("waitlist: added", "id", entry.ID)
	writeJSON(w, http.StatusCreated, successResponse{
		Success: true,
		Message: "Successfully added to waitlist",
		Data:    []Entry{entry},
	})
}

type debugResponse struct {
	Environment     string    `json:"environment"`
	StoreConfigured bool      `json:"storeConfigured"`
	Backend         string    `json:"backend,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Debug reports whether a store is configured without exposing credentials.
func (h *Handler) Debug(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
		return
	}
	resp := debugResponse{
		Environment:     h.Environment,
		StoreConfigured: h.Store != nil,
		Timestamp:       time.Now().UTC(),
	}
	if h.Store != nil {
		resp.Backend = h.Store.Backend()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeUnavailable(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{
		Error: "Waitlist is temporarily unavailable. Please try again later.",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
