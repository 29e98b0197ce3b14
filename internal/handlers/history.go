package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/AnshRaj112/globalchat/internal/models"
	"github.com/AnshRaj112/globalchat/internal/services"
)

// HistoryResponse is returned by GET /api/messages.
type HistoryResponse struct {
	Success  bool             `json:"success"`
	Messages []models.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TokenResolver maps a session token to its user id.
type TokenResolver interface {
	UserID(ctx context.Context, token string) (string, error)
}

// SnapshotSource returns the room's messages oldest first.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]models.Message, error)
}

// HistoryHandler returns the newest messages of the room to signed-in callers.
// Query params:
//
//	limit (optional, default 50, max 500)
type HistoryHandler struct {
	Tokens TokenResolver
	Feed   SnapshotSource
	Logger zerolog.Logger
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Tokens.UserID(ctx, bearerToken(r)); err != nil {
		if errors.Is(err, services.ErrNotSignedIn) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "sign in required"})
			return
		}
		h.Logger.Error().Err(err).Msg("resolve session failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "failed to load messages"})
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	msgs, err := h.Feed.Snapshot(ctx)
	if err != nil {
		h.Logger.Error().Err(err).Msg("load snapshot failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "failed to load messages"})
		return
	}
	hasMore := len(msgs) > limit
	if hasMore {
		msgs = msgs[len(msgs)-limit:]
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Success: true, Messages: msgs, HasMore: hasMore})
}
