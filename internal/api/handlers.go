package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/placerank/internal/identity"
	"github.com/sells-group/placerank/internal/model"
	"github.com/sells-group/placerank/internal/rank"
	"github.com/sells-group/placerank/internal/store"
)

const (
	defaultHistoryDays = 14
	defaultSellerLimit = 50
)

type rankCheckRequest struct {
	Keyword   string `json:"keyword"`
	PlaceID   string `json:"place_id"`
	PlaceName string `json:"place_name"`
	Phone     string `json:"phone"`
	RankRange int    `json:"rank_range"`
}

type analyzeRequest struct {
	PlaceURL     string `json:"place_url"`
	KeywordCount int    `json:"keyword_count"`
	RankLimit    int    `json:"rank_limit"`
}

// health reports liveness and, when a pinger is configured, whether the
// result store answers. An unreachable store yields 503.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.deps.PingSink == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()
	if err := h.deps.PingSink(ctx); err != nil {
		h.log.Warn("health: result store unreachable", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "sink": "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "sink": "ok"})
}

func (h *Handler) proxyStatus(w http.ResponseWriter, r *http.Request) {
	if h.deps.ProbeProxy == nil {
		writeError(w, http.StatusServiceUnavailable, "proxy probe not configured")
		return
	}
	writeJSON(w, http.StatusOK, h.deps.ProbeProxy(r.Context()))
}

func (h *Handler) rankCheck(w http.ResponseWriter, r *http.Request) {
	var req rankCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.deps.Ranker.Check(r.Context(), rank.CheckRequest{
		Keyword:   req.Keyword,
		Target:    model.Target{ID: req.PlaceID, Name: req.PlaceName, Phone: req.Phone},
		ScanDepth: req.RankRange,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) rankHistory(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	days, ok := intParam(w, r, "days", defaultHistoryDays)
	if !ok {
		return
	}

	since := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	history, err := h.deps.History.QueryChecks(r.Context(), keyword, since)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"keyword": keyword,
		"days":    days,
		"history": history,
	})
}

func (h *Handler) deleteHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.deps.History.DeleteCheck(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.PlaceURL) == "" {
		writeError(w, http.StatusBadRequest, "place_url is required")
		return
	}

	rep, err := h.deps.Discoverer.Discover(r.Context(), rank.DiscoverRequest{
		PlaceURL:     req.PlaceURL,
		KeywordCount: req.KeywordCount,
		RankLimit:    req.RankLimit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) discoveryHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", 0)
	if !ok {
		return
	}
	reports, err := h.deps.History.ListDiscoveries(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (h *Handler) sellerSearch(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	if keyword == "" {
		writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}
	limit, ok := intParam(w, r, "limit", defaultSellerLimit)
	if !ok {
		return
	}

	snap, err := h.deps.Ranker.Competitors(r.Context(), keyword, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"keyword":   snap.Keyword,
		"platform":  snap.Platform,
		"count":     len(snap.Competitors),
		"total_biz": snap.Total,
		"sellers":   snap.Competitors,
	})
}

// fail maps err to a status code and writes it as a JSON error.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	var resErr *identity.ResolutionError
	switch {
	case errors.As(err, &resErr), errors.Is(err, rank.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// intParam parses a non-negative integer query parameter, writing a 400 on
// malformed input.
func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
