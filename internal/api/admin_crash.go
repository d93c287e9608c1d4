package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/porkytheblack/oasis/internal/crash"
	"github.com/porkytheblack/oasis/internal/httpx"
)

func (h *handlers) listCrashGroups(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	if err := httpx.RequireAppScope(r.Context(), appID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	limit, offset := pageParams(r)
	result, err := h.d.Crash.ListGroups(r.Context(), appID, limit, offset)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

// scopedCrashGroup fetches a crash group and enforces §4.8's CI
// app-scope rule against its owning app.
func (h *handlers) scopedCrashGroup(r *http.Request, groupID string) (crash.Group, error) {
	g, err := h.d.Crash.GetGroup(r.Context(), groupID)
	if err != nil {
		return crash.Group{}, err
	}
	if err := httpx.RequireAppScope(r.Context(), g.AppID); err != nil {
		return crash.Group{}, err
	}
	return g, nil
}

func (h *handlers) getCrashGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.scopedCrashGroup(r, chi.URLParam(r, "groupID"))
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, g)
}

type updateCrashGroupRequest struct {
	Status          *string `json:"status"`
	Assignee        *string `json:"assignee"`
	ResolutionNotes *string `json:"resolution_notes"`
}

func (h *handlers) updateCrashGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if _, err := h.scopedCrashGroup(r, groupID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	var req updateCrashGroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}

	var status *crash.GroupStatus
	if req.Status != nil {
		s := crash.GroupStatus(*req.Status)
		status = &s
	}

	g, err := h.d.Crash.UpdateGroup(r.Context(), groupID, crash.UpdateGroupInput{
		Status:          status,
		Assignee:        req.Assignee,
		ResolutionNotes: req.ResolutionNotes,
	})
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, g)
}

func (h *handlers) crashStats(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	if err := httpx.RequireAppScope(r.Context(), appID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	window := crash.Window(r.URL.Query().Get("window"))
	if window == "" {
		window = crash.Window24h
	}
	stats, err := h.d.Crash.Stats(r.Context(), appID, window)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

func (h *handlers) listFeedback(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	if err := httpx.RequireAppScope(r.Context(), appID); err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	limit, offset := pageParams(r)
	result, err := h.d.Crash.ListFeedback(r.Context(), appID, limit, offset)
	if err != nil {
		httpx.WriteError(h.d.Log, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}
