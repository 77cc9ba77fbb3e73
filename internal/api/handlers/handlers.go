// Package handlers implements the HTTP handlers for the UM-SAFE chat
// service. The chat endpoint is the core; the read endpoints expose the
// knowledge base and a user's own history to the client app.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/umsafe/umsafe/internal/knowledge"
	"github.com/umsafe/umsafe/internal/llm"
	"github.com/umsafe/umsafe/internal/notify"
	"github.com/umsafe/umsafe/internal/persist"
	"github.com/umsafe/umsafe/internal/store"
	"github.com/umsafe/umsafe/internal/translate"
	"github.com/umsafe/umsafe/pkg/middleware"
	"github.com/umsafe/umsafe/pkg/models"
)

// defaultListLimit caps history listings when the client sends no limit.
const defaultListLimit = 50

// Handlers holds all handler dependencies.
type Handlers struct {
	Store      store.Store
	Translator *translate.Translator
	Backend    llm.Backend
	Sink       *persist.Sink
	Notifier   *notify.Notifier
	Version    string

	// KnowledgeTimeout bounds the knowledge base fan-out per request.
	KnowledgeTimeout time.Duration
}

// New creates a Handlers instance with all dependencies.
func New(s store.Store, tr *translate.Translator, backend llm.Backend, sink *persist.Sink, notifier *notify.Notifier, version string) *Handlers {
	return &Handlers{
		Store:            s,
		Translator:       tr,
		Backend:          backend,
		Sink:             sink,
		Notifier:         notifier,
		Version:          version,
		KnowledgeTimeout: 5 * time.Second,
	}
}

// ── Health ───────────────────────────────────────────────────

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.Store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]string{"status": status})
}

func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"version": h.Version})
}

// ── Knowledge base ───────────────────────────────────────────

func (h *Handlers) ListEmbassies(w http.ResponseWriter, r *http.Request) {
	embassies, err := h.Store.ListEmbassies(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, embassies)
}

func (h *Handlers) ListRecruiters(w http.ResponseWriter, r *http.Request) {
	status := models.RecruiterStatus(r.URL.Query().Get("status"))
	recruiters, err := h.Store.ListRecruiters(r.Context(), status)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, recruiters)
}

func (h *Handlers) ListRights(w http.ResponseWriter, r *http.Request) {
	rights, err := h.Store.ListRightsResources(r.Context(), queryLimit(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rights)
}

// ── User history ─────────────────────────────────────────────

func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	msgs, err := h.Store.ListMessages(r.Context(), identity.Subject, queryLimit(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}

func (h *Handlers) ListIncidents(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	incidents, err := h.Store.ListIncidents(r.Context(), identity.Subject, queryLimit(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, incidents)
}

// ── Profile ──────────────────────────────────────────────────

// UpdateLanguage sets the caller's preferred language, which then drives
// language resolution for every subsequent chat request.
func (h *Handlers) UpdateLanguage(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req struct {
		PreferredLanguage string `json:"preferred_language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PreferredLanguage == "" {
		respondError(w, http.StatusBadRequest, "preferred_language is required")
		return
	}

	profile := &models.Profile{
		UserID:            identity.Subject,
		PreferredLanguage: req.PreferredLanguage,
	}
	if err := h.Store.UpsertProfile(r.Context(), profile); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	profile, err := h.Store.GetProfile(r.Context(), identity.Subject)
	if err != nil {
		if _, ok := err.(*store.ErrNotFound); ok {
			respondJSON(w, http.StatusOK, &models.Profile{
				UserID:            identity.Subject,
				PreferredLanguage: models.BaseLanguage,
			})
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// ── Helpers ──────────────────────────────────────────────────

func queryLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultListLimit
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// knowledgeFetch runs the knowledge fan-out under its own timeout.
func (h *Handlers) knowledgeFetch(r *http.Request) knowledge.Data {
	ctx, cancel := context.WithTimeout(r.Context(), h.KnowledgeTimeout)
	defer cancel()
	return knowledge.Fetch(ctx, h.Store)
}
