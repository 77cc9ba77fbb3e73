package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/umsafe/umsafe/internal/emergency"
	"github.com/umsafe/umsafe/internal/knowledge"
	"github.com/umsafe/umsafe/internal/llm"
	"github.com/umsafe/umsafe/pkg/middleware"
	"github.com/umsafe/umsafe/pkg/models"
)

// emergencyAuditPrefix tags the system message appended when distress is
// detected, so monitoring can find these turns without parsing content.
const emergencyAuditPrefix = "EMERGENCY_DETECTED: "

// emergencyAuditLimit bounds the audit excerpt length.
const emergencyAuditLimit = 100

// syntheticChunkDelay paces the re-translated response stream.
const syntheticChunkDelay = 100 * time.Millisecond

// degradedHeader tells the client a translation chain failed and the
// response proceeded in the original language. The server is stateless
// across requests; the client deduplicates its notice.
const degradedHeader = "X-Translation-Degraded"

// sentenceRE splits translated text into natural streaming chunks.
var sentenceRE = regexp.MustCompile(`[^.!?]+[.!?]+`)

// Chat handles POST /api/v1/chat: the knowledge-grounded, bilingual,
// streaming assistant endpoint.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		respondError(w, http.StatusBadRequest, "messages are required")
		return
	}

	lang := h.resolveLanguage(r, identity.Subject, req.Language)

	// Knowledge fan-out runs while we detect distress and translate the
	// inbound conversation; neither side depends on the other.
	knowledgeCh := make(chan knowledge.Data, 1)
	go func() { knowledgeCh <- h.knowledgeFetch(r) }()

	last := req.Messages[len(req.Messages)-1]
	userQuery := ""
	if last.Role == models.RoleUser {
		userQuery = last.Content
	}

	isEmergency := emergency.Detect(userQuery, lang)
	if isEmergency {
		log.Warn().Str("user", identity.Subject).Str("language", lang).Msg("emergency detected in user message")
		h.Sink.SaveMessages(models.ChatMessage{
			UserID:   identity.Subject,
			Role:     models.RoleSystem,
			Content:  emergencyAuditPrefix + models.Truncate(strings.ToLower(userQuery), emergencyAuditLimit),
			Language: lang,
		})
	}

	// Incident escalation is a persistence side effect; it never gates
	// the response.
	if userQuery != "" && emergency.ShouldReport(userQuery, isEmergency) {
		c := emergency.Classify(userQuery, isEmergency)
		incident := models.IncidentReport{
			UserID:         identity.Subject,
			IncidentType:   c.Type,
			Severity:       c.Severity,
			Description:    models.Truncate(userQuery, models.MaxIncidentDescription),
			Status:         "reported",
			FollowUpNeeded: c.FollowUpNeeded,
		}
		h.Sink.SaveIncident(incident)
		h.Notifier.AlertIncident(incident, lang)
	}

	// Translate the whole user side of the conversation into the base
	// language so the model sees consistent context.
	prompted := make([]models.InboundMessage, len(req.Messages))
	copy(prompted, req.Messages)
	degraded := false
	if lang != models.BaseLanguage {
		for i, m := range prompted {
			if m.Role != models.RoleUser || m.Content == "" {
				continue
			}
			res := h.Translator.TranslateToBase(r.Context(), m.Content, lang)
			if res.Translated {
				prompted[i].Content = res.Text
			} else if res.Attempts > 0 {
				degraded = true
			}
		}
	}

	data := <-knowledgeCh
	systemPrompt := knowledge.SystemPrompt(data, userQuery, isEmergency)

	if topics := knowledge.Topics(userQuery, isEmergency); len(topics) > 0 {
		log.Info().Strs("topics", topics).Str("user", identity.Subject).Msg("conversation topics")
	}

	if lang == models.BaseLanguage {
		h.streamThrough(w, r, identity.Subject, last, systemPrompt, prompted, degraded)
		return
	}
	h.bufferAndRetranslate(w, r, identity.Subject, lang, last, systemPrompt, prompted, degraded)
}

// resolveLanguage picks the response language: stored profile preference,
// then the request body, then the base language.
func (h *Handlers) resolveLanguage(r *http.Request, userID, requested string) string {
	if profile, err := h.Store.GetProfile(r.Context(), userID); err == nil && profile.PreferredLanguage != "" {
		return profile.PreferredLanguage
	}
	if requested != "" {
		return requested
	}
	return models.BaseLanguage
}

// streamThrough forwards the model's stream to the client unmodified
// while accumulating the full text for persistence.
func (h *Handlers) streamThrough(w http.ResponseWriter, r *http.Request, userID string, last models.InboundMessage, systemPrompt string, prompted []models.InboundMessage, degraded bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	var full strings.Builder
	started := false

	err := h.Backend.StreamChat(r.Context(), systemPrompt, prompted, func(delta string) error {
		if !started {
			writeStreamHeaders(w, degraded)
			flusher.Flush()
			started = true
		}
		full.WriteString(delta)
		return writeChunk(w, flusher, delta)
	})
	if err != nil {
		if !started {
			status, msg := modelErrorResponse(err)
			respondError(w, status, msg)
			return
		}
		// The stream already reached the client: terminate it cleanly
		// and keep the delivered portion, so the transcript matches
		// what the user saw.
		log.Error().Err(err).Msg("model stream aborted mid-response")
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
		h.persistTurn(userID, last.Content, models.BaseLanguage, full.String(), models.BaseLanguage)
		return
	}

	if !started {
		// Model produced no content at all. Still a valid stream.
		writeStreamHeaders(w, degraded)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()

	h.persistTurn(userID, last.Content, models.BaseLanguage, full.String(), models.BaseLanguage)
}

// bufferAndRetranslate consumes the whole model stream, translates it to
// the resolved language, and replays it to the client as a synthetic
// sentence-paced stream with the same wire shape as the pass-through path.
func (h *Handlers) bufferAndRetranslate(w http.ResponseWriter, r *http.Request, userID, lang string, last models.InboundMessage, systemPrompt string, prompted []models.InboundMessage, degraded bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	var full strings.Builder
	err := h.Backend.StreamChat(r.Context(), systemPrompt, prompted, func(delta string) error {
		full.WriteString(delta)
		return nil
	})
	if err != nil {
		status, msg := modelErrorResponse(err)
		respondError(w, status, msg)
		return
	}

	res := h.Translator.Translate(r.Context(), full.String(), lang)
	if !res.Translated && res.Attempts > 0 {
		degraded = true
	}

	h.persistTurn(userID, last.Content, lang, res.Text, lang)

	writeStreamHeaders(w, degraded)
	flusher.Flush()

	sentences := sentenceRE.FindAllString(res.Text, -1)
	if len(sentences) == 0 {
		sentences = []string{res.Text}
	}

	ticker := time.NewTicker(syntheticChunkDelay)
	defer ticker.Stop()
	for _, sentence := range sentences {
		select {
		case <-r.Context().Done():
			// Client went away; stop pacing immediately.
			return
		case <-ticker.C:
		}
		if err := writeChunk(w, flusher, sentence); err != nil {
			return
		}
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// persistTurn schedules the user/assistant message pair for background
// persistence. Empty assistant text is skipped entirely, matching a
// stream that produced no content.
func (h *Handlers) persistTurn(userID, userText, userLang, assistantText, assistantLang string) {
	if assistantText == "" {
		return
	}
	h.Sink.SaveMessages(
		models.ChatMessage{UserID: userID, Role: models.RoleUser, Content: userText, Language: userLang},
		models.ChatMessage{UserID: userID, Role: models.RoleAssistant, Content: assistantText, Language: assistantLang},
	)
}

func writeStreamHeaders(w http.ResponseWriter, degraded bool) {
	if degraded {
		w.Header().Set(degradedHeader, "true")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
}

func writeChunk(w http.ResponseWriter, flusher http.Flusher, content string) error {
	data, _ := json.Marshal(models.Chunk(content))
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// modelErrorResponse maps a model backend failure to the client-facing
// status and message.
func modelErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, llm.ErrRateLimited):
		return http.StatusTooManyRequests, "Rate limits exceeded, please try again later."
	case errors.Is(err, llm.ErrProviderConfig):
		return http.StatusPaymentRequired, "AI model is not configured correctly or has exhausted its quota."
	default:
		return http.StatusInternalServerError, "AI API error"
	}
}
