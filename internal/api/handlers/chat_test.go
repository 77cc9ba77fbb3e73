package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/umsafe/umsafe/internal/api/handlers"
	"github.com/umsafe/umsafe/internal/config"
	"github.com/umsafe/umsafe/internal/llm"
	"github.com/umsafe/umsafe/internal/notify"
	"github.com/umsafe/umsafe/internal/persist"
	"github.com/umsafe/umsafe/internal/store"
	"github.com/umsafe/umsafe/internal/translate"
	"github.com/umsafe/umsafe/pkg/contracts"
	"github.com/umsafe/umsafe/pkg/middleware"
	"github.com/umsafe/umsafe/pkg/models"
)

// ── Test doubles ─────────────────────────────────────────────

type fakeBackend struct {
	deltas  []string
	err     error
	calls   int
	system  string
	inbound []models.InboundMessage
}

func (b *fakeBackend) StreamChat(ctx context.Context, system string, messages []models.InboundMessage, onDelta func(string) error) error {
	b.calls++
	b.system = system
	b.inbound = messages
	for _, d := range b.deltas {
		if err := onDelta(d); err != nil {
			return err
		}
	}
	return b.err
}

type fnProvider struct {
	name string
	fn   func(text, source, target string) (string, error)
}

func (p *fnProvider) Name() string { return p.name }
func (p *fnProvider) Translate(ctx context.Context, text, source, target string) (string, error) {
	return p.fn(text, source, target)
}

type chatFixture struct {
	h       *handlers.Handlers
	backend *fakeBackend
	store   *store.MemoryStore
	sink    *persist.Sink
}

func newChatFixture(t *testing.T, backend *fakeBackend, providers ...translate.Provider) *chatFixture {
	t.Helper()
	ms := store.NewSeededMemoryStore()
	sink := persist.NewSink(ms, 16)
	h := handlers.New(ms, translate.NewTranslator(providers, nil), backend, sink, notify.NewNotifier(config.AlertConfig{}), "test")
	return &chatFixture{h: h, backend: backend, store: ms, sink: sink}
}

// flush drains the background sink so store assertions see all writes.
func (f *chatFixture) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.sink.Close(ctx); err != nil {
		t.Fatalf("sink close: %v", err)
	}
}

func chatRequest(t *testing.T, body models.ChatRequest, identity *contracts.Identity) *http.Request {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(buf))
	if identity != nil {
		r = r.WithContext(middleware.SetIdentity(r.Context(), identity))
	}
	return r
}

func userIdentity() *contracts.Identity {
	return &contracts.Identity{Subject: "user-1", Provider: "identity_service"}
}

// parseSSE splits an event-stream body into content deltas and counts
// terminal markers.
func parseSSE(t *testing.T, body string) (contents []string, done int) {
	t.Helper()
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			done++
			continue
		}
		var chunk models.StreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			t.Fatalf("malformed chunk %q: %v", payload, err)
		}
		if len(chunk.Choices) != 1 {
			t.Fatalf("chunk has %d choices", len(chunk.Choices))
		}
		contents = append(contents, chunk.Choices[0].Delta.Content)
	}
	return contents, done
}

// ── Chat ─────────────────────────────────────────────────────

func TestChatRejectsMissingIdentity(t *testing.T) {
	f := newChatFixture(t, &fakeBackend{deltas: []string{"hi"}})
	w := httptest.NewRecorder()

	f.h.Chat(w, chatRequest(t, models.ChatRequest{
		Messages: []models.InboundMessage{{Role: models.RoleUser, Content: "hello"}},
	}, nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if f.backend.calls != 0 {
		t.Error("model must not be called without an identity")
	}
	f.flush(t)
	msgs, _ := f.store.ListMessages(context.Background(), "user-1", 0)
	if len(msgs) != 0 {
		t.Errorf("nothing should be persisted, got %d messages", len(msgs))
	}
}

func TestChatRejectsBadBody(t *testing.T) {
	f := newChatFixture(t, &fakeBackend{})
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader("{nope"))
	r = r.WithContext(middleware.SetIdentity(r.Context(), userIdentity()))

	f.h.Chat(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	f.h.Chat(w, chatRequest(t, models.ChatRequest{}, userIdentity()))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty messages: status = %d, want 400", w.Code)
	}
}

func TestChatStreamsThroughInBaseLanguage(t *testing.T) {
	f := newChatFixture(t, &fakeBackend{deltas: []string{"Stay ", "calm ", "and call your embassy."}})
	w := httptest.NewRecorder()

	f.h.Chat(w, chatRequest(t, models.ChatRequest{
		Messages: []models.InboundMessage{{Role: models.RoleUser, Content: "How do I contact my embassy?"}},
	}, userIdentity()))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("X-Translation-Degraded") != "" {
		t.Error("degraded header must not be set on a clean run")
	}

	contents, done := parseSSE(t, w.Body.String())
	if done != 1 {
		t.Fatalf("terminal markers = %d, want exactly 1", done)
	}
	full := strings.Join(contents, "")
	if full != "Stay calm and call your embassy." {
		t.Errorf("forwarded stream = %q", full)
	}

	f.flush(t)
	msgs, _ := f.store.ListMessages(context.Background(), "user-1", 0)
	if len(msgs) != 2 {
		t.Fatalf("persisted %d messages, want user+assistant pair", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[0].Content != "How do I contact my embassy?" {
		t.Errorf("user message = %+v", msgs[0])
	}
	if msgs[1].Role != models.RoleAssistant || msgs[1].Content != full {
		t.Errorf("persisted assistant text %q != forwarded stream %q", msgs[1].Content, full)
	}
	if msgs[1].Language != models.BaseLanguage {
		t.Errorf("assistant language = %q", msgs[1].Language)
	}
}

func TestChatBuffersAndRetranslates(t *testing.T) {
	backend := &fakeBackend{deltas: []string{"Keep your contract. ", "Call the hotline."}}
	translated := "Kuuma endagaano yo. Kuba essimu ey'obuyambi."
	f := newChatFixture(t, backend, &fnProvider{
		name: "scripted",
		fn: func(text, source, target string) (string, error) {
			if target == models.BaseLanguage {
				return "translated inbound", nil
			}
			if target != "lg" {
				return "", nil
			}
			return translated, nil
		},
	})
	w := httptest.NewRecorder()

	f.h.Chat(w, chatRequest(t, models.ChatRequest{
		Messages: []models.InboundMessage{{Role: models.RoleUser, Content: "Nkusaba obuyambi ku ndagaano"}},
		Language: "lug",
	}, userIdentity()))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Translation-Degraded") != "" {
		t.Error("degraded header set although every translation succeeded")
	}

	contents, done := parseSSE(t, w.Body.String())
	if done != 1 {
		t.Fatalf("terminal markers = %d, want exactly 1", done)
	}
	if got := strings.Join(contents, ""); got != translated {
		t.Errorf("synthetic stream concat = %q, want %q", got, translated)
	}
	if len(contents) < 2 {
		t.Errorf("expected sentence-paced chunks, got %d", len(contents))
	}

	// The model must see the base-language conversation.
	if backend.inbound[len(backend.inbound)-1].Content != "translated inbound" {
		t.Errorf("model saw %q", backend.inbound[len(backend.inbound)-1].Content)
	}

	f.flush(t)
	msgs, _ := f.store.ListMessages(context.Background(), "user-1", 0)
	if len(msgs) != 2 {
		t.Fatalf("persisted %d messages", len(msgs))
	}
	if msgs[0].Content != "Nkusaba obuyambi ku ndagaano" || msgs[0].Language != "lug" {
		t.Errorf("user message = %+v", msgs[0])
	}
	if msgs[1].Content != translated || msgs[1].Language != "lug" {
		t.Errorf("assistant message = %+v", msgs[1])
	}
}

func TestChatDegradesWhenTranslationFails(t *testing.T) {
	backend := &fakeBackend{deltas: []string{"Original answer."}}
	f := newChatFixture(t, backend, &fnProvider{
		name: "broken",
		fn:   func(text, source, target string) (string, error) { return "", nil },
	})
	w := httptest.NewRecorder()

	f.h.Chat(w, chatRequest(t, models.ChatRequest{
		Messages: []models.InboundMessage{{Role: models.RoleUser, Content: "weebale"}},
		Language: "lug",
	}, userIdentity()))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("X-Translation-Degraded") != "true" {
		t.Error("degraded header missing after full chain failure")
	}
	contents, done := parseSSE(t, w.Body.String())
	if done != 1 {
		t.Fatalf("terminal markers = %d", done)
	}
	if got := strings.Join(contents, ""); got != "Original answer." {
		t.Errorf("stream = %q, want untranslated model text", got)
	}
}

func TestChatMidStreamErrorTerminatesStream(t *testing.T) {
	f := newChatFixture(t, &fakeBackend{
		deltas: []string{"Stay ", "calm."},
		err:    &llm.UpstreamError{Status: http.StatusBadGateway},
	})
	w := httptest.NewRecorder()

	f.h.Chat(w, chatRequest(t, models.ChatRequest{
		Messages: []models.InboundMessage{{Role: models.RoleUser, Content: "hello"}},
	}, userIdentity()))

	// Headers went out with the first delta, so the error cannot change
	// the status; the stream must still end with the terminal marker.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	contents, done := parseSSE(t, w.Body.String())
	if done != 1 {
		t.Fatalf("terminal markers = %d, want exactly 1", done)
	}
	delivered := strings.Join(contents, "")
	if delivered != "Stay calm." {
		t.Errorf("delivered = %q", delivered)
	}

	// The transcript records what the user actually saw.
	f.flush(t)
	msgs, _ := f.store.ListMessages(context.Background(), "user-1", 0)
	if len(msgs) != 2 || msgs[1].Content != delivered {
		t.Errorf("persisted %d messages, assistant = %q", len(msgs), msgsContent(msgs))
	}
}

func msgsContent(msgs []models.ChatMessage) string {
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Content
}

func TestChatModelErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"rate limited", &llm.UpstreamError{Status: http.StatusTooManyRequests}, http.StatusTooManyRequests, "Rate limits exceeded, please try again later."},
		{"bad credentials", &llm.UpstreamError{Status: http.StatusUnauthorized}, http.StatusPaymentRequired, "AI model is not configured correctly or has exhausted its quota."},
		{"upstream failure", &llm.UpstreamError{Status: http.StatusInternalServerError}, http.StatusInternalServerError, "AI API error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newChatFixture(t, &fakeBackend{err: tc.err})
			w := httptest.NewRecorder()

			f.h.Chat(w, chatRequest(t, models.ChatRequest{
				Messages: []models.InboundMessage{{Role: models.RoleUser, Content: "hello"}},
			}, userIdentity()))

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != tc.wantError {
				t.Errorf("error = %q, want %q", body["error"], tc.wantError)
			}

			f.flush(t)
			msgs, _ := f.store.ListMessages(context.Background(), "user-1", 0)
			if len(msgs) != 0 {
				t.Errorf("failed turn must not persist messages, got %d", len(msgs))
			}
		})
	}
}

func TestChatEmergencyCreatesIncidentAndAudit(t *testing.T) {
	f := newChatFixture(t, &fakeBackend{deltas: []string{"Call the emergency hotline now."}})
	w := httptest.NewRecorder()

	query := "HELP my passport taken by the employer"
	f.h.Chat(w, chatRequest(t, models.ChatRequest{
		Messages: []models.InboundMessage{{Role: models.RoleUser, Content: query}},
	}, userIdentity()))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	f.flush(t)
	ctx := context.Background()

	incidents, _ := f.store.ListIncidents(ctx, "user-1", 0)
	if len(incidents) != 1 {
		t.Fatalf("incidents = %d, want 1", len(incidents))
	}
	inc := incidents[0]
	if inc.IncidentType != models.IncidentPassportConfiscation {
		t.Errorf("type = %q", inc.IncidentType)
	}
	if inc.Severity != models.SeverityCritical || !inc.FollowUpNeeded {
		t.Errorf("severity = %q followUp = %v", inc.Severity, inc.FollowUpNeeded)
	}
	if inc.Status != "reported" {
		t.Errorf("status = %q", inc.Status)
	}

	msgs, _ := f.store.ListMessages(ctx, "user-1", 0)
	var audit *models.ChatMessage
	for i := range msgs {
		if msgs[i].Role == models.RoleSystem {
			audit = &msgs[i]
		}
	}
	if audit == nil {
		t.Fatal("no emergency audit message persisted")
	}
	want := "EMERGENCY_DETECTED: " + strings.ToLower(query)
	if audit.Content != want {
		t.Errorf("audit content = %q, want %q", audit.Content, want)
	}
}

func TestChatPrefersProfileLanguage(t *testing.T) {
	backend := &fakeBackend{deltas: []string{"Answer."}}
	var targets []string
	f := newChatFixture(t, backend, &fnProvider{
		name: "recorder",
		fn: func(text, source, target string) (string, error) {
			targets = append(targets, target)
			return "translated", nil
		},
	})
	if err := f.store.UpsertProfile(context.Background(), &models.Profile{UserID: "user-1", PreferredLanguage: "lug"}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	w := httptest.NewRecorder()
	f.h.Chat(w, chatRequest(t, models.ChatRequest{
		Messages: []models.InboundMessage{{Role: models.RoleUser, Content: "hello"}},
		Language: "en", // profile preference wins over the request body
	}, userIdentity()))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	found := false
	for _, target := range targets {
		if target == "lg" {
			found = true
		}
	}
	if !found {
		t.Errorf("translation targets = %v, want normalized profile language", targets)
	}
}
