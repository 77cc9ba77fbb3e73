package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/umsafe/umsafe/internal/api"
	"github.com/umsafe/umsafe/internal/api/handlers"
	"github.com/umsafe/umsafe/internal/config"
	"github.com/umsafe/umsafe/internal/notify"
	"github.com/umsafe/umsafe/internal/persist"
	"github.com/umsafe/umsafe/internal/store"
	"github.com/umsafe/umsafe/internal/translate"
	"github.com/umsafe/umsafe/pkg/contracts"
	"github.com/umsafe/umsafe/pkg/models"
)

// stubChain authenticates every request carrying the test token and
// claims nothing else.
type stubChain struct {
	identity *contracts.Identity
}

func (c *stubChain) Authenticate(ctx context.Context, r *http.Request) (*contracts.Identity, error) {
	if r.Header.Get("Authorization") == "Bearer test-token" {
		return c.identity, nil
	}
	return nil, nil
}

func (c *stubChain) RegisterProvider(p contracts.AuthProvider) {}

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	ms := store.NewSeededMemoryStore()
	sink := persist.NewSink(ms, 16)
	t.Cleanup(func() { sink.Close(context.Background()) })

	h := handlers.New(ms, translate.NewTranslator(nil, nil), &fakeBackend{}, sink, notify.NewNotifier(config.AlertConfig{}), "1.2.3")
	srv := httptest.NewServer(api.NewRouter(h, &stubChain{identity: userIdentity()}))
	t.Cleanup(srv.Close)
	return srv, ms
}

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHealthAndVersion(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := get(t, srv.URL+"/health", "")
	var health map[string]string
	decode(t, resp, &health)
	if resp.StatusCode != http.StatusOK || health["status"] != "ok" {
		t.Errorf("health = %d %v", resp.StatusCode, health)
	}

	resp = get(t, srv.URL+"/version", "")
	var version map[string]string
	decode(t, resp, &version)
	if version["version"] != "1.2.3" {
		t.Errorf("version = %v", version)
	}
}

func TestKnowledgeEndpointsArePublic(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := get(t, srv.URL+"/api/v1/knowledge/embassies", "")
	var embassies []models.EmbassyContact
	decode(t, resp, &embassies)
	if resp.StatusCode != http.StatusOK || len(embassies) == 0 {
		t.Errorf("embassies = %d, %d records", resp.StatusCode, len(embassies))
	}

	resp = get(t, srv.URL+"/api/v1/knowledge/recruiters?status=active", "")
	var recruiters []models.Recruiter
	decode(t, resp, &recruiters)
	for _, r := range recruiters {
		if r.Status != models.RecruiterActive {
			t.Errorf("status filter leaked %q recruiter", r.Status)
		}
	}

	resp = get(t, srv.URL+"/api/v1/knowledge/rights?limit=1", "")
	var rights []models.RightsResource
	decode(t, resp, &rights)
	if len(rights) != 1 {
		t.Errorf("rights limit not applied: %d", len(rights))
	}
}

func TestHistoryRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/api/v1/chat/messages", "/api/v1/incidents", "/api/v1/profile/"} {
		resp := get(t, srv.URL+path, "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s without token: status = %d, want 401", path, resp.StatusCode)
		}
		if resp.Header.Get("WWW-Authenticate") == "" {
			t.Errorf("%s: missing WWW-Authenticate challenge", path)
		}
		// Same single-field envelope as every other error response.
		var body map[string]string
		decode(t, resp, &body)
		if body["error"] == "" {
			t.Errorf("%s: empty error message", path)
		}
		if _, ok := body["message"]; ok {
			t.Errorf("%s: unexpected message field alongside error", path)
		}
	}
}

func TestListMessagesScopedToCaller(t *testing.T) {
	srv, ms := newTestServer(t)
	ctx := context.Background()

	for _, userID := range []string{"user-1", "someone-else"} {
		err := ms.CreateMessage(ctx, &models.ChatMessage{
			UserID: userID, Role: models.RoleUser, Content: "from " + userID, Language: "en",
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	resp := get(t, srv.URL+"/api/v1/chat/messages", "test-token")
	var msgs []models.ChatMessage
	decode(t, resp, &msgs)
	if len(msgs) != 1 || msgs[0].UserID != "user-1" {
		t.Errorf("messages = %+v, want only the caller's", msgs)
	}
}

func TestProfileLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	// No stored profile yet: a default comes back rather than a 404, so
	// clients need no special first-run handling.
	resp := get(t, srv.URL+"/api/v1/profile/", "test-token")
	var profile models.Profile
	decode(t, resp, &profile)
	if resp.StatusCode != http.StatusOK || profile.PreferredLanguage != models.BaseLanguage {
		t.Fatalf("default profile = %d %+v", resp.StatusCode, profile)
	}

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/profile/language",
		strings.NewReader(`{"preferred_language":"ach"}`))
	req.Header.Set("Authorization", "Bearer test-token")
	req.Header.Set("Content-Type", "application/json")
	putResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT language: %v", err)
	}
	decode(t, putResp, &profile)
	if putResp.StatusCode != http.StatusOK || profile.PreferredLanguage != "ach" {
		t.Fatalf("update = %d %+v", putResp.StatusCode, profile)
	}

	resp = get(t, srv.URL+"/api/v1/profile/", "test-token")
	decode(t, resp, &profile)
	if profile.PreferredLanguage != "ach" {
		t.Errorf("stored language = %q", profile.PreferredLanguage)
	}
}

func TestUpdateLanguageValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/profile/language", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer test-token")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty language: status = %d, want 400", resp.StatusCode)
	}
}

func TestListIncidentsScopedToCaller(t *testing.T) {
	srv, ms := newTestServer(t)
	ctx := context.Background()

	for _, userID := range []string{"user-1", "someone-else"} {
		err := ms.CreateIncident(ctx, &models.IncidentReport{
			UserID: userID, IncidentType: models.IncidentOther,
			Severity: models.SeverityMedium, Status: "reported",
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	resp := get(t, srv.URL+"/api/v1/incidents", "test-token")
	var incidents []models.IncidentReport
	decode(t, resp, &incidents)
	if len(incidents) != 1 || incidents[0].UserID != "user-1" {
		t.Errorf("incidents = %+v, want only the caller's", incidents)
	}
}
