package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/umsafe/umsafe/internal/config"
)

// BuildProviders assembles the provider chain from configuration.
// Providers missing required configuration are skipped at build time so
// they never consume an attempt.
func BuildProviders(cfg config.TranslateConfig) []Provider {
	client := &http.Client{Timeout: cfg.Timeout}
	if cfg.Timeout <= 0 {
		client.Timeout = 10 * time.Second
	}

	var out []Provider
	for _, name := range cfg.ProviderOrder {
		switch strings.ToLower(name) {
		case "mymemory":
			out = append(out, &MyMemoryProvider{Client: client})
		case "libretranslate":
			if cfg.LibreURL != "" {
				out = append(out, &LibreTranslateProvider{Client: client, BaseURL: cfg.LibreURL})
			}
		case "google":
			if cfg.GoogleAPIKey != "" {
				out = append(out, &GoogleTranslateProvider{Client: client, APIKey: cfg.GoogleAPIKey})
			}
		case "deepl":
			if cfg.DeepLAPIKey != "" {
				out = append(out, &DeepLProvider{Client: client, APIKey: cfg.DeepLAPIKey})
			}
		}
	}
	return out
}

// ── MyMemory ────────────────────────────────────────────────
// Free keyless API: GET api.mymemory.translated.net/get?q=...&langpair=...

type MyMemoryProvider struct {
	Client   *http.Client
	Endpoint string // override for tests
}

func (p *MyMemoryProvider) Name() string { return "mymemory" }

func (p *MyMemoryProvider) Translate(ctx context.Context, text, source, target string) (string, error) {
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = "https://api.mymemory.translated.net"
	}
	// MyMemory has no auto-detect; the langpair needs an explicit source.
	if source == "" {
		source = baseLanguage
	}

	u := fmt.Sprintf("%s/get?q=%s&langpair=%s",
		endpoint, url.QueryEscape(text), url.QueryEscape(source+"|"+target))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return "", fmt.Errorf("mymemory: create request: %w", err)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("mymemory: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("mymemory: status %d: %s", resp.StatusCode, string(body))
	}

	var decoded struct {
		ResponseData struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("mymemory: decode response: %w", err)
	}
	return decoded.ResponseData.TranslatedText, nil
}

// ── LibreTranslate ──────────────────────────────────────────
// Self-hosted or public instance: POST {base}/translate

type LibreTranslateProvider struct {
	Client  *http.Client
	BaseURL string
}

func (p *LibreTranslateProvider) Name() string { return "libretranslate" }

func (p *LibreTranslateProvider) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == "" {
		source = "auto"
	}
	body, _ := json.Marshal(map[string]string{
		"q":      text,
		"source": source,
		"target": target,
		"format": "text",
	})

	u := strings.TrimRight(p.BaseURL, "/") + "/translate"
	req, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("libretranslate: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("libretranslate: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("libretranslate: status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("libretranslate: decode response: %w", err)
	}
	return decoded.TranslatedText, nil
}

// ── Google Translate v2 ─────────────────────────────────────

type GoogleTranslateProvider struct {
	Client   *http.Client
	APIKey   string
	Endpoint string // override for tests
}

func (p *GoogleTranslateProvider) Name() string { return "google" }

func (p *GoogleTranslateProvider) Translate(ctx context.Context, text, source, target string) (string, error) {
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = "https://translation.googleapis.com/language/translate/v2"
	}

	// Google auto-detects the source when it is omitted.
	payload := map[string]string{"q": text, "target": target}
	if source != "" && source != "auto" {
		payload["source"] = source
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint+"?key="+url.QueryEscape(p.APIKey), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("google: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("google: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("google: status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded struct {
		Data struct {
			Translations []struct {
				TranslatedText string `json:"translatedText"`
			} `json:"translations"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("google: decode response: %w", err)
	}
	if len(decoded.Data.Translations) == 0 {
		return "", fmt.Errorf("google: empty translations array")
	}
	return decoded.Data.Translations[0].TranslatedText, nil
}

// ── DeepL ───────────────────────────────────────────────────

type DeepLProvider struct {
	Client   *http.Client
	APIKey   string
	Endpoint string // override for tests
}

func (p *DeepLProvider) Name() string { return "deepl" }

func (p *DeepLProvider) Translate(ctx context.Context, text, source, target string) (string, error) {
	// DeepL supports only two-letter-ish codes; longer regional codes
	// are not worth an attempt.
	if len(target) > 3 {
		return "", fmt.Errorf("deepl: unsupported target language %q", target)
	}

	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = "https://api-free.deepl.com/v2/translate"
	}

	form := url.Values{}
	form.Set("auth_key", p.APIKey)
	form.Set("text", text)
	form.Set("target_lang", strings.ToUpper(target))
	if source != "" && source != "auto" {
		form.Set("source_lang", strings.ToUpper(source))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("deepl: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepl: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("deepl: status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("deepl: decode response: %w", err)
	}
	if len(decoded.Translations) == 0 {
		return "", fmt.Errorf("deepl: empty translations array")
	}
	return decoded.Translations[0].Text, nil
}
