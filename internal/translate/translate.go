// Package translate implements the multi-provider translation abstraction.
//
// Providers are tried strictly in configured order; the first provider to
// return a non-empty trimmed string wins and its result is cached. A
// provider error or empty result never aborts the chain, and a fully
// failed chain is not an error: callers receive the original text and
// proceed in the original language.
package translate

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// Provider is one translation backend. source may be empty, meaning the
// provider should auto-detect where it can. Translate returns the
// translated text, or an error / empty string on failure.
type Provider interface {
	Name() string
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Result describes the outcome of one translation call. It is never
// persisted.
type Result struct {
	Text             string   `json:"text"`
	Translated       bool     `json:"translated"`
	Provider         string   `json:"provider,omitempty"`
	TargetLanguage   string   `json:"target_language"`
	NormalizedTarget string   `json:"normalized_target"`
	Attempts         int      `json:"attempts"`
	FailedProviders  []string `json:"failed_providers,omitempty"`
}

// languageCodeMap converts application-internal language codes to
// provider-compatible ones. Codes with no entry pass through unchanged;
// providers that do not support them fail closed and the chain degrades
// to the original text.
var languageCodeMap = map[string]string{
	"lug": "lg", // Luganda
	"ach": "ach",
	"teo": "teo",
	"lgg": "lgg",
	"nyn": "nyn",
}

// baseLanguage is the language the knowledge context and model prompt are
// authored in. Translating to it is a no-op on the outbound path.
const baseLanguage = "en"

// NormalizeTarget maps an app language code to its provider code.
func NormalizeTarget(lang string) string {
	if lang == baseLanguage {
		return baseLanguage
	}
	if mapped, ok := languageCodeMap[lang]; ok {
		return mapped
	}
	return lang
}

// Translator runs the ordered provider chain with a shared cache.
type Translator struct {
	providers []Provider
	cache     Cache
}

// NewTranslator creates a translator over the given provider order.
// A nil cache gets an unbounded in-memory default.
func NewTranslator(providers []Provider, cache Cache) *Translator {
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	return &Translator{providers: providers, cache: cache}
}

// Providers returns the configured provider names in order.
func (t *Translator) Providers() []string {
	names := make([]string, len(t.providers))
	for i, p := range t.providers {
		names[i] = p.Name()
	}
	return names
}

// Translate attempts to translate base-language text into targetLang.
//
// Empty text and base-language targets short-circuit with zero attempts.
// A cache hit returns provider "cache" with zero attempts. Otherwise each
// provider is tried in order; the winner's result is cached exactly once.
// When every provider fails (or none are configured) the original text is
// returned with Translated=false — callers must treat this as "proceed in
// original language", never as a hard failure.
func (t *Translator) Translate(ctx context.Context, text, targetLang string) Result {
	normalized := NormalizeTarget(targetLang)
	if text == "" || normalized == baseLanguage {
		return Result{Text: text, TargetLanguage: targetLang, NormalizedTarget: normalized}
	}
	return t.run(ctx, text, baseLanguage, targetLang, normalized)
}

// TranslateToBase translates user text from sourceLang into the base
// language for prompting the model. The degradation contract matches
// Translate: a failed chain returns the original text, never an error.
func (t *Translator) TranslateToBase(ctx context.Context, text, sourceLang string) Result {
	normalizedSource := NormalizeTarget(sourceLang)
	if text == "" || normalizedSource == baseLanguage {
		return Result{Text: text, TargetLanguage: baseLanguage, NormalizedTarget: baseLanguage}
	}
	return t.run(ctx, text, normalizedSource, baseLanguage, baseLanguage)
}

func (t *Translator) run(ctx context.Context, text, source, targetLang, normalized string) Result {
	res := Result{
		Text:             text,
		TargetLanguage:   targetLang,
		NormalizedTarget: normalized,
	}

	cacheKey := source + ">" + normalized + ":" + text
	if cached, ok := t.cache.Get(cacheKey); ok {
		res.Text = cached
		res.Translated = true
		res.Provider = "cache"
		return res
	}

	for _, p := range t.providers {
		res.Attempts++
		out, err := p.Translate(ctx, text, source, normalized)
		if err != nil {
			log.Debug().Str("provider", p.Name()).Str("target", normalized).Err(err).
				Msg("Translation provider failed, trying next")
			res.FailedProviders = append(res.FailedProviders, p.Name())
			continue
		}
		if strings.TrimSpace(out) == "" {
			res.FailedProviders = append(res.FailedProviders, p.Name())
			continue
		}

		t.cache.Set(cacheKey, out)
		res.Text = out
		res.Translated = true
		res.Provider = p.Name()
		return res
	}

	if len(t.providers) > 0 {
		log.Warn().Str("target", targetLang).Str("normalized", normalized).
			Strs("failed", res.FailedProviders).
			Msg("All translation providers failed, returning original text")
	}
	return res
}
