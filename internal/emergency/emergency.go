// Package emergency provides distress detection and incident
// classification for user messages.
//
// Detection is a lower-cased substring scan against per-language keyword
// lists; classification is an ordered rule table evaluated top-down.
// Both are pure and total: no network, no failure mode.
package emergency

import (
	"strings"
)

// defaultLanguage is the keyword list used when a language has no list of
// its own.
const defaultLanguage = "en"

// keywordLists holds the distress keywords per application language code.
var keywordLists = map[string][]string{
	"en":  {"help", "trapped", "danger", "abuse", "beaten", "hurt", "escape", "passport taken", "cant leave", "scared", "emergency", "police", "violence", "threat", "rape", "assault"},
	"lug": {"nnyamba", "obuyambi", "ndi mu bulabe", "nsanyiziddwa", "nkubiddwa", "obulumi", "okuduka"},
	"ach": {"kony", "akonyi", "peko", "gwokko", "gugwoko", "bal"},
	"teo": {"akokis", "apopo", "icwari", "acwar", "agwara", "icwarit"},
	"lgg": {"koni", "owuyo", "anzira", "anyuru", "ofe", "ozapi"},
	"nyn": {"nkwetenga", "omushango", "ebizibu", "okukuba", "obutaruganda"},
}

// Detect reports whether the message contains a distress keyword for the
// given language. Languages without a keyword list fall back to the
// default list. Returns false on empty input.
func Detect(message, language string) bool {
	if message == "" {
		return false
	}
	keywords, ok := keywordLists[language]
	if !ok {
		keywords = keywordLists[defaultLanguage]
	}

	lower := strings.ToLower(message)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Keywords returns the keyword list for a language (default list when the
// language has none). Exposed so operators can audit the active lists.
func Keywords(language string) []string {
	if kws, ok := keywordLists[language]; ok {
		return kws
	}
	return keywordLists[defaultLanguage]
}
