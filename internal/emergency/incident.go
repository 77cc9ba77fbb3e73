package emergency

import (
	"strings"

	"github.com/umsafe/umsafe/pkg/models"
)

// reportTriggers are the non-emergency phrases that still warrant an
// incident report.
var reportTriggers = []string{"abuse", "problem", "complaint", "not paid", "passport taken"}

// Classification is the outcome of triaging a user query.
type Classification struct {
	Type           models.IncidentType
	Severity       models.IncidentSeverity
	FollowUpNeeded bool
}

// ShouldReport reports whether the query should produce an incident
// report. Any detected emergency qualifies; otherwise the query must
// contain one of the report trigger phrases.
func ShouldReport(query string, isEmergency bool) bool {
	if isEmergency {
		return true
	}
	lower := strings.ToLower(query)
	for _, t := range reportTriggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// Classify triages a query into an incident type and severity.
//
// Severity: critical when an emergency was detected or the query mentions
// immediate danger, high for abuse or violence, medium otherwise. The
// type rules are evaluated in order and the first match wins. Follow-up
// is required for critical and high severities.
func Classify(query string, isEmergency bool) Classification {
	lower := strings.ToLower(query)

	severity := models.SeverityMedium
	switch {
	case isEmergency || containsAny(lower, "danger", "hurt", "help"):
		severity = models.SeverityCritical
	case containsAny(lower, "abuse", "violence"):
		severity = models.SeverityHigh
	}

	typ := models.IncidentOther
	switch {
	case containsAny(lower, "abuse", "beaten", "hurt"):
		typ = models.IncidentAbuse
	case strings.Contains(lower, "passport"):
		typ = models.IncidentPassportConfiscation
	case containsAny(lower, "salary", "paid", "money"):
		typ = models.IncidentWageTheft
	case containsAny(lower, "trapped", "leave", "escape"):
		typ = models.IncidentTrafficking
	case containsAny(lower, "sick", "health", "medical"):
		typ = models.IncidentHealthIssue
	}

	return Classification{
		Type:           typ,
		Severity:       severity,
		FollowUpNeeded: severity == models.SeverityCritical || severity == models.SeverityHigh,
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
