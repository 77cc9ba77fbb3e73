// Package knowledge fetches and renders the real-time knowledge base
// that grounds every chat response: embassy contacts, verified
// recruiters, and rights resources.
package knowledge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/umsafe/umsafe/internal/store"
	"github.com/umsafe/umsafe/pkg/models"
)

// maxRightsResources caps how many rights entries enter the context, so
// the prompt stays within model limits. The store returns them by
// descending priority.
const maxRightsResources = 10

// Data is one fetched snapshot of the knowledge base. Any category may
// be empty if its query failed; the builder degrades rather than fails.
type Data struct {
	Embassies  []models.EmbassyContact
	Recruiters []models.Recruiter
	Rights     []models.RightsResource
}

// Fetch loads all three knowledge categories concurrently. A failed
// category is logged and left empty; Fetch itself never returns an
// error so a knowledge outage cannot take down chat.
func Fetch(ctx context.Context, s store.Store) Data {
	var (
		data Data
		wg   sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		embassies, err := s.ListEmbassies(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("knowledge: embassy fetch failed, continuing without")
			return
		}
		data.Embassies = embassies
	}()
	go func() {
		defer wg.Done()
		recruiters, err := s.ListRecruiters(ctx, models.RecruiterActive)
		if err != nil {
			log.Warn().Err(err).Msg("knowledge: recruiter fetch failed, continuing without")
			return
		}
		data.Recruiters = recruiters
	}()
	go func() {
		defer wg.Done()
		rights, err := s.ListRightsResources(ctx, maxRightsResources)
		if err != nil {
			log.Warn().Err(err).Msg("knowledge: rights fetch failed, continuing without")
			return
		}
		data.Rights = rights
	}()
	wg.Wait()

	log.Debug().
		Int("embassies", len(data.Embassies)).
		Int("recruiters", len(data.Recruiters)).
		Int("rights", len(data.Rights)).
		Msg("knowledge base loaded")

	return data
}

// Build renders the knowledge base into the context block embedded in
// the system prompt. Sections with no data are omitted entirely.
func Build(data Data) string {
	var b strings.Builder
	b.WriteString("\n\n**KNOWLEDGE BASE (Real-time Data):**\n\n")

	if len(data.Embassies) > 0 {
		b.WriteString("**EMBASSY CONTACTS:**\n")
		for _, e := range data.Embassies {
			fmt.Fprintf(&b, "- %s: %s\n", e.Country, e.EmbassyName)
			fmt.Fprintf(&b, "  Primary: %s\n", e.PhonePrimary)
			if e.EmergencyHotline != "" {
				fmt.Fprintf(&b, "  Emergency: %s\n", e.EmergencyHotline)
			}
			if e.Email != "" {
				fmt.Fprintf(&b, "  Email: %s\n", e.Email)
			}
			if e.WorkingHours != "" {
				fmt.Fprintf(&b, "  Hours: %s\n", e.WorkingHours)
			}
			b.WriteString("\n")
		}
	}

	if len(data.Recruiters) > 0 {
		b.WriteString("**VERIFIED RECRUITERS (Active Licenses):**\n")
		for _, r := range data.Recruiters {
			fmt.Fprintf(&b, "- %s\n", r.CompanyName)
			if r.LicenseNumber != "" {
				fmt.Fprintf(&b, "  License: %s\n", r.LicenseNumber)
			}
			if r.ExpiryDate != "" {
				fmt.Fprintf(&b, "  Valid Until: %s\n", r.ExpiryDate)
			}
			if len(r.CountriesOfOperation) > 0 {
				fmt.Fprintf(&b, "  Operates in: %s\n", strings.Join(r.CountriesOfOperation, ", "))
			}
			if r.ComplaintsCount > 0 {
				fmt.Fprintf(&b, "  ⚠️ Complaints: %d\n", r.ComplaintsCount)
			}
			b.WriteString("\n")
		}
	}

	if len(data.Rights) > 0 {
		b.WriteString("**RIGHTS & SAFETY INFORMATION:**\n")
		for _, r := range data.Rights {
			fmt.Fprintf(&b, "\n[%s] %s\n", strings.ToUpper(r.Category), r.Title)
			fmt.Fprintf(&b, "%s\n", r.Content)
		}
	}

	return b.String()
}

// Steering returns model guidance notes keyed off the user's query, so
// the model anchors its answer in the matching knowledge base section.
func Steering(userQuery string) string {
	q := strings.ToLower(userQuery)
	var b strings.Builder

	if containsAny(q, "recruiter", "agency", "company") {
		b.WriteString("\n**NOTE:** User is asking about recruiters. Provide specific verification steps and reference the verified recruiters list above.\n")
	}
	if containsAny(q, "embassy", "contact", "phone") {
		b.WriteString("\n**NOTE:** User needs contact information. Provide specific embassy contacts from the list above based on their location or needs.\n")
	}
	if containsAny(q, "rights", "contract", "salary", "hours") {
		b.WriteString("\n**NOTE:** User is asking about their rights. Reference specific rights information from the knowledge base above.\n")
	}

	return b.String()
}

// Topics tags the conversation for profile analytics.
func Topics(userQuery string, isEmergency bool) []string {
	q := strings.ToLower(userQuery)
	var topics []string

	if containsAny(q, "recruiter", "agency") {
		topics = append(topics, "recruiter_verification")
	}
	if containsAny(q, "embassy", "contact") {
		topics = append(topics, "embassy_contact")
	}
	if containsAny(q, "rights", "contract") {
		topics = append(topics, "rights_education")
	}
	if isEmergency {
		topics = append(topics, "emergency")
	}

	return topics
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
