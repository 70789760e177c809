// Package insights evaluates a declarative list of anomaly predicates over
// the current record set. BuildRuleset returns a fresh, fully specified list
// on every call; nothing here mutates shared state.
package insights

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// Severity tiers for insight rules.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rule is one independent predicate over a single record.
type Rule struct {
	ID       string
	Name     string
	Severity Severity
	Check    func(domain.Incident) bool
}

// RuleContext carries everything ruleset construction needs. The recidivist
// rule inspects the full history set; the out-of-region rule needs the
// visibility whitelist.
type RuleContext struct {
	Records    []domain.Incident
	Visibility map[string]bool
	Now        time.Time
}

// RuleResult is the evaluation outcome of one rule.
type RuleResult struct {
	RuleID   string   `json:"rule_id"`
	Name     string   `json:"name"`
	Severity Severity `json:"severity"`
	Count    int      `json:"count"`
	Numeri   []string `json:"numeri"`
}

var keywordPattern = regexp.MustCompile(`(?i)escalation|reclamo|diffida|legale|danneggiat`)

var urgencyPattern = regexp.MustCompile(`(?i)\burgente\b|\burgentissim[oa]\b`)

// nearBreachWorkingDays is the age, in working days, past the breach
// timestamp after which an open record is flagged.
const nearBreachWorkingDays = 2

// recidivistWindow is the rolling window for repeat-asset detection.
const recidivistWindow = 30 * 24 * time.Hour

// BuildRuleset assembles the rule list for the given context. The list is
// rebuilt from scratch every time: conditional rules appear only when their
// precondition holds, instead of being appended to a shared slice.
func BuildRuleset(ctx RuleContext) []Rule {
	rules := []Rule{
		{
			ID:       "keyword-alert",
			Name:     "Parole chiave critiche in descrizione",
			Severity: SeverityWarning,
			Check: func(rec domain.Incident) bool {
				if rec.Stato.IsClosed() || rec.Stato == domain.StatusAnnullato {
					return false
				}
				return keywordPattern.MatchString(rec.Descrizione) || keywordPattern.MatchString(rec.BreveDescrizione)
			},
		},
		{
			ID:       "urgency-marker",
			Name:     "Marcatori di urgenza",
			Severity: SeverityWarning,
			Check: func(rec domain.Incident) bool {
				text := rec.Descrizione + " " + rec.BreveDescrizione
				return urgencyPattern.MatchString(text) || strings.Contains(text, "!!!")
			},
		},
		{
			ID:       "sla-near-breach",
			Name:     "Violazione SLA non gestita",
			Severity: SeverityCritical,
			Check: func(rec domain.Incident) bool {
				if rec.OraViolazione == nil || !rec.Stato.IsActive() {
					return false
				}
				return workingDaysBetween(*rec.OraViolazione, ctx.Now) >= nearBreachWorkingDays
			},
		},
		{
			ID:       "address-mismatch",
			Name:     "Indirizzo intervento diverso dal beneficiario",
			Severity: SeverityInfo,
			Check: func(rec domain.Incident) bool {
				a := normalizeAddress(rec.Indirizzo)
				b := normalizeAddress(rec.IndirizzoBeneficiario)
				if a == "" || b == "" {
					return false
				}
				return a != b
			},
		},
	}

	if repeat := repeatAssets(ctx.Records, ctx.Now); len(repeat) > 0 {
		rules = append(rules, Rule{
			ID:       "recidivist-asset",
			Name:     "Apparato recidivo",
			Severity: SeverityWarning,
			Check: func(rec domain.Incident) bool {
				if rec.Seriale == "" || !rec.Stato.IsActive() {
					return false
				}
				return repeat[rec.Seriale]
			},
		})
	}

	if len(ctx.Visibility) > 0 {
		rules = append(rules, Rule{
			ID:       "out-of-region",
			Name:     "Ticket N.d.C.",
			Severity: SeverityInfo,
			Check: func(rec domain.Incident) bool {
				visible, known := ctx.Visibility[rec.Regione]
				return !known || !visible
			},
		})
	}

	return rules
}

// Evaluate counts rule matches over the filtered record set. Each rule is
// independent: a record may trigger zero, one, or many rules.
func Evaluate(rules []Rule, records []domain.Incident) []RuleResult {
	results := make([]RuleResult, 0, len(rules))
	for _, rule := range rules {
		result := RuleResult{RuleID: rule.ID, Name: rule.Name, Severity: rule.Severity}
		for i := range records {
			if rule.Check(records[i]) {
				result.Count++
				result.Numeri = append(result.Numeri, records[i].Numero)
			}
		}
		sort.Strings(result.Numeri)
		results = append(results, result)
	}
	return results
}

// repeatAssets returns serials appearing on two or more records, in any
// state, opened within the rolling window.
func repeatAssets(records []domain.Incident, now time.Time) map[string]bool {
	counts := make(map[string]int)
	cutoff := now.Add(-recidivistWindow)
	for i := range records {
		rec := &records[i]
		if rec.Seriale == "" || rec.DataApertura == nil {
			continue
		}
		if rec.DataApertura.Before(cutoff) {
			continue
		}
		counts[rec.Seriale]++
	}
	repeat := make(map[string]bool)
	for seriale, count := range counts {
		if count >= 2 {
			repeat[seriale] = true
		}
	}
	return repeat
}

// workingDaysBetween counts the weekdays elapsed from one instant to
// another, Saturdays and Sundays excluded.
func workingDaysBetween(from, to time.Time) int {
	if !from.Before(to) {
		return 0
	}
	days := 0
	for d := from; d.Before(to); d = d.Add(24 * time.Hour) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			days++
		}
	}
	return days
}

func normalizeAddress(addr string) string {
	return strings.Join(strings.Fields(strings.ToLower(addr)), " ")
}
