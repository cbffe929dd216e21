// Package rules implements the auto-reply rule engine: deterministic,
// side-effect-free evaluation of an inbound message against a tenant's
// ordered rule set.
package rules

import (
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"

	"wassist-backend/internal/models"
)

// Validation errors for rule writes. Invalid rules are rejected before they
// are stored and therefore never reach evaluation.
var (
	ErrNoTriggerWords = errors.New("rule must have at least one non-empty trigger word")
	ErrEmptyResponse  = errors.New("rule must have a non-empty response")
)

// Match is the outcome of a successful evaluation: the resolved response text
// plus the id of the rule that produced it, kept for the audit trail.
type Match struct {
	RuleID   uuid.UUID
	Response string
}

// Validate checks a rule's structural invariants and normalizes its trigger
// words to lowercase, trimmed, deduplicated form.
func Validate(rule *models.AutoReplyRule) error {
	normalized := make([]string, 0, len(rule.TriggerWords))
	seen := make(map[string]struct{}, len(rule.TriggerWords))
	for _, w := range rule.TriggerWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		normalized = append(normalized, w)
	}
	if len(normalized) == 0 {
		return ErrNoTriggerWords
	}
	if strings.TrimSpace(rule.Response) == "" {
		return ErrEmptyResponse
	}
	rule.TriggerWords = normalized
	return nil
}

// Evaluate runs an inbound message against the given rules and returns at
// most one match. Candidates are the active rules ordered by priority
// descending with rule id ascending as a stable tie-break; the first rule
// whose trigger set intersects the normalized content wins. A miss is
// signalled by ok=false, not an error.
func Evaluate(content string, ruleSet []models.AutoReplyRule, vars map[string]string) (Match, bool) {
	normalized := strings.ToLower(strings.TrimSpace(content))
	if normalized == "" {
		return Match{}, false
	}

	candidates := make([]models.AutoReplyRule, 0, len(ruleSet))
	for _, r := range ruleSet {
		if r.IsActive {
			candidates = append(candidates, r)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].ID.String() < candidates[j].ID.String()
	})

	for _, r := range candidates {
		for _, trigger := range r.TriggerWords {
			if strings.Contains(normalized, trigger) {
				return Match{
					RuleID:   r.ID,
					Response: ResolveVars(r.Response, vars),
				}, true
			}
		}
	}
	return Match{}, false
}

// ResolveVars substitutes {{name}} tokens in a response template against a
// closed set of participant attributes. Unknown tokens are left literal so
// resolution is total and never fails at dispatch time.
func ResolveVars(template string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(template, "{{") {
		return template
	}
	var b strings.Builder
	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += start
		name := strings.TrimSpace(rest[start+2 : end])
		b.WriteString(rest[:start])
		if val, ok := vars[name]; ok {
			b.WriteString(val)
		} else {
			// Leave the token as written.
			b.WriteString(rest[start : end+2])
		}
		rest = rest[end+2:]
	}
	return b.String()
}
