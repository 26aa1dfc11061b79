// Package template provides {{token}} variable substitution for action-step
// content such as email subjects, bodies and webhook URLs.
package template

import (
	"fmt"
	"regexp"
	"time"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Resolver substitutes tokens from two catalogs: the target record's fields
// (object-type specific, e.g. first_name, due_date) and a common practice
// catalog (doula_name, portal_url, current_date). Substitution is single pass
// and non-recursive; a token that resolves to text containing another token is
// not expanded again.
type Resolver struct {
	common map[string]string
	now    func() time.Time
}

// NewResolver builds a resolver with the practice-wide common catalog.
// portalURL and doulaName come from organization settings.
func NewResolver(doulaName, practiceName, portalURL string) *Resolver {
	return &Resolver{
		common: map[string]string{
			"doula_name":    doulaName,
			"practice_name": practiceName,
			"portal_url":    portalURL,
		},
		now: time.Now,
	}
}

// WithClock pins the clock used for the current_date token.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now

	return r
}

// Resolve replaces every known {{token}} in input. Record fields win over the
// common catalog. Unresolved tokens are left literal so a bad token is visible
// in delivered content instead of silently blanked.
func (r *Resolver) Resolve(input string, fields map[string]any) string {
	return tokenPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := tokenPattern.FindStringSubmatch(match)[1]

		if value, ok := fields[name]; ok && value != nil {
			return stringValue(value)
		}

		if value, ok := r.common[name]; ok {
			return value
		}

		if name == "current_date" {
			return r.now().Format("January 2, 2006")
		}

		return match
	})
}

func stringValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case time.Time:
		return v.Format("January 2, 2006")
	case float64:
		// JSON numbers decode as float64; print integers without the fraction
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}

		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// CommonTokens lists the tokens available on every object type; the editor's
// variable picker reads this catalog.
func (r *Resolver) CommonTokens() []string {
	tokens := make([]string, 0, len(r.common)+1)
	for name := range r.common {
		tokens = append(tokens, name)
	}

	return append(tokens, "current_date")
}

// RecordTokens lists the record-field tokens for an object type.
func RecordTokens(objectType models.ObjectType) []string {
	switch objectType {
	case models.ObjectTypeLead:
		return []string{"first_name", "last_name", "email", "phone", "due_date", "status", "source"}
	case models.ObjectTypeMeeting:
		return []string{"first_name", "meeting_at", "meeting_type", "location"}
	case models.ObjectTypePayment, models.ObjectTypeInvoice:
		return []string{"first_name", "amount", "due_date", "status"}
	case models.ObjectTypeService, models.ObjectTypeContract, models.ObjectTypeDocument, models.ObjectTypeIntakeForm:
		return []string{"first_name", "name", "status"}
	default:
		return nil
	}
}
