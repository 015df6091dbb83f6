package engine

import (
	"github.com/opensource-health/heron/internal/domain"
)

// MissingDocuments compares an upload checklist against the canonical
// required set and returns the absent document names in canonical order.
// Absence is a signal, not an error; keys outside the required set are
// ignored.
func MissingDocuments(checklist domain.DocumentChecklist) []string {
	missing := make([]string, 0, len(domain.RequiredDocuments))
	for _, name := range domain.RequiredDocuments {
		if !checklist[name] {
			missing = append(missing, name)
		}
	}
	return missing
}
