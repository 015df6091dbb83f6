// Package policy provides the coverage package table and severity-band
// resolution for claim adjudication.
package policy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/opensource-health/heron/internal/domain"
)

// Table holds the loaded package rules. Reads go through an immutable
// snapshot; Reload swaps the whole snapshot under the lock so an in-flight
// adjudication always sees one consistent table.
type Table struct {
	mu   sync.RWMutex
	snap *snapshot
}

type snapshot struct {
	byCode map[string]domain.PackageRule
	sorted []domain.PackageRule // ascending MinSeverity
}

// fileEntry mirrors the JSON policy source schema. Pointer fields
// distinguish missing values from zero values.
type fileEntry struct {
	Code        string   `json:"package_code"`
	Name        string   `json:"name"`
	MinSeverity *float64 `json:"min_tbsa"`
	MaxSeverity *float64 `json:"max_tbsa"`
	MaxAmount   *float64 `json:"max_amount"`
	Description string   `json:"description"`
}

// NewTable creates a table from an in-memory rule list.
func NewTable(rules []domain.PackageRule) *Table {
	return &Table{snap: buildSnapshot(rules)}
}

// LoadFile loads the policy table from a JSON source file.
//
// The returned table is always usable: a missing or malformed source yields
// an empty table and a non-nil error the caller should log as a
// configuration warning. With an empty table every lookup misses, which
// pushes claims toward REVIEW_REQUIRED rather than silently approving.
// Entries missing required fields are skipped individually.
func LoadFile(path string) (*Table, error) {
	t := NewTable(nil)
	if err := t.ReloadFile(path); err != nil {
		return t, err
	}
	return t, nil
}

// ReloadFile re-reads the policy source and atomically swaps the snapshot.
// On error the previous snapshot is kept.
func (t *Table) ReloadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read policy source %s: %w", path, err)
	}

	var entries []fileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse policy source %s: %w", path, err)
	}

	rules := make([]domain.PackageRule, 0, len(entries))
	for i, e := range entries {
		if e.Code == "" || e.MaxSeverity == nil || e.MaxAmount == nil {
			slog.Warn("skipping policy entry with missing required fields",
				"index", i,
				"code", e.Code,
			)
			continue
		}

		rule := domain.PackageRule{
			Code:        e.Code,
			Name:        e.Name,
			MaxSeverity: *e.MaxSeverity,
			MaxAmount:   *e.MaxAmount,
			Description: e.Description,
		}
		if e.MinSeverity != nil {
			rule.MinSeverity = *e.MinSeverity
		}
		rules = append(rules, rule)
	}

	t.Replace(rules)
	return nil
}

// Replace atomically swaps the table contents.
func (t *Table) Replace(rules []domain.PackageRule) {
	snap := buildSnapshot(rules)

	t.mu.Lock()
	t.snap = snap
	t.mu.Unlock()
}

func buildSnapshot(rules []domain.PackageRule) *snapshot {
	snap := &snapshot{
		byCode: make(map[string]domain.PackageRule, len(rules)),
		sorted: make([]domain.PackageRule, 0, len(rules)),
	}
	for _, r := range rules {
		snap.byCode[r.Code] = r
		snap.sorted = append(snap.sorted, r)
	}
	sort.Slice(snap.sorted, func(i, j int) bool {
		return snap.sorted[i].MinSeverity < snap.sorted[j].MinSeverity
	})
	return snap
}

func (t *Table) snapshot() *snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// Lookup returns the rule for a package code.
func (t *Table) Lookup(code string) (domain.PackageRule, bool) {
	if code == "" {
		return domain.PackageRule{}, false
	}
	rule, ok := t.snapshot().byCode[code]
	return rule, ok
}

// Resolve maps a severity percentage to the package rule whose band
// contains it.
//
// Bands are half-open on the low end and closed on the high end
// (MinSeverity < s <= MaxSeverity); the lowest band additionally owns
// s == 0 so it covers [0, MaxSeverity]. Values outside [0, 100] resolve
// to nothing - the caller treats that as "cannot validate severity",
// not as an error.
func (t *Table) Resolve(severity float64) (domain.PackageRule, bool) {
	if severity < 0 || severity > 100 {
		return domain.PackageRule{}, false
	}

	snap := t.snapshot()
	for _, r := range snap.sorted {
		if r.MinSeverity < severity && severity <= r.MaxSeverity {
			return r, true
		}
	}

	// The lowest band owns its own lower bound (severity 0).
	if len(snap.sorted) > 0 && severity <= snap.sorted[0].MaxSeverity {
		return snap.sorted[0], true
	}

	return domain.PackageRule{}, false
}

// Rules returns a copy of the loaded rules in ascending severity order.
func (t *Table) Rules() []domain.PackageRule {
	snap := t.snapshot()
	out := make([]domain.PackageRule, len(snap.sorted))
	copy(out, snap.sorted)
	return out
}

// Count returns the number of loaded rules.
func (t *Table) Count() int {
	return len(t.snapshot().sorted)
}

// Validate checks the band layout and returns human-readable warnings for
// overlaps and coverage gaps over [0, 100]. Warnings are advisory - a table
// that fails validation still serves lookups (fail-open).
func (t *Table) Validate() []string {
	snap := t.snapshot()

	var warnings []string
	if len(snap.sorted) == 0 {
		return []string{"policy table is empty; every claim will require review"}
	}

	if snap.sorted[0].MinSeverity > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"lowest band %s starts at %.0f, severities below it are uncovered",
			snap.sorted[0].Code, snap.sorted[0].MinSeverity))
	}

	for i := 1; i < len(snap.sorted); i++ {
		prev, cur := snap.sorted[i-1], snap.sorted[i]
		if cur.MinSeverity < prev.MaxSeverity {
			warnings = append(warnings, fmt.Sprintf(
				"bands %s and %s overlap between %.0f and %.0f",
				prev.Code, cur.Code, cur.MinSeverity, prev.MaxSeverity))
		}
		if cur.MinSeverity > prev.MaxSeverity {
			warnings = append(warnings, fmt.Sprintf(
				"gap between bands %s and %s: (%.0f, %.0f] is uncovered",
				prev.Code, cur.Code, prev.MaxSeverity, cur.MinSeverity))
		}
	}

	last := snap.sorted[len(snap.sorted)-1]
	if last.MaxSeverity < 100 {
		warnings = append(warnings, fmt.Sprintf(
			"highest band %s ends at %.0f, severities above it are uncovered",
			last.Code, last.MaxSeverity))
	}

	return warnings
}
