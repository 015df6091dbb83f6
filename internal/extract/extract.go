// Package extract pulls adjudication facts out of free-text claim
// documents: burn severity, the stated package code and the billed
// amount. Extraction is best-effort; absent facts are reported as nil
// and the adjudication engine degrades accordingly.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/opensource-health/heron/internal/domain"
)

var (
	// "30% TBSA", "30 % burns". The percentage may carry a decimal part.
	severityRe = regexp.MustCompile(`(?i)(\d{1,3}(?:\.\d+)?)\s?%\s?(?:TBSA|burns)`)

	// Burn management package codes as printed on bills.
	packageRe = regexp.MustCompile(`\bBM001[A-D]\b`)

	// "Total: 45000", "Amount: Rs. 45000", "Bill - ₹12000". Anchoring on a
	// billing keyword avoids grabbing unrelated numbers (dates, vitals).
	amountRe = regexp.MustCompile(`(?i)(?:Total|Amount|Bill|Charges)\s?[:\-]?\s?(?:Rs\.?|₹)?\s?(\d{3,7}(?:\.\d{1,2})?)`)
)

// Extract scans the clinical notes and hospital bill text for the three
// facts the engine adjudicates on. Both texts are searched for every
// fact: real uploads frequently repeat the severity on the bill or the
// package code in the notes.
func Extract(clinicalText, billText string) domain.ExtractedFacts {
	text := Normalize(clinicalText) + " " + Normalize(billText)

	facts := domain.ExtractedFacts{}

	if m := severityRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			facts.SeverityPercent = &v
		}
	}

	if m := packageRe.FindString(text); m != "" {
		facts.StatedPackageCode = m
	}

	if m := amountRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			facts.BilledAmount = &v
		}
	}

	return facts
}

// Normalize collapses whitespace runs so patterns spanning line breaks in
// OCR output still match.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
