package engine

import (
	"strings"
	"testing"

	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/policy"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	table := policy.NewTable([]domain.PackageRule{
		{Code: "BM001A", Name: "Burn Management Minor", MinSeverity: 0, MaxSeverity: 10, MaxAmount: 5000},
		{Code: "BM001B", Name: "Burn Management Moderate", MinSeverity: 10, MaxSeverity: 40, MaxAmount: 15000},
		{Code: "BM001C", Name: "Burn Management Severe", MinSeverity: 40, MaxSeverity: 60, MaxAmount: 40000},
		{Code: "BM001D", Name: "Burn Management Critical", MinSeverity: 60, MaxSeverity: 100, MaxAmount: 100000},
	})
	return New(table)
}

func allDocs() domain.DocumentChecklist {
	docs := domain.DocumentChecklist{}
	for _, name := range domain.RequiredDocuments {
		docs[name] = true
	}
	return docs
}

func TestAdjudicateClean(t *testing.T) {
	e := testEngine(t)

	t.Run("MatchingCode", func(t *testing.T) {
		v := e.Adjudicate(domain.ExtractedFacts{
			SeverityPercent:   f64(30),
			StatedPackageCode: "BM001B",
			BilledAmount:      f64(12000),
		}, allDocs())

		if v.Status != domain.StatusClean {
			t.Fatalf("expected CLEAN, got %s (reason: %s)", v.Status, v.Reason)
		}
		if v.SelectedPackageCode != "BM001B" {
			t.Errorf("expected selected code BM001B, got %s", v.SelectedPackageCode)
		}
		if v.ApprovedAmount != 12000 || v.FlaggedAmount != 0 {
			t.Errorf("expected approved=12000 flagged=0, got %.0f/%.0f",
				v.ApprovedAmount, v.FlaggedAmount)
		}
		if len(v.Recommendations) != 0 {
			t.Errorf("clean claim must not carry recommendations, got %v", v.Recommendations)
		}
	})

	// A bill without a package code still adjudicates cleanly when severity
	// resolves and the amount fits the calculated package.
	t.Run("NoStatedCode", func(t *testing.T) {
		v := e.Adjudicate(domain.ExtractedFacts{
			SeverityPercent: f64(30),
			BilledAmount:    f64(12000),
		}, allDocs())

		if v.Status != domain.StatusClean {
			t.Fatalf("expected CLEAN, got %s (reason: %s)", v.Status, v.Reason)
		}
		if v.SelectedPackageCode != "BM001B" {
			t.Errorf("expected calculated code BM001B, got %s", v.SelectedPackageCode)
		}
		if !strings.Contains(v.Reason, "No package code found in bill") {
			t.Errorf("expected advisory reason, got %q", v.Reason)
		}
		if len(v.Recommendations) == 0 {
			t.Error("expected recommendation to add package code to the bill")
		}
	})
}

func TestAdjudicateMismatch(t *testing.T) {
	e := testEngine(t)

	v := e.Adjudicate(domain.ExtractedFacts{
		SeverityPercent:   f64(5),
		StatedPackageCode: "BM001B",
		BilledAmount:      f64(15000),
	}, allDocs())

	if v.Status != domain.StatusReviewRequired {
		t.Fatalf("expected REVIEW_REQUIRED, got %s", v.Status)
	}
	if !strings.Contains(v.Reason, MismatchMarker) {
		t.Errorf("expected %s in reason, got %q", MismatchMarker, v.Reason)
	}
	if !strings.Contains(v.Reason, "BM001A") {
		t.Errorf("expected calculated code BM001A in reason, got %q", v.Reason)
	}
	// Financial validation runs against the stated package's limit, so
	// 15000 against BM001B is not flagged even though the codes disagree.
	if v.FlaggedAmount != 0 {
		t.Errorf("expected no flagged amount against stated limit, got %.0f", v.FlaggedAmount)
	}
	if v.SelectedPackageCode != "BM001B" {
		t.Errorf("stated code wins selection, got %s", v.SelectedPackageCode)
	}
}

func TestAdjudicateOverbilling(t *testing.T) {
	e := testEngine(t)

	v := e.Adjudicate(domain.ExtractedFacts{
		SeverityPercent:   f64(30),
		StatedPackageCode: "BM001B",
		BilledAmount:      f64(20000),
	}, allDocs())

	if v.Status != domain.StatusPartialApproval {
		t.Fatalf("expected PARTIAL_APPROVAL, got %s (reason: %s)", v.Status, v.Reason)
	}
	if v.ApprovedAmount != 15000 {
		t.Errorf("expected approved 15000, got %.0f", v.ApprovedAmount)
	}
	if v.FlaggedAmount != 5000 {
		t.Errorf("expected flagged 5000, got %.0f", v.FlaggedAmount)
	}
	if v.ApprovedAmount+v.FlaggedAmount != v.BilledAmount {
		t.Error("approved + flagged must equal billed")
	}
	if !strings.Contains(v.Reason, OverbillingMarker) {
		t.Errorf("expected %s in reason, got %q", OverbillingMarker, v.Reason)
	}
}

func TestAdjudicateMissingDocuments(t *testing.T) {
	e := testEngine(t)

	docs := allDocs()
	docs["Treatment Photographs"] = false

	v := e.Adjudicate(domain.ExtractedFacts{
		SeverityPercent:   f64(30),
		StatedPackageCode: "BM001B",
		BilledAmount:      f64(12000),
	}, docs)

	if v.Status != domain.StatusReviewRequired {
		t.Fatalf("missing document must force REVIEW_REQUIRED, got %s", v.Status)
	}
	if len(v.MissingDocuments) != 1 || v.MissingDocuments[0] != "Treatment Photographs" {
		t.Errorf("unexpected missing documents %v", v.MissingDocuments)
	}
	// Validation still ran: the verdict carries the financial outcome even
	// though documents gate the status.
	if v.ApprovedAmount != 12000 {
		t.Errorf("expected financial validation to run, approved=%.0f", v.ApprovedAmount)
	}
}

func TestAdjudicateExtractionFailures(t *testing.T) {
	e := testEngine(t)

	t.Run("NoSeverity", func(t *testing.T) {
		v := e.Adjudicate(domain.ExtractedFacts{
			StatedPackageCode: "BM001B",
			BilledAmount:      f64(12000),
		}, allDocs())

		if v.Status != domain.StatusReviewRequired {
			t.Fatalf("expected REVIEW_REQUIRED, got %s", v.Status)
		}
		if !strings.Contains(v.Reason, "Could not extract TBSA") {
			t.Errorf("unexpected reason %q", v.Reason)
		}
		// Stated code still resolves for financial validation.
		if v.ApprovedAmount != 12000 {
			t.Errorf("expected approved 12000 against stated package, got %.0f", v.ApprovedAmount)
		}
	})

	t.Run("NoBilledAmount", func(t *testing.T) {
		v := e.Adjudicate(domain.ExtractedFacts{
			SeverityPercent:   f64(30),
			StatedPackageCode: "BM001B",
		}, allDocs())

		if v.Status != domain.StatusReviewRequired {
			t.Fatalf("expected REVIEW_REQUIRED, got %s", v.Status)
		}
		if v.BilledAmount != 0 || v.ApprovedAmount != 0 || v.FlaggedAmount != 0 {
			t.Errorf("expected zero amounts, got %.0f/%.0f/%.0f",
				v.BilledAmount, v.ApprovedAmount, v.FlaggedAmount)
		}
	})

	t.Run("NothingExtracted", func(t *testing.T) {
		v := e.Adjudicate(domain.ExtractedFacts{}, allDocs())

		if v.Status != domain.StatusReviewRequired {
			t.Fatalf("expected REVIEW_REQUIRED, got %s", v.Status)
		}
		if v.SelectedPackageCode != domain.PackageCodeNone {
			t.Errorf("expected %s, got %s", domain.PackageCodeNone, v.SelectedPackageCode)
		}
	})

	t.Run("UnmappableSeverity", func(t *testing.T) {
		v := e.Adjudicate(domain.ExtractedFacts{
			SeverityPercent: f64(150),
			BilledAmount:    f64(12000),
		}, allDocs())

		if !strings.Contains(v.Reason, "Could not map") {
			t.Errorf("unexpected reason %q", v.Reason)
		}
		// No stated code, no resolvable package: the bill cannot be
		// validated and the amounts stay zero.
		if v.ApprovedAmount != 0 || v.FlaggedAmount != 0 {
			t.Errorf("expected zero amounts, got %.0f/%.0f", v.ApprovedAmount, v.FlaggedAmount)
		}
	})
}

func TestAdjudicatePrecedence(t *testing.T) {
	e := testEngine(t)

	// Mismatch outranks overbilling: severity says BM001A, the bill states
	// BM001B and also exceeds BM001B's limit.
	t.Run("MismatchOverOverbilling", func(t *testing.T) {
		v := e.Adjudicate(domain.ExtractedFacts{
			SeverityPercent:   f64(5),
			StatedPackageCode: "BM001B",
			BilledAmount:      f64(20000),
		}, allDocs())

		if v.Status != domain.StatusReviewRequired {
			t.Fatalf("expected REVIEW_REQUIRED, got %s", v.Status)
		}
		if v.FlaggedAmount != 5000 {
			t.Errorf("overbilling amounts still computed, got flagged %.0f", v.FlaggedAmount)
		}
	})

	t.Run("MissingDocsOverEverything", func(t *testing.T) {
		v := e.Adjudicate(domain.ExtractedFacts{
			SeverityPercent:   f64(5),
			StatedPackageCode: "BM001B",
			BilledAmount:      f64(20000),
		}, domain.DocumentChecklist{})

		if v.Status != domain.StatusReviewRequired {
			t.Fatalf("expected REVIEW_REQUIRED, got %s", v.Status)
		}
		if len(v.MissingDocuments) != len(domain.RequiredDocuments) {
			t.Errorf("expected every document missing, got %v", v.MissingDocuments)
		}
	})
}
