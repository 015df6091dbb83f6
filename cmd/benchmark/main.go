// Benchmark tool for testing Heron against labeled claim audit data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/claims.csv -url http://localhost:8080
//
// This tool:
//   1. Reads labeled claim data (with manual audit flags)
//   2. Sends each claim to Heron for adjudication
//   3. Compares Heron's verdict (flagged vs CLEAN) with the audit labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
//
// Expected CSV columns:
//   beneficiary_id,hospital_id,tbsa_percent,package_code,billed_amount,docs_complete,flagged
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledClaim represents a row from the audit dataset
type LabeledClaim struct {
	BeneficiaryID string
	HospitalID    string
	TBSAPercent   float64
	PackageCode   string
	BilledAmount  float64
	DocsComplete  bool
	Flagged       bool // manual audit outcome
}

// requiredDocuments mirrors the server-side mandatory checklist.
var requiredDocuments = []string{
	"Clinical Notes",
	"Discharge Summary",
	"Treatment Photographs",
	"Hospital Bill",
}

// AdjudicateRequest is the Heron API request format
type AdjudicateRequest struct {
	Beneficiary Party           `json:"beneficiary"`
	Hospital    Party           `json:"hospital"`
	Facts       *Facts          `json:"facts,omitempty"`
	Documents   map[string]bool `json:"documents"`
}

type Party struct {
	ID string `json:"id"`
}

type Facts struct {
	SeverityPercent   *float64 `json:"severityPercent,omitempty"`
	StatedPackageCode string   `json:"statedPackageCode,omitempty"`
	BilledAmount      *float64 `json:"billedAmount,omitempty"`
}

// AdjudicateResponse is the Heron API response format
type AdjudicateResponse struct {
	AdjudicationID string `json:"adjudicationId"`
	ClaimID        string `json:"claimId"`
	Verdict        struct {
		Status         string  `json:"status"`
		ApprovedAmount float64 `json:"approvedAmount"`
		FlaggedAmount  float64 `json:"flaggedAmount"`
		Reason         string  `json:"reason"`
	} `json:"verdict"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Flagged claims caught by Heron
	FalsePositives int64 // Clean claims flagged by Heron
	TrueNegatives  int64 // Clean claims passed by Heron
	FalseNegatives int64 // Flagged claims passed by Heron (missed!)

	TotalProcessed int64
	TotalFlagged   int64
	TotalClean     int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled claims CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Heron base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum claims to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	flaggedOnly := flag.Bool("flagged-only", false, "Only test flagged claims")
	verbose := flag.Bool("verbose", false, "Print each claim result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/claims.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║          HERON BENCHMARK - Claim Audit Accuracy               ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:     %s\n", *csvPath)
	fmt.Printf("Heron URL:    %s\n", *baseURL)
	fmt.Printf("Tenant ID:    %s\n", *tenantID)
	fmt.Printf("Workers:      %d\n", *workers)
	fmt.Printf("Limit:        %d\n", *limit)
	fmt.Printf("Flagged Only: %v\n", *flaggedOnly)
	fmt.Println()

	// Check Heron is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Heron not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Heron is running:")
		fmt.Println("  cd heron && go run cmd/heron/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Heron is healthy")

	// Read claim data
	fmt.Printf("\nReading claim data from %s...\n", *csvPath)
	claims, err := readClaimsCSV(*csvPath, *limit, *flaggedOnly)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d claims\n", len(claims))

	// Count flagged vs clean
	flaggedCount := 0
	for _, c := range claims {
		if c.Flagged {
			flaggedCount++
		}
	}
	fmt.Printf("  - Flagged: %d (%.2f%%)\n", flaggedCount, 100*float64(flaggedCount)/float64(len(claims)))
	fmt.Printf("  - Clean:   %d (%.2f%%)\n", len(claims)-flaggedCount, 100*float64(len(claims)-flaggedCount)/float64(len(claims)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(claims, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readClaimsCSV(path string, limit int, flaggedOnly bool) ([]LabeledClaim, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(col)] = i
	}

	var claims []LabeledClaim

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		flagged := record[colIndex["flagged"]] == "1"

		if flaggedOnly && !flagged {
			continue
		}

		tbsa, _ := strconv.ParseFloat(record[colIndex["tbsa_percent"]], 64)
		billed, _ := strconv.ParseFloat(record[colIndex["billed_amount"]], 64)
		docsComplete := record[colIndex["docs_complete"]] == "1"

		claims = append(claims, LabeledClaim{
			BeneficiaryID: record[colIndex["beneficiary_id"]],
			HospitalID:    record[colIndex["hospital_id"]],
			TBSAPercent:   tbsa,
			PackageCode:   record[colIndex["package_code"]],
			BilledAmount:  billed,
			DocsComplete:  docsComplete,
			Flagged:       flagged,
		})

		if limit > 0 && len(claims) >= limit {
			break
		}
	}

	return claims, nil
}

func runBenchmark(claims []LabeledClaim, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan LabeledClaim, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for claim := range work {
				start := time.Now()
				result, err := adjudicateClaim(client, baseURL, tenantID, claim)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", claim.BeneficiaryID, err)
					}
					continue
				}

				// Track actual labels
				if claim.Flagged {
					atomic.AddInt64(&metrics.TotalFlagged, 1)
				} else {
					atomic.AddInt64(&metrics.TotalClean, 1)
				}

				// Anything other than CLEAN counts as a flag
				predicted := result.Verdict.Status != "CLEAN"
				actual := claim.Flagged

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					fmt.Printf("%s %-10s | TBSA: %5.1f%% | Pkg: %-6s | Billed: ₹%9.0f | Audit: %-5v | Heron: %s\n",
						status,
						claim.BeneficiaryID,
						claim.TBSAPercent,
						claim.PackageCode,
						claim.BilledAmount,
						claim.Flagged,
						result.Verdict.Status,
					)
				}
			}
		}()
	}

	// Send work
	for _, claim := range claims {
		work <- claim
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func adjudicateClaim(client *http.Client, baseURL, tenantID string, claim LabeledClaim) (*AdjudicateResponse, error) {
	tbsa := claim.TBSAPercent
	billed := claim.BilledAmount

	docs := make(map[string]bool, len(requiredDocuments))
	for i, name := range requiredDocuments {
		// An incomplete claim is missing its trailing documents
		docs[name] = claim.DocsComplete || i == 0
	}

	req := AdjudicateRequest{
		Beneficiary: Party{ID: claim.BeneficiaryID},
		Hospital:    Party{ID: claim.HospitalID},
		Facts: &Facts{
			SeverityPercent:   &tbsa,
			StatedPackageCode: claim.PackageCode,
			BilledAmount:      &billed,
		},
		Documents: docs,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/claims/adjudicate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result AdjudicateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed: %d\n", m.TotalProcessed)
	fmt.Printf("   Total Flagged:   %d\n", m.TotalFlagged)
	fmt.Printf("   Total Clean:     %d\n", m.TotalClean)
	fmt.Printf("   Errors:          %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                  FLAGGED      CLEAN")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  F  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           C  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 AUDIT METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flags, how many were real audit findings)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of audit findings, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct verdicts)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalFlagged > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalFlagged) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalFlagged) * 100
		fmt.Printf("   Findings Caught:   %d / %d (%.2f%%)\n", m.TruePositives, m.TotalFlagged, detectionRate)
		fmt.Printf("   Findings Missed:   %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalFlagged, missRate)
	}
	if m.TotalClean > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalClean) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalClean, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		cps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f claims/sec\n", cps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most audit findings")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some findings")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant findings being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most findings are being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - flags are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
