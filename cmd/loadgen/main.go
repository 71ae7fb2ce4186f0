// Load generator for exercising Kestrel with synthetic credit applications.
//
// Usage:
//   go run cmd/loadgen/main.go -url http://localhost:8080 -count 1000
//
// This tool:
//   1. Generates synthetic applications across strong/moderate/weak profiles
//   2. Sends each application to Kestrel for scoring
//   3. Optionally runs instant decisioning on every scored application
//   4. Reports score distribution, outcome histogram, and latency
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Application mirrors the POST /score request body.
type Application struct {
	BusinessName    string       `json:"businessName"`
	Industry        string       `json:"industry"`
	YearsInBusiness float64      `json:"yearsInBusiness"`
	AnnualRevenue   float64      `json:"annualRevenue"`
	MonthlyRevenue  float64      `json:"monthlyRevenue"`
	MonthlyExpenses float64      `json:"monthlyExpenses"`
	ExistingDebt    float64      `json:"existingDebt"`
	RequestedAmount float64      `json:"requestedAmount"`
	Credit          Credit       `json:"credit"`
	Alternative     *Alternative `json:"alternativeData,omitempty"`
	Behavioral      *Behavioral  `json:"behavioralData,omitempty"`
	Economic        *Economic    `json:"economicFactors,omitempty"`
}

type Credit struct {
	OnTimePayments         int      `json:"onTimePayments"`
	LatePayments           int      `json:"latePayments"`
	MissedPayments         int      `json:"missedPayments"`
	AvgDaysLate            float64  `json:"avgDaysLate"`
	UtilizationPct         float64  `json:"utilizationPercentage"`
	AvgAccountAgeYears     float64  `json:"avgAccountAgeYears"`
	OldestAccountYears     float64  `json:"oldestAccountYears"`
	TotalAccounts          int      `json:"totalAccounts"`
	ActiveAccounts         int      `json:"activeAccounts"`
	AccountTypes           []string `json:"accountTypes,omitempty"`
	RecentInquiries        int      `json:"recentInquiries"`
	NewAccounts            int      `json:"newAccounts"`
	MonthsSinceLastInquiry int      `json:"monthsSinceLastInquiry"`
}

type Alternative struct {
	EmploymentYears         float64 `json:"employmentYears"`
	JobStability            float64 `json:"jobStability"`
	IncomeGrowthTrend       string  `json:"incomeGrowthTrend"`
	SavingsRate             float64 `json:"savingsRate"`
	ExpenseVariability      float64 `json:"expenseVariability"`
	DiscretionarySpending   float64 `json:"discretionarySpending"`
	SocialMediaActivity     float64 `json:"socialMediaActivity"`
	OnlineShoppingFrequency float64 `json:"onlineShoppingFrequency"`
	DigitalPaymentUsage     float64 `json:"digitalPaymentUsage"`
	AppUsageConsistency     float64 `json:"appUsageConsistency"`
	IndustryStability       float64 `json:"industryStability"`
	IndustryVolatility      float64 `json:"industryVolatility"`
	RegulatoryRisk          float64 `json:"regulatoryRisk"`
}

type Behavioral struct {
	LoginFrequency           float64 `json:"loginFrequency"`
	PaymentMethodConsistency float64 `json:"paymentMethodConsistency"`
	GoalSetting              float64 `json:"goalSetting"`
	RiskTolerance            float64 `json:"riskTolerance"`
}

type Economic struct {
	UnemploymentRate float64 `json:"unemploymentRate"`
	InflationRate    float64 `json:"inflationRate"`
	GDPGrowth        float64 `json:"gdpGrowth"`
}

// ScoreResponse is the Kestrel API response format for POST /score.
type ScoreResponse struct {
	ApplicationID string `json:"applicationId"`
	Score         struct {
		OverallScore int     `json:"overallScore"`
		RiskLevel    string  `json:"riskLevel"`
		ScoreRange   string  `json:"scoreRange"`
		Confidence   float64 `json:"confidence"`
	} `json:"score"`
}

// Decision is the response for POST /applications/{id}/decision.
type Decision struct {
	Outcome        string  `json:"outcome"`
	ApprovedAmount float64 `json:"approvedAmount"`
	InterestRate   float64 `json:"interestRate"`
}

// Metrics tracks load run results.
type Metrics struct {
	TotalProcessed int64
	TotalErrors    int64

	ScoreSum int64

	LowRisk      int64
	MediumRisk   int64
	HighRisk     int64
	VeryHighRisk int64

	Approved int64
	Review   int64
	Declined int64

	ProcessingTimeMs int64
}

var industries = []string{"retail", "manufacturing", "technology", "construction", "hospitality", "healthcare"}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	tenantID := flag.String("tenant", "loadgen-test", "Tenant ID for requests")
	count := flag.Int("count", 1000, "Number of applications to generate")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	decide := flag.Bool("decide", false, "Also run instant decisioning on every application")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible runs")
	verbose := flag.Bool("verbose", false, "Print each application result")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║         KESTREL LOADGEN - Synthetic Credit Applications       ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nKestrel URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Count:       %d\n", *count)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Decide:      %v\n", *decide)
	fmt.Printf("Seed:        %d\n", *seed)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	rng := rand.New(rand.NewSource(*seed))
	apps := make([]Application, 0, *count)
	for i := 0; i < *count; i++ {
		apps = append(apps, generateApplication(rng, i))
	}
	fmt.Printf("✓ Generated %d applications\n", len(apps))

	fmt.Printf("\nRunning load with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runLoad(apps, *baseURL, *tenantID, *workers, *decide, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration, *decide)
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

// generateApplication produces a synthetic profile. Roughly a third are
// strong, a third moderate, and a third weak, with jitter inside each band.
func generateApplication(rng *rand.Rand, n int) Application {
	tier := n % 3
	industry := industries[rng.Intn(len(industries))]

	monthlyRevenue := 20000 + rng.Float64()*120000
	app := Application{
		BusinessName:    fmt.Sprintf("Synthetic Business %04d", n),
		Industry:        industry,
		AnnualRevenue:   monthlyRevenue * 12,
		MonthlyRevenue:  monthlyRevenue,
		RequestedAmount: 5000 + rng.Float64()*90000,
		Economic: &Economic{
			UnemploymentRate: 3.5 + rng.Float64()*3,
			InflationRate:    1.5 + rng.Float64()*3,
			GDPGrowth:        -0.5 + rng.Float64()*4,
		},
	}

	switch tier {
	case 0: // strong
		app.YearsInBusiness = 8 + rng.Float64()*12
		app.MonthlyExpenses = monthlyRevenue * (0.5 + rng.Float64()*0.2)
		app.ExistingDebt = app.AnnualRevenue * rng.Float64() * 0.3
		app.Credit = Credit{
			OnTimePayments:         90 + rng.Intn(30),
			LatePayments:           rng.Intn(3),
			AvgDaysLate:            rng.Float64() * 2,
			UtilizationPct:         5 + rng.Float64()*20,
			AvgAccountAgeYears:     7 + rng.Float64()*5,
			OldestAccountYears:     10 + rng.Float64()*10,
			TotalAccounts:          10 + rng.Intn(6),
			ActiveAccounts:         6 + rng.Intn(4),
			AccountTypes:           []string{"credit_card", "term_loan", "line_of_credit", "equipment"},
			RecentInquiries:        rng.Intn(2),
			MonthsSinceLastInquiry: 12 + rng.Intn(24),
		}
		app.Alternative = &Alternative{
			EmploymentYears:         10 + rng.Float64()*10,
			JobStability:            0.8 + rng.Float64()*0.2,
			IncomeGrowthTrend:       "increasing",
			SavingsRate:             0.2 + rng.Float64()*0.1,
			ExpenseVariability:      rng.Float64() * 0.2,
			DiscretionarySpending:   rng.Float64() * 0.3,
			SocialMediaActivity:     0.3 + rng.Float64()*0.4,
			OnlineShoppingFrequency: 0.6 + rng.Float64()*0.4,
			DigitalPaymentUsage:     0.7 + rng.Float64()*0.3,
			AppUsageConsistency:     0.7 + rng.Float64()*0.3,
			IndustryStability:       0.7 + rng.Float64()*0.3,
			IndustryVolatility:      rng.Float64() * 0.3,
			RegulatoryRisk:          rng.Float64() * 0.2,
		}
		app.Behavioral = &Behavioral{
			LoginFrequency:           0.7 + rng.Float64()*0.3,
			PaymentMethodConsistency: 0.7 + rng.Float64()*0.3,
			GoalSetting:              0.6 + rng.Float64()*0.4,
			RiskTolerance:            0.4 + rng.Float64()*0.2,
		}
	case 1: // moderate
		app.YearsInBusiness = 3 + rng.Float64()*5
		app.MonthlyExpenses = monthlyRevenue * (0.7 + rng.Float64()*0.2)
		app.ExistingDebt = app.AnnualRevenue * (0.3 + rng.Float64()*0.4)
		app.Credit = Credit{
			OnTimePayments:         40 + rng.Intn(30),
			LatePayments:           2 + rng.Intn(4),
			MissedPayments:         rng.Intn(2),
			AvgDaysLate:            2 + rng.Float64()*5,
			UtilizationPct:         30 + rng.Float64()*30,
			AvgAccountAgeYears:     3 + rng.Float64()*3,
			OldestAccountYears:     5 + rng.Float64()*4,
			TotalAccounts:          4 + rng.Intn(5),
			ActiveAccounts:         3 + rng.Intn(3),
			AccountTypes:           []string{"credit_card", "term_loan"},
			RecentInquiries:        1 + rng.Intn(3),
			NewAccounts:            rng.Intn(2),
			MonthsSinceLastInquiry: 3 + rng.Intn(9),
		}
	default: // weak
		app.YearsInBusiness = rng.Float64() * 2
		app.MonthlyExpenses = monthlyRevenue * (0.9 + rng.Float64()*0.2)
		app.ExistingDebt = app.AnnualRevenue * (0.8 + rng.Float64()*0.8)
		app.Credit = Credit{
			OnTimePayments:         5 + rng.Intn(15),
			LatePayments:           5 + rng.Intn(8),
			MissedPayments:         2 + rng.Intn(4),
			AvgDaysLate:            10 + rng.Float64()*20,
			UtilizationPct:         75 + rng.Float64()*25,
			AvgAccountAgeYears:     rng.Float64() * 2,
			OldestAccountYears:     1 + rng.Float64()*2,
			TotalAccounts:          1 + rng.Intn(3),
			ActiveAccounts:         1 + rng.Intn(2),
			AccountTypes:           []string{"credit_card"},
			RecentInquiries:        4 + rng.Intn(5),
			NewAccounts:            2 + rng.Intn(3),
			MonthsSinceLastInquiry: rng.Intn(3),
		}
	}

	return app
}

func runLoad(apps []Application, baseURL, tenantID string, numWorkers int, decide, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan Application, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for app := range work {
				start := time.Now()
				result, err := scoreApplication(client, baseURL, tenantID, app)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", app.BusinessName, err)
					}
					continue
				}

				atomic.AddInt64(&metrics.ScoreSum, int64(result.Score.OverallScore))
				switch result.Score.RiskLevel {
				case "low":
					atomic.AddInt64(&metrics.LowRisk, 1)
				case "medium":
					atomic.AddInt64(&metrics.MediumRisk, 1)
				case "high":
					atomic.AddInt64(&metrics.HighRisk, 1)
				default:
					atomic.AddInt64(&metrics.VeryHighRisk, 1)
				}

				var outcome string
				if decide {
					dec, err := decideApplication(client, baseURL, tenantID, result.ApplicationID)
					if err != nil {
						atomic.AddInt64(&metrics.TotalErrors, 1)
					} else {
						outcome = dec.Outcome
						switch dec.Outcome {
						case "approve":
							atomic.AddInt64(&metrics.Approved, 1)
						case "manual_review":
							atomic.AddInt64(&metrics.Review, 1)
						case "decline":
							atomic.AddInt64(&metrics.Declined, 1)
						}
					}
				}

				if verbose {
					fmt.Printf("  %-24s | Score: %3d (%s) | Risk: %-9s | Outcome: %s\n",
						app.BusinessName,
						result.Score.OverallScore,
						result.Score.ScoreRange,
						result.Score.RiskLevel,
						outcome,
					)
				}
			}
		}()
	}

	for _, app := range apps {
		work <- app
	}
	close(work)

	wg.Wait()

	return metrics
}

func scoreApplication(client *http.Client, baseURL, tenantID string, app Application) (*ScoreResponse, error) {
	body, err := json.Marshal(app)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/score", bytes.NewReader(body))
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

	var result ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func decideApplication(client *http.Client, baseURL, tenantID string, appID string) (*Decision, error) {
	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/applications/"+appID+"/decision", nil)
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

	var dec Decision
	if err := json.NewDecoder(resp.Body).Decode(&dec); err != nil {
		return nil, err
	}

	return &dec, nil
}

func printResults(m *Metrics, duration time.Duration, decide bool) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                        LOAD RESULTS                           ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 RUN STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	scored := m.LowRisk + m.MediumRisk + m.HighRisk + m.VeryHighRisk
	if scored > 0 {
		fmt.Printf("   Average Score:    %d\n", m.ScoreSum/scored)
	}

	fmt.Printf("\n📈 RISK DISTRIBUTION\n")
	fmt.Printf("   low:        %6d\n", m.LowRisk)
	fmt.Printf("   medium:     %6d\n", m.MediumRisk)
	fmt.Printf("   high:       %6d\n", m.HighRisk)
	fmt.Printf("   very_high:  %6d\n", m.VeryHighRisk)

	if decide {
		fmt.Printf("\n⚖️  OUTCOME HISTOGRAM\n")
		fmt.Printf("   approve:        %6d\n", m.Approved)
		fmt.Printf("   manual_review:  %6d\n", m.Review)
		fmt.Printf("   decline:        %6d\n", m.Declined)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		aps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f apps/sec\n", aps)
	}

	fmt.Println()
}
