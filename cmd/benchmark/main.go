// Benchmark tool for testing FraudGuard against labeled transaction data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/labeled.csv -url http://localhost:8080
//
// The CSV needs the columns: transaction_id, user_id, amount, merchant,
// category, location, device, timestamp (RFC3339, optional), is_fraud (0/1).
//
// This tool:
//   1. Reads labeled transactions
//   2. Sends each to FraudGuard for scoring
//   3. Compares the verdict with the actual fraud labels
//   4. Calculates precision, recall, F1-score, and the confusion matrix
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

// LabeledTransaction is one row of the benchmark dataset.
type LabeledTransaction struct {
	ID        string
	UserID    string
	Amount    float64
	Merchant  string
	Category  string
	Location  string
	Device    string
	Timestamp string
	IsFraud   bool
}

// PredictRequest mirrors the FraudGuard API request format.
type PredictRequest struct {
	TransactionID string  `json:"transactionId"`
	UserID        string  `json:"userId"`
	Amount        float64 `json:"amount"`
	Merchant      string  `json:"merchant,omitempty"`
	Category      string  `json:"category"`
	Location      string  `json:"location"`
	Device        string  `json:"device"`
	Timestamp     string  `json:"timestamp,omitempty"`
}

// PredictResponse mirrors the FraudGuard API response format.
type PredictResponse struct {
	TransactionID    string   `json:"transactionId"`
	IsFraud          bool     `json:"isFraud"`
	FraudProbability float64  `json:"fraudProbability"`
	RiskLevel        string   `json:"riskLevel"`
	RiskFactors      []string `json:"riskFactors"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Fraud classified as fraud
	FalsePositives int64 // Non-fraud classified as fraud
	TrueNegatives  int64 // Non-fraud classified as legitimate
	FalseNegatives int64 // Fraud classified as legitimate (missed fraud!)

	TotalProcessed int64
	TotalFraud     int64
	TotalNonFraud  int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	csvPath := flag.String("csv", "", "Path to labeled CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "FraudGuard base URL")
	limit := flag.Int("limit", 10000, "Maximum transactions to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	fraudOnly := flag.Bool("fraud-only", false, "Only test fraud transactions")
	sampleRate := flag.Float64("sample", 1.0, "Sample rate for non-fraud (0.0-1.0)")
	verbose := flag.Bool("verbose", false, "Print each transaction result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/labeled.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("FraudGuard benchmark")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("URL:         %s\n", *baseURL)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Printf("Fraud Only:  %v\n", *fraudOnly)
	fmt.Printf("Sample Rate: %.2f\n", *sampleRate)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: FraudGuard not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure FraudGuard is running:")
		fmt.Println("  go run cmd/fraudguard/main.go")
		os.Exit(1)
	}
	fmt.Println("FraudGuard is healthy")

	fmt.Printf("\nReading labeled data from %s...\n", *csvPath)
	transactions, err := readLabeledCSV(*csvPath, *limit, *fraudOnly, *sampleRate)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	if len(transactions) == 0 {
		fmt.Println("ERROR: No usable transactions in CSV")
		os.Exit(1)
	}
	fmt.Printf("Loaded %d transactions\n", len(transactions))

	fraudCount := 0
	for _, tx := range transactions {
		if tx.IsFraud {
			fraudCount++
		}
	}
	fmt.Printf("  - Fraud:     %d (%.2f%%)\n", fraudCount, 100*float64(fraudCount)/float64(len(transactions)))
	fmt.Printf("  - Non-fraud: %d (%.2f%%)\n", len(transactions)-fraudCount, 100*float64(len(transactions)-fraudCount)/float64(len(transactions)))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(transactions, *baseURL, *workers, *verbose)
	duration := time.Since(startTime)

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

func readLabeledCSV(path string, limit int, fraudOnly bool, sampleRate float64) ([]LabeledTransaction, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, name := range header {
		colIndex[strings.ToLower(strings.TrimSpace(name))] = i
	}

	col := func(record []string, name string) string {
		idx, ok := colIndex[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var transactions []LabeledTransaction
	sampleCounter := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		isFraud := col(record, "is_fraud") == "1"

		if fraudOnly && !isFraud {
			continue
		}

		// Downsample the non-fraud majority class
		if !isFraud && sampleRate < 1.0 {
			sampleCounter++
			if float64(sampleCounter%100)/100.0 >= sampleRate {
				continue
			}
		}

		amount, _ := strconv.ParseFloat(col(record, "amount"), 64)

		tx := LabeledTransaction{
			ID:        col(record, "transaction_id"),
			UserID:    col(record, "user_id"),
			Amount:    amount,
			Merchant:  col(record, "merchant"),
			Category:  col(record, "category"),
			Location:  col(record, "location"),
			Device:    col(record, "device"),
			Timestamp: col(record, "timestamp"),
			IsFraud:   isFraud,
		}
		if tx.ID == "" {
			tx.ID = fmt.Sprintf("bench-%d", len(transactions)+1)
		}

		transactions = append(transactions, tx)

		if limit > 0 && len(transactions) >= limit {
			break
		}
	}

	return transactions, nil
}

func runBenchmark(transactions []LabeledTransaction, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan LabeledTransaction, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for tx := range work {
				start := time.Now()
				result, err := scoreTransaction(client, baseURL, tx)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", tx.ID, err)
					}
					continue
				}

				if tx.IsFraud {
					atomic.AddInt64(&metrics.TotalFraud, 1)
				} else {
					atomic.AddInt64(&metrics.TotalNonFraud, 1)
				}

				predicted := result.IsFraud
				actual := tx.IsFraud

				switch {
				case predicted && actual:
					atomic.AddInt64(&metrics.TruePositives, 1)
				case predicted && !actual:
					atomic.AddInt64(&metrics.FalsePositives, 1)
				case !predicted && !actual:
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				default:
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "ok  "
					if predicted != actual {
						status = "MISS"
					}
					fmt.Printf("%s %-16s | Amount: $%10.2f | Fraud: %-5v | Verdict: %-5v (%.3f, %s)\n",
						status, tx.ID, tx.Amount, tx.IsFraud,
						result.IsFraud, result.FraudProbability, result.RiskLevel,
					)
				}
			}
		}()
	}

	for _, tx := range transactions {
		work <- tx
	}
	close(work)
	wg.Wait()

	return metrics
}

func scoreTransaction(client *http.Client, baseURL string, tx LabeledTransaction) (*PredictResponse, error) {
	req := PredictRequest{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Amount:        tx.Amount,
		Merchant:      tx.Merchant,
		Category:      tx.Category,
		Location:      tx.Location,
		Device:        tx.Device,
		Timestamp:     tx.Timestamp,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := client.Post(baseURL+"/predict", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println()
	fmt.Println("Results")
	fmt.Println("-------")
	fmt.Printf("Processed:  %d transactions in %s\n", m.TotalProcessed, duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		fmt.Printf("Throughput: %.1f tx/s\n", float64(m.TotalProcessed)/duration.Seconds())
		fmt.Printf("Avg time:   %.1f ms\n", float64(m.ProcessingTimeMs)/float64(m.TotalProcessed))
	}
	fmt.Printf("Errors:     %d\n", m.TotalErrors)
	fmt.Println()

	fmt.Println("Confusion matrix")
	fmt.Printf("  True positives:  %d\n", m.TruePositives)
	fmt.Printf("  False positives: %d\n", m.FalsePositives)
	fmt.Printf("  True negatives:  %d\n", m.TrueNegatives)
	fmt.Printf("  False negatives: %d (missed fraud)\n", m.FalseNegatives)
	fmt.Println()

	precision := 0.0
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}
	recall := 0.0
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}
	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	accuracy := 0.0
	if scored := m.TotalProcessed - m.TotalErrors; scored > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(scored)
	}

	fmt.Println("Scores")
	fmt.Printf("  Precision: %.4f\n", precision)
	fmt.Printf("  Recall:    %.4f\n", recall)
	fmt.Printf("  F1:        %.4f\n", f1)
	fmt.Printf("  Accuracy:  %.4f\n", accuracy)
}
