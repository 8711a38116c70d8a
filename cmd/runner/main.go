// Load runner for a rebated instance.
//
// Usage:
//
//	go run ./cmd/runner -rebate R-1 -product P-1 -volume 10 -count 1000
//	go run ./cmd/runner -csv requests.csv -url http://localhost:8080
//
// The CSV needs a header with the columns rebate, product and volume.
// Each row is sent to POST /calculations and the outcomes are tallied.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// CalculateRequest is the POST /calculations body.
type CalculateRequest struct {
	RebateIdentifier  string          `json:"rebateIdentifier"`
	ProductIdentifier string          `json:"productIdentifier"`
	Volume            decimal.Decimal `json:"volume"`
}

// CalculateResponse is the part of a calculated rebate the runner reads.
type CalculateResponse struct {
	Identifier string          `json:"identifier"`
	Amount     decimal.Decimal `json:"amount"`
}

// Metrics tracks run results
type Metrics struct {
	Applied       int64
	NotApplicable int64
	Errors        int64

	ProcessingTimeMs int64

	mu    sync.Mutex
	total decimal.Decimal
}

func (m *Metrics) addAmount(amount decimal.Decimal) {
	m.mu.Lock()
	m.total = m.total.Add(amount)
	m.mu.Unlock()
}

var errNotApplicable = errors.New("no rebate could be calculated")

func main() {
	csvPath := flag.String("csv", "", "Path to a CSV of calculation requests")
	baseURL := flag.String("url", "http://localhost:8080", "rebated base URL")
	rebateID := flag.String("rebate", "", "Rebate identifier when no CSV is given")
	productID := flag.String("product", "", "Product identifier when no CSV is given")
	volume := flag.String("volume", "1", "Volume when no CSV is given")
	count := flag.Int("count", 1, "Number of requests when no CSV is given")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each result")
	flag.Parse()

	requests, err := loadRequests(*csvPath, *rebateID, *productID, *volume, *count)
	if err != nil {
		fmt.Printf("ERROR: %v\n\n", err)
		fmt.Println("Usage: runner -rebate ID -product ID [-volume N] [-count N] | -csv FILE")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("+---------------------------------------------------------------+")
	fmt.Println("|                    REBATE LOAD RUNNER                         |")
	fmt.Println("+---------------------------------------------------------------+")
	fmt.Printf("\nURL:       %s\n", *baseURL)
	fmt.Printf("Requests:  %d\n", len(requests))
	fmt.Printf("Workers:   %d\n\n", *workers)

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: rebated not reachable at %s: %v\n", *baseURL, err)
		os.Exit(1)
	}
	fmt.Println("rebated is healthy")

	startTime := time.Now()
	metrics := run(requests, *baseURL, *workers, *verbose)
	printResults(metrics, len(requests), time.Since(startTime))
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

func loadRequests(csvPath, rebateID, productID, volume string, count int) ([]CalculateRequest, error) {
	if csvPath != "" {
		return readCSV(csvPath)
	}
	if rebateID == "" || productID == "" {
		return nil, errors.New("either -csv or both -rebate and -product are required")
	}

	v, err := decimal.NewFromString(volume)
	if err != nil {
		return nil, fmt.Errorf("invalid volume %q: %w", volume, err)
	}

	requests := make([]CalculateRequest, count)
	for i := range requests {
		requests[i] = CalculateRequest{
			RebateIdentifier:  rebateID,
			ProductIdentifier: productID,
			Volume:            v,
		}
	}
	return requests, nil
}

func readCSV(path string) ([]CalculateRequest, error) {
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
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range []string{"rebate", "product", "volume"} {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var requests []CalculateRequest
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		v, err := decimal.NewFromString(strings.TrimSpace(record[colIndex["volume"]]))
		if err != nil {
			continue
		}

		requests = append(requests, CalculateRequest{
			RebateIdentifier:  record[colIndex["rebate"]],
			ProductIdentifier: record[colIndex["product"]],
			Volume:            v,
		})
	}

	return requests, nil
}

func run(requests []CalculateRequest, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan CalculateRequest, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for req := range work {
				start := time.Now()
				result, err := calculate(client, baseURL, req)
				atomic.AddInt64(&metrics.ProcessingTimeMs, time.Since(start).Milliseconds())

				switch {
				case errors.Is(err, errNotApplicable):
					atomic.AddInt64(&metrics.NotApplicable, 1)
					if verbose {
						fmt.Printf("-  %-16s %-16s volume=%s\n", req.RebateIdentifier, req.ProductIdentifier, req.Volume)
					}
				case err != nil:
					atomic.AddInt64(&metrics.Errors, 1)
					if verbose {
						fmt.Printf("!  %-16s %-16s %v\n", req.RebateIdentifier, req.ProductIdentifier, err)
					}
				default:
					atomic.AddInt64(&metrics.Applied, 1)
					metrics.addAmount(result.Amount)
					if verbose {
						fmt.Printf("+  %-16s %-16s volume=%s amount=%s\n", req.RebateIdentifier, req.ProductIdentifier, req.Volume, result.Amount)
					}
				}
			}
		}()
	}

	for _, req := range requests {
		work <- req
	}
	close(work)

	wg.Wait()

	return metrics
}

func calculate(client *http.Client, baseURL string, req CalculateRequest) (*CalculateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/calculations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest:
		return nil, errNotApplicable
	default:
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result CalculateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printResults(m *Metrics, sent int, duration time.Duration) {
	fmt.Println("\n+---------------------------------------------------------------+")
	fmt.Println("|                          RESULTS                              |")
	fmt.Println("+---------------------------------------------------------------+")

	fmt.Printf("\n   Sent:            %d\n", sent)
	fmt.Printf("   Applied:         %d\n", m.Applied)
	fmt.Printf("   Not applicable:  %d\n", m.NotApplicable)
	fmt.Printf("   Errors:          %d\n", m.Errors)
	fmt.Printf("   Total amount:    %s\n", m.total.String())

	fmt.Printf("\n   Duration:        %v\n", duration.Round(time.Millisecond))
	if sent > 0 {
		fmt.Printf("   Avg latency:     %.2f ms\n", float64(m.ProcessingTimeMs)/float64(sent))
		fmt.Printf("   Throughput:      %.2f req/sec\n", float64(sent)/duration.Seconds())
	}
	fmt.Println()
}
