package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	authToken   string
	concurrency int
	duration    time.Duration
	workload    string
	investors   int
	sharedKey   bool
)

// Metrics
var (
	totalRequests uint64
	success200    uint64 // Replays, or payouts that settled
	success201    uint64 // Investments created
	fail400       uint64 // Business rejections (already settled, funding exceeded)
	fail409       uint64 // Conflicts
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.StringVar(&authToken, "token", os.Getenv("AUTH_TOKEN"), "Service token")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "invest", "Workload type: invest | payout-retry")
	flag.IntVar(&investors, "investors", 1000, "Seeded investor wallets (investor-0001 ...)")
	flag.BoolVar(&sharedKey, "shared-key", true, "payout-retry: every worker retries one idempotency key")
}

type client struct {
	http *http.Client
}

func (c *client) post(path, actor string, payload any, out any) (int, error) {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, targetURL+path, bytes.NewBuffer(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+authToken)
	req.Header.Set("X-Actor-ID", actor)
	req.Header.Set("X-Actor-Role", "admin")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	c := &client{http: &http.Client{Timeout: 5 * time.Second}}

	var job func(c *client, worker, iter int) (int, error)
	switch workload {
	case "invest":
		dealID := mustDeal(c, 1<<50)
		job = func(c *client, worker, iter int) (int, error) {
			investor := fmt.Sprintf("investor-%04d", rand.Intn(investors)+1)
			return c.post(fmt.Sprintf("/api/v1/deals/%d/investments", dealID), "bench-admin", map[string]any{
				"investorId":     investor,
				"amount":         100,
				"idempotencyKey": fmt.Sprintf("bench-%d-%d-%d", worker, iter, time.Now().UnixNano()),
			}, nil)
		}
	case "payout-retry":
		dealID := releasedDeal(c)
		job = func(c *client, worker, iter int) (int, error) {
			key := "bench-payout"
			if !sharedKey {
				key = fmt.Sprintf("bench-payout-%d-%d", worker, iter)
			}
			return c.post(fmt.Sprintf("/api/v1/deals/%d/payout", dealID), "bench-admin", map[string]any{
				"grossAmount":    1_000_003,
				"idempotencyKey": key,
			}, nil)
		}
	default:
		log.Fatalf("unknown workload %q", workload)
	}

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, c, i, start, job)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, c *client, id int, start time.Time, job func(*client, int, int) (int, error)) {
	defer wg.Done()

	for iter := 0; time.Since(start) < duration; iter++ {
		status, err := job(c, id, iter)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch status {
		case 201:
			atomic.AddUint64(&success201, 1)
		case 200:
			atomic.AddUint64(&success200, 1)
		case 400:
			atomic.AddUint64(&fail400, 1)
		case 409:
			atomic.AddUint64(&fail409, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
	}
}

func mustDeal(c *client, target int64) int64 {
	var deal struct {
		ID int64 `json:"id"`
	}
	status, err := c.post("/api/v1/deals", "bench-admin", map[string]any{
		"title":         fmt.Sprintf("Benchmark deal %d", time.Now().Unix()),
		"fundingTarget": target,
	}, &deal)
	if err != nil || status != http.StatusCreated {
		log.Fatalf("create deal: status %d: %v", status, err)
	}
	return deal.ID
}

// releasedDeal funds a fresh deal from a handful of seeded wallets and walks
// it to Released so workers can race the payout.
func releasedDeal(c *client) int64 {
	dealID := mustDeal(c, 10_000)
	for i := 1; i <= 10; i++ {
		status, err := c.post(fmt.Sprintf("/api/v1/deals/%d/investments", dealID), "bench-admin", map[string]any{
			"investorId":     fmt.Sprintf("investor-%04d", i),
			"amount":         int64(i * 100),
			"idempotencyKey": fmt.Sprintf("bench-fund-%d-%d", dealID, i),
		}, nil)
		if err != nil || status >= 300 {
			log.Fatalf("fund deal: status %d: %v", status, err)
		}
	}
	for _, stage := range []string{"InTransit", "Arrived", "Inspected", "Released"} {
		status, err := c.post(fmt.Sprintf("/api/v1/deals/%d/stage", dealID), "bench-admin", map[string]any{"targetStage": stage}, nil)
		if err != nil || status != http.StatusOK {
			log.Fatalf("advance to %s: status %d: %v", stage, status, err)
		}
	}
	return dealID
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	s200 := atomic.LoadUint64(&success200)
	f400 := atomic.LoadUint64(&fail400)
	f409 := atomic.LoadUint64(&fail409)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	abortRate := 0.0
	if total > 0 {
		abortRate = float64(f409) / float64(total) * 100
	}

	results := map[string]any{
		"workload":        workload,
		"duration_sec":    d.Seconds(),
		"total_requests":  total,
		"throughput_tps":  tps,
		"success_created": s201,
		"success_ok":      s200,
		"rejected_400":    f400,
		"aborts_conflict": f409,
		"abort_rate_pct":  abortRate,
		"errors":          fErr,
	}

	// Print JSON for the python plotter to consume
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("write %s: %v", filename, err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
