package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hackgods/barbershop-scheduling/internal/api"
	"github.com/hackgods/barbershop-scheduling/internal/validate"
)

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	Customers   int
	Slots       int
	BookRatio   float64
	CancelRatio float64
	ReadRatio   float64
}

// DataPool holds the customers registered for this run and a small set of
// far-future slots every worker competes for.
type DataPool struct {
	Customers []string
	Slots     []string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Book   OperationMetrics
	Cancel OperationMetrics
	List   OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: base_url=%s duration=%s workers=%d customers=%d slots=%d",
		cfg.APIBaseURL, cfg.Duration, cfg.Workers, cfg.Customers, cfg.Slots)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := sim.preparePool(ctx)
	if err != nil {
		log.Fatalf("prepare data pool: %v", err)
	}
	sim.pool = pool
	log.Printf("registered %d customers, contesting %d slots", len(pool.Customers), len(pool.Slots))

	sim.Run()
	sim.PrintReport()

	if err := sim.Verify(context.Background()); err != nil {
		log.Fatalf("verification failed: %v", err)
	}
	log.Println("verification passed: no slot was booked twice")
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:  strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 20),
		Customers:   getInt("SIM_CUSTOMERS", 50),
		Slots:       getInt("SIM_SLOTS", 10),
		BookRatio:   getFloat("SIM_BOOK_RATIO", 0.6),
		CancelRatio: getFloat("SIM_CANCEL_RATIO", 0.2),
		ReadRatio:   getFloat("SIM_READ_RATIO", 0.2),
	}

	total := cfg.BookRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Customers <= 0 || cfg.Slots <= 0 {
		return fmt.Errorf("SIM_CUSTOMERS and SIM_SLOTS must be > 0")
	}
	return nil
}

// preparePool registers uniquely named customers and picks slots on a random
// day far enough ahead that earlier runs are unlikely to have touched it.
func (s *Simulator) preparePool(ctx context.Context) (*DataPool, error) {
	faker := gofakeit.New(0)
	run := uuid.NewString()[:8]
	pool := &DataPool{}

	for i := 0; i < s.config.Customers; i++ {
		name := fmt.Sprintf("%s %s", faker.FirstName(), run+strconv.Itoa(i))
		phone := fmt.Sprintf("(%02d) 9%04d-%04d", faker.Number(11, 99), faker.Number(0, 9999), faker.Number(0, 9999))

		status, err := s.postJSON(ctx, "/customers", api.RegisterCustomerRequest{Name: name, Phone: phone})
		if err != nil {
			return nil, fmt.Errorf("register customer: %w", err)
		}
		if status != http.StatusCreated {
			return nil, fmt.Errorf("register customer: unexpected status %d", status)
		}
		pool.Customers = append(pool.Customers, name)
	}

	day := time.Date(2090+faker.Number(0, 900), time.Month(faker.Number(1, 12)), faker.Number(1, 28), 9, 0, 0, 0, time.Local)
	for i := 0; i < s.config.Slots; i++ {
		pool.Slots = append(pool.Slots, day.Add(time.Duration(i)*30*time.Minute).Format(validate.SlotLayout))
	}
	return pool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()

	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			// in-flight requests finish after the deadline so the counts
			// match what the server applied
			reqCtx := context.WithoutCancel(ctx)

			r := rng.Float64()
			switch {
			case r < s.config.BookRatio:
				s.doBook(reqCtx, rng)
			case r < s.config.BookRatio+s.config.CancelRatio:
				s.doCancel(reqCtx, rng)
			default:
				s.doList(reqCtx)
			}
		}
	}
}

func (s *Simulator) doBook(ctx context.Context, rng *rand.Rand) {
	req := api.BookAppointmentRequest{
		CustomerName: s.pool.Customers[rng.Intn(len(s.pool.Customers))],
		DateTime:     s.pool.Slots[rng.Intn(len(s.pool.Slots))],
	}

	start := time.Now()
	status, err := s.postJSON(ctx, "/appointments", req)
	s.metrics.Book.Record(time.Since(start), err == nil && status == http.StatusCreated, status == http.StatusConflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodDelete,
		s.config.APIBaseURL+"/appointments?datetime="+url.QueryEscape(slot), nil)
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusNotFound
	}
	s.metrics.Cancel.Record(latency, success, conflict)
}

func (s *Simulator) doList(ctx context.Context) {
	start := time.Now()
	_, err := s.listAppointments(ctx)
	s.metrics.List.Record(time.Since(start), err == nil, false)
}

// Verify checks the final calendar: every contested slot appears at most once
// and the count matches successful bookings minus successful cancellations.
func (s *Simulator) Verify(ctx context.Context) error {
	appts, err := s.listAppointments(ctx)
	if err != nil {
		return err
	}

	contested := make(map[string]bool, len(s.pool.Slots))
	for _, slot := range s.pool.Slots {
		contested[slot] = true
	}

	seen := make(map[string]int)
	for _, a := range appts {
		if contested[a.DateTime] {
			seen[a.DateTime]++
		}
	}

	for slot, n := range seen {
		if n > 1 {
			return fmt.Errorf("slot %s booked %d times", slot, n)
		}
	}

	// a failed request may still have been applied, so the count is only
	// exact when nothing errored
	if atomic.LoadInt64(&s.metrics.Book.Error)+atomic.LoadInt64(&s.metrics.Cancel.Error) > 0 {
		log.Println("requests errored during the run; skipping the booking count check")
		return nil
	}

	want := atomic.LoadInt64(&s.metrics.Book.Success) - atomic.LoadInt64(&s.metrics.Cancel.Success)
	if int64(len(seen)) != want {
		return fmt.Errorf("calendar holds %d contested slots, bookings minus cancellations is %d", len(seen), want)
	}
	return nil
}

func (s *Simulator) postJSON(ctx context.Context, path string, body any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func (s *Simulator) listAppointments(ctx context.Context) ([]api.AppointmentResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/appointments", nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list appointments: unexpected status %d", resp.StatusCode)
	}

	var appts []api.AppointmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&appts); err != nil {
		return nil, fmt.Errorf("decode appointments: %w", err)
	}
	return appts, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Book", "slot taken / being booked", &s.metrics.Book)
	printOperationReport("Cancel", "not found", &s.metrics.Cancel)
	printOperationReport("List", "", &s.metrics.List)
}

func printOperationReport(name, conflictLabel string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errs := atomic.LoadInt64(&om.Error)
	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  %s: %d (%.1f%%)\n", conflictLabel, conflict, float64(conflict)/float64(total)*100)
	}
	if errs > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errs, float64(errs)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n", avg, min, max, p50, p95)
	fmt.Println()
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
