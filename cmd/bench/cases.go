// README: Bench cases for cabnex; covers env checks, quote search, booking lifecycle and throughput.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"cabnex/internal/infra"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
	token string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 15 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}
	if r.cfg.JWTSecret != "" {
		tok, err := infra.SignToken(r.cfg.JWTSecret, jwt.MapClaims{
			"sub":  "bench-user",
			"role": "user",
			"exp":  time.Now().Add(r.cfg.Timeout + time.Minute).Unix(),
		})
		if err == nil {
			r.token = tok
		}
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name: "Env: Postgres connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Env: Redis connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Migration: apply (optional)",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Migration: tables exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		httpCase("API: health", http.MethodGet, base+"/health", nil, false, []int{200}),

		httpCase("Quote: missing pickup -> 400", http.MethodPost, base+"/api/trips/search", map[string]any{
			"serviceType": "outstation",
		}, false, []int{400}),
		httpCase("Quote: unknown service type -> 400", http.MethodPost, base+"/api/trips/search", map[string]any{
			"pickupLocation": "anything",
			"serviceType":    "helicopter",
		}, false, []int{400}),
		r.placeCase("Quote: outstation round trip", base+"/api/trips/search", r.outstationPayload(), []int{200}),
		r.placeCase("Quote: station transfer", base+"/api/trips/search", map[string]any{
			"pickupLocation":    r.cfg.PickupPlace,
			"serviceType":       "transfer",
			"pickupDateTime":    pickupTime(),
			"destinations":      []string{r.cfg.DestPlace},
			"transferDirection": "station-to-home",
		}, []int{200}),

		httpCase("Booking: unauthenticated -> 401", http.MethodGet, base+"/api/bookings", nil, false, []int{401}),
		r.authCase("Booking: list own", http.MethodGet, base+"/api/bookings", nil, []int{200}),
		r.authCase("Booking: create invalid -> 400", http.MethodPost, base+"/api/bookings", map[string]any{
			"serviceType": "outstation",
		}, []int{400}),
		{
			Name: "Booking: concurrent cancel single winner",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.token == "" {
					return Result{Status: "SKIP", Note: "jwt secret not configured"}
				}
				id, err := r.createBooking(ctx, base+"/api/bookings")
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return concurrentCancel(ctx, r, base+"/api/bookings/"+id+"/cancel")
			},
		},
		{
			Name: "Perf: quote search throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.cfg.PickupPlace == "" || r.cfg.DestPlace == "" {
					return Result{Status: "SKIP", Note: "pickup/destination place ids not configured"}
				}
				return perfLoad(ctx, r, base+"/api/trips/search", r.outstationPayload())
			},
		},
	}
}

func (r *Runner) outstationPayload() map[string]any {
	return map[string]any{
		"pickupLocation": r.cfg.PickupPlace,
		"serviceType":    "outstation",
		"pickupDateTime": pickupTime(),
		"returnDateTime": time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
		"destinations":   []string{r.cfg.DestPlace},
	}
}

func pickupTime() string {
	return time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
}

func (r *Runner) placeCase(name, url string, body any, ok []int) TestCase {
	if r.cfg.PickupPlace == "" || r.cfg.DestPlace == "" {
		return skipCase(name, "pickup/destination place ids not configured")
	}
	return httpCase(name, http.MethodPost, url, body, false, ok)
}

func (r *Runner) authCase(name, method, url string, body any, ok []int) TestCase {
	if r.token == "" {
		return skipCase(name, "jwt secret not configured")
	}
	return httpCase(name, method, url, body, true, ok)
}

func httpCase(name, method, url string, body any, auth bool, okStatuses []int) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			start := time.Now()
			status, _, err := r.do(ctx, method, url, body, auth)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			latency := time.Since(start)
			if contains(okStatuses, status) {
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
			}
			return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
		},
	}
}

func skipCase(name, note string) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			return Result{Status: "SKIP", Note: note}
		},
	}
}

func (r *Runner) do(ctx context.Context, method, url string, body any, auth bool) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

func (r *Runner) createBooking(ctx context.Context, url string) (string, error) {
	payload := map[string]any{
		"carCategory":    "bench-sedan",
		"serviceType":    "outstation",
		"exactLocation":  "Bench pickup gate",
		"startLocation":  map[string]any{"place_id": "bench-start", "address": "Bench start"},
		"destinations":   []map[string]any{{"place_id": "bench-dest", "address": "Bench destination"}},
		"pickupDateTime": pickupTime(),
		"distance":       120,
		"totalAmount":    2500,
	}
	status, data, err := r.do(ctx, http.MethodPost, url, payload, true)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("create status=%d", status)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("create returned no id")
	}
	return out.ID, nil
}

func concurrentCancel(ctx context.Context, r *Runner, url string) Result {
	wg := sync.WaitGroup{}
	succ, conflict := 0, 0
	mu := sync.Mutex{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _, err := r.do(ctx, http.MethodPost, url, map[string]any{}, true)
			if err != nil {
				return
			}
			mu.Lock()
			if status >= 200 && status < 300 {
				succ++
			} else if status == http.StatusConflict {
				conflict++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	note := fmt.Sprintf("success=%d conflict=%d", succ, conflict)
	if succ == 1 {
		return Result{Status: "PASS", Note: note}
	}
	return Result{Status: "FAIL", Note: note}
}

func perfLoad(ctx context.Context, r *Runner, url string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount, non2xx int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, err := r.do(ctx, http.MethodPost, url, payload, false)
				mu.Lock()
				switch {
				case err != nil:
					errCount++
				case status != http.StatusOK:
					non2xx++
					count++
				default:
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d non200=%d", rps, errCount, non2xx)}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
