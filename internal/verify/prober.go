package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/ppiankov/credence/internal/metrics"
	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/util"
)

// probeSleepFunc waits between retries (injectable for tests)
var probeSleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// probeBackoff is the first retry delay; later retries double it
var probeBackoff = 500 * time.Millisecond

// ProbeResult is the reachability of one source
type ProbeResult struct {
	Reachability model.Reachability
	StatusCode   int
	Error        string
}

// Prober checks that cited web sources respond. It is best-effort: every failure
// becomes an unknown or unreachable result, never an error.
type Prober struct {
	httpClient *http.Client
	limiter    *util.Limiter
	robots     *util.RobotsChecker
	cache      *gocache.Cache
	logger     *zap.Logger

	userAgent  string
	timeout    time.Duration
	ceiling    time.Duration
	maxRetries int
	maxWorkers int
}

// NewProber creates a prober from configuration
func NewProber(cfg model.ReachabilityConfig, httpCfg model.HTTPConfig, rl model.RateLimitConfig, maxWorkers int, logger *zap.Logger) *Prober {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = 5 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := util.NewHTTPClient(cfg.Timeout, httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy, httpCfg.InsecureTLS)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("stopped after 3 redirects")
		}
		return nil
	}

	p := &Prober{
		httpClient: client,
		limiter:    util.NewLimiter(rl.RequestsPerSecond, rl.BurstSize),
		cache:      gocache.New(15*time.Minute, 5*time.Minute),
		logger:     logger,
		userAgent:  httpCfg.UserAgent,
		timeout:    cfg.Timeout,
		ceiling:    cfg.Ceiling,
		maxRetries: cfg.MaxRetries,
		maxWorkers: maxWorkers,
	}
	if cfg.RespectRobots {
		p.robots = util.NewRobotsChecker(httpCfg.UserAgent, cfg.Timeout, client)
	}
	return p
}

// Probe checks all web sources concurrently under the hard ceiling. Results are keyed
// by source; sources that are not web addresses are skipped.
func (p *Prober) Probe(ctx context.Context, sources []string) map[string]ProbeResult {
	results := make(map[string]ProbeResult, len(sources))
	if len(sources) == 0 {
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, p.ceiling)
	defer cancel()

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, p.maxWorkers)
	)

	for _, source := range sources {
		if _, ok := util.SourceURL(source); !ok {
			mu.Lock()
			results[source] = ProbeResult{Reachability: model.ReachSkipped}
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(src string) {
			defer wg.Done()

			var result ProbeResult
			select {
			case <-ctx.Done():
				result = ProbeResult{Reachability: model.ReachUnknown, Error: "probe ceiling reached"}
			case semaphore <- struct{}{}:
				result = p.probeWithRetry(ctx, src)
				<-semaphore
			}

			metrics.Probes.WithLabelValues(string(result.Reachability)).Inc()
			mu.Lock()
			results[src] = result
			mu.Unlock()
		}(source)
	}

	wg.Wait()
	return results
}

// Apply folds probe results into a source report. Sources that could not be confirmed
// reachable move halfway toward unknownReliability.
func (p *Prober) Apply(report model.SourceReport, results map[string]ProbeResult, unknownReliability float64) model.SourceReport {
	checks := make([]model.SourceCheck, len(report.Checks))
	copy(checks, report.Checks)

	for i := range checks {
		r, ok := results[checks[i].Source]
		if !ok {
			continue
		}
		checks[i].Reachability = r.Reachability
		checks[i].StatusCode = r.StatusCode
		checks[i].Error = r.Error
		if r.Reachability == model.ReachUnreachable || r.Reachability == model.ReachUnknown {
			checks[i].Reliability -= (checks[i].Reliability - unknownReliability) / 2
		}
	}

	report.Checks = checks
	report.Reliability = meanReliability(checks)
	return report
}

func (p *Prober) probeWithRetry(ctx context.Context, source string) ProbeResult {
	if cached, found := p.cache.Get(source); found {
		return cached.(ProbeResult)
	}

	target, _ := util.SourceURL(source)

	if p.robots != nil {
		allowed, delay, err := p.robots.CanFetch(ctx, target)
		if err != nil || !allowed {
			return ProbeResult{Reachability: model.ReachUnknown, Error: "disallowed by robots.txt"}
		}
		if err := p.limiter.WaitWithDelay(ctx, target, delay); err != nil {
			return ProbeResult{Reachability: model.ReachUnknown, Error: "probe ceiling reached"}
		}
	} else if err := p.limiter.Wait(ctx, target); err != nil {
		return ProbeResult{Reachability: model.ReachUnknown, Error: "probe ceiling reached"}
	}

	var result ProbeResult
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		result = p.probeOnce(ctx, target)
		if !isRetryable(result) || attempt == p.maxRetries {
			break
		}
		backoff := probeBackoff * time.Duration(1<<uint(attempt))
		if err := probeSleepFunc(ctx, backoff); err != nil {
			break
		}
	}

	if result.Reachability == model.ReachReachable || result.Reachability == model.ReachUnreachable {
		p.cache.SetDefault(source, result)
	}
	p.logger.Debug("probed source",
		zap.String("source", source),
		zap.String("result", string(result.Reachability)),
		zap.Int("status", result.StatusCode))
	return result
}

func (p *Prober) probeOnce(ctx context.Context, target string) ProbeResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return ProbeResult{Reachability: model.ReachUnreachable, Error: fmt.Sprintf("create request: %v", err)}
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return ProbeResult{Reachability: model.ReachUnknown, Error: fmt.Sprintf("timeout: %v", err)}
		}
		return ProbeResult{Reachability: model.ReachUnreachable, Error: fmt.Sprintf("request failed: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	result := ProbeResult{StatusCode: resp.StatusCode}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		result.Reachability = model.ReachReachable
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		result.Reachability = model.ReachUnreachable
	default:
		result.Reachability = model.ReachUnknown
	}
	return result
}

// isRetryable reports transient failures: 5xx, 429 and timeouts
func isRetryable(r ProbeResult) bool {
	if r.StatusCode >= 500 && r.StatusCode < 600 {
		return true
	}
	if r.StatusCode == http.StatusTooManyRequests {
		return true
	}
	s := strings.ToLower(r.Error)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}

func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
