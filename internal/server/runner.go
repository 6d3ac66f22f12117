package server

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"redcell/internal/assess"
	"redcell/internal/config"
	"redcell/internal/target"
	"redcell/internal/types"
)

type RunManager struct {
	cfg        ServerConfig
	store      Store
	engine     *assess.Engine
	capacity   *CapacityManager
	obs        *Observability
	queue      chan queuedRun
	wg         sync.WaitGroup
	quickLimit *ipRateLimiter
}

type RunnerService interface {
	CreateAdminRun(request RunRequest, principal Principal, source string) (RunMeta, error)
	CreateQuickScan(request QuickScanRequest, ipHash, uaHash string) (RunMeta, error)
}

type queuedRun struct {
	RunID       string
	Request     RunRequest
	Creator     Principal
	CreatorType string
	Source      string
}

func NewRunManager(cfg ServerConfig, store Store, engine *assess.Engine, capacity *CapacityManager, obs *Observability) *RunManager {
	maxParallel := cfg.Runner.MaxParallelRuns
	if maxParallel <= 0 {
		maxParallel = 2
	}
	manager := &RunManager{
		cfg:        cfg,
		store:      store,
		engine:     engine,
		capacity:   capacity,
		obs:        obs,
		queue:      make(chan queuedRun, maxParallel*8),
		quickLimit: newIPRateLimiter(cfg.Runner.QuickScanRPM),
	}
	for i := 0; i < maxParallel; i++ {
		manager.wg.Add(1)
		go func() {
			defer manager.wg.Done()
			manager.worker()
		}()
	}
	return manager
}

func (m *RunManager) Shutdown() {
	close(m.queue)
	m.wg.Wait()
}

func (m *RunManager) CreateAdminRun(request RunRequest, principal Principal, source string) (RunMeta, error) {
	if err := normalizeRunRequest(&request, m.cfg); err != nil {
		return RunMeta{}, err
	}
	runID, err := randomID("run")
	if err != nil {
		return RunMeta{}, err
	}
	meta := RunMeta{
		RunID:       runID,
		Status:      RunStatusQueued,
		Source:      source,
		CreatorType: "admin",
		CreatorSub:  principal.Subject,
		Request:     request,
		CreatedAt:   nowRFC3339(),
	}
	if err := m.store.CreateRun(meta); err != nil {
		return RunMeta{}, err
	}
	_, _ = m.store.AppendRunEvent(runID, "queue", "run queued", map[string]any{
		"source":  source,
		"target":  request.Target.Name,
		"plugins": len(request.Plugins),
	})
	_ = m.store.AppendAudit(AuditEvent{
		Timestamp: nowRFC3339(),
		RunID:     runID,
		ActorType: "admin",
		ActorSub:  principal.Subject,
		Action:    "run.create",
		Result:    RunStatusQueued,
	})
	m.queue <- queuedRun{
		RunID:       runID,
		Request:     request,
		Creator:     principal,
		CreatorType: "admin",
		Source:      source,
	}
	return meta, nil
}

func (m *RunManager) CreateQuickScan(request QuickScanRequest, ipHash, uaHash string) (RunMeta, error) {
	if !m.quickLimit.Allow(ipHash) {
		if m.obs != nil {
			m.obs.MarkCapacityBlocked(context.Background(), "quick_scan_rate_limit")
		}
		_ = m.store.AppendAudit(AuditEvent{
			Timestamp: nowRFC3339(),
			ActorType: "user",
			Action:    "quick_scan.reject",
			Result:    "rate_limited",
			IPHash:    ipHash,
			UAHash:    uaHash,
		})
		return RunMeta{}, errors.New("quick scan rate limit reached")
	}
	runRequest, err := presetToRunRequest(request, m.cfg)
	if err != nil {
		return RunMeta{}, err
	}
	runID, err := randomID("run")
	if err != nil {
		return RunMeta{}, err
	}
	meta := RunMeta{
		RunID:       runID,
		Status:      RunStatusQueued,
		Source:      "user.quick_scan",
		CreatorType: "user",
		Request:     runRequest,
		CreatedAt:   nowRFC3339(),
	}
	if err := m.store.CreateRun(meta); err != nil {
		return RunMeta{}, err
	}
	_, _ = m.store.AppendRunEvent(runID, "queue", "quick scan queued", map[string]any{
		"preset": request.Preset,
	})
	_ = m.store.AppendAudit(AuditEvent{
		Timestamp: nowRFC3339(),
		RunID:     runID,
		ActorType: "user",
		Action:    "quick_scan.create",
		Result:    RunStatusQueued,
		IPHash:    ipHash,
		UAHash:    uaHash,
		Detail:    request.Preset,
	})
	m.queue <- queuedRun{
		RunID:       runID,
		Request:     runRequest,
		CreatorType: "user",
		Source:      "user.quick_scan",
	}
	return meta, nil
}

func (m *RunManager) worker() {
	for queued := range m.queue {
		m.executeRun(queued)
	}
}

func (m *RunManager) executeRun(queued queuedRun) {
	startedAt := nowRFC3339()
	_, _ = m.store.UpdateRun(queued.RunID, func(meta *RunMeta) {
		meta.Status = RunStatusRunning
		meta.StartedAt = startedAt
	})
	_, _ = m.store.AppendRunEvent(queued.RunID, "start", "run started", nil)

	spec := specFromRequest(queued.Request)
	cases, err := m.engine.Expand(spec)
	if err != nil {
		m.failRun(queued.RunID, "test plan expansion failed", err)
		return
	}
	_, _ = m.store.AppendRunEvent(queued.RunID, "plan", "test plan expanded", map[string]any{
		"test_cases": len(cases),
	})

	if queued.Request.DryRun {
		_, _ = m.store.UpdateRun(queued.RunID, func(meta *RunMeta) {
			meta.Status = RunStatusCompleted
			meta.FinishedAt = nowRFC3339()
		})
		_, _ = m.store.AppendRunEvent(queued.RunID, "completed", "dry run completed", map[string]any{
			"test_cases": len(cases),
			"executed":   0,
		})
		if m.obs != nil {
			m.obs.MarkRun(context.Background(), RunStatusCompleted)
		}
		return
	}

	lease, err := m.capacity.Acquire(queued.Request.Target.Name, len(cases))
	if err != nil {
		m.failRun(queued.RunID, "target capacity unavailable", err)
		if m.obs != nil {
			m.obs.MarkCapacityBlocked(context.Background(), "target_capacity")
		}
		return
	}

	client, err := target.New(queued.Request.Target)
	if err != nil {
		m.capacity.Reject(lease)
		m.failRun(queued.RunID, "target construction failed", err)
		return
	}

	timeout := time.Duration(queued.Request.TimeoutSec) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := m.engine.Run(ctx, client, spec)
	if err != nil {
		m.capacity.Reject(lease)
		m.failRun(queued.RunID, "assessment failed", err)
		return
	}
	m.capacity.Commit(lease, result.TotalTests)

	risk := riskFromResult(result)
	_, _ = m.store.UpdateRun(queued.RunID, func(meta *RunMeta) {
		meta.Status = RunStatusCompleted
		meta.FinishedAt = nowRFC3339()
		meta.Result = result
		meta.Risk = risk
	})
	_, _ = m.store.AppendRunEvent(queued.RunID, "completed", "run completed", map[string]any{
		"total_tests":           result.TotalTests,
		"vulnerabilities_found": result.VulnerabilitiesFound,
		"error_tests":           result.ErrorTests,
		"attack_success_rate":   result.AttackSuccessRate,
	})
	_ = m.store.AppendAudit(AuditEvent{
		Timestamp: nowRFC3339(),
		RunID:     queued.RunID,
		ActorType: queued.CreatorType,
		ActorSub:  queued.Creator.Subject,
		Action:    "run.completed",
		Result:    RunStatusCompleted,
		Detail:    fmt.Sprintf("vulns=%d rate=%.3f", result.VulnerabilitiesFound, result.AttackSuccessRate),
	})
	if m.obs != nil {
		m.obs.MarkRun(ctx, RunStatusCompleted)
		for _, r := range result.Results {
			m.obs.MarkCase(ctx, r.PluginID, r.Latency.Milliseconds())
			if r.IsVulnerable {
				m.obs.MarkVulnerability(ctx, string(r.Severity))
			}
		}
	}
}

func (m *RunManager) failRun(runID, message string, cause error) {
	_, _ = m.store.UpdateRun(runID, func(meta *RunMeta) {
		meta.Status = RunStatusFailed
		meta.Error = message + ": " + cause.Error()
		meta.FinishedAt = nowRFC3339()
	})
	_, _ = m.store.AppendRunEvent(runID, "error", message, map[string]any{"error": cause.Error()})
	if m.obs != nil {
		m.obs.MarkRun(context.Background(), RunStatusFailed)
	}
}

// normalizeRunRequest applies compliance presets and service defaults, then
// validates what can be validated before queueing.
func normalizeRunRequest(request *RunRequest, cfg ServerConfig) error {
	if request.Compliance != "" {
		preset, ok := config.LookupPreset(request.Compliance)
		if !ok {
			return fmt.Errorf("unknown compliance preset %q", request.Compliance)
		}
		request.Plugins = append(append([]string(nil), preset.Plugins...), request.Plugins...)
		if len(request.Strategies) == 0 {
			request.Strategies = append([]string(nil), preset.Strategies...)
		}
	}
	if len(request.Plugins) == 0 {
		return errors.New("at least one plugin is required")
	}
	if request.NumTests <= 0 {
		request.NumTests = config.DefaultNumTests
	}
	if request.MaxConcurrent <= 0 {
		request.MaxConcurrent = config.DefaultMaxConcurrent
	}
	if request.TimeoutSec <= 0 {
		request.TimeoutSec = cfg.Runner.DefaultTimeoutSec
	}
	return request.Target.Validate()
}

func specFromRequest(request RunRequest) assess.Spec {
	return assess.Spec{
		Plugins:       request.Plugins,
		Strategies:    request.Strategies,
		NumTests:      request.NumTests,
		MaxConcurrent: request.MaxConcurrent,
		Params:        request.Params,
	}
}

// presetToRunRequest builds the constrained request shape quick scans are
// allowed: preset-selected plugins, capped volume, api targets only.
func presetToRunRequest(input QuickScanRequest, cfg ServerConfig) (RunRequest, error) {
	presetName := strings.ToLower(strings.TrimSpace(input.Preset))
	preset, ok := config.LookupPreset(presetName)
	if !ok {
		return RunRequest{}, fmt.Errorf("unknown compliance preset %q", input.Preset)
	}
	endpoint := strings.TrimSpace(input.Endpoint)
	if endpoint == "" {
		return RunRequest{}, errors.New("endpoint is required")
	}
	name := strings.TrimSpace(input.TargetName)
	if name == "" {
		name = "quick-scan"
	}
	return RunRequest{
		Target: target.Config{
			Name:     name,
			Kind:     types.TargetKindAPI,
			Endpoint: endpoint,
		},
		Plugins:       append([]string(nil), preset.Plugins...),
		Strategies:    append([]string(nil), preset.Strategies...),
		NumTests:      cfg.Runner.QuickScanTests,
		MaxConcurrent: 2,
		TimeoutSec:    cfg.Runner.DefaultTimeoutSec,
	}, nil
}

func randomID(prefix string) (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + "_" + hex.EncodeToString(b), nil
}

type ipRateLimiter struct {
	mu      sync.Mutex
	rpm     int
	records map[string][]time.Time
}

func newIPRateLimiter(rpm int) *ipRateLimiter {
	if rpm <= 0 {
		rpm = 6
	}
	return &ipRateLimiter{
		rpm:     rpm,
		records: map[string][]time.Time{},
	}
}

func (l *ipRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if strings.TrimSpace(key) == "" {
		key = "unknown"
	}
	now := time.Now()
	cutoff := now.Add(-1 * time.Minute)
	items := l.records[key]
	items = filterRecentTime(items, cutoff)
	if len(items) >= l.rpm {
		l.records[key] = items
		return false
	}
	items = append(items, now)
	l.records[key] = items
	return true
}

func hashString(input string) string {
	sum := sha256Sum(input)
	return sum[:16]
}

func sha256Sum(input string) string {
	hash := sha256.New()
	_, _ = hash.Write([]byte(input))
	return hex.EncodeToString(hash.Sum(nil))
}
