package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager runs registered checkers on demand and on a background ticker,
// and rolls their results into the service-level status.
type Manager struct {
	checkers      map[string]Checker
	lastResults   map[string]CheckResult
	checkInterval time.Duration
	globalTimeout time.Duration
	started       bool
	stopCh        chan struct{}
	logger        *zap.Logger
	mu            sync.RWMutex
}

// NewManager builds a manager. Zero durations get the usual probe defaults.
func NewManager(checkInterval, globalTimeout time.Duration, logger *zap.Logger) *Manager {
	if checkInterval <= 0 {
		checkInterval = 30 * time.Second
	}
	if globalTimeout <= 0 {
		globalTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		checkers:      make(map[string]Checker),
		lastResults:   make(map[string]CheckResult),
		checkInterval: checkInterval,
		globalTimeout: globalTimeout,
		stopCh:        make(chan struct{}),
		logger:        logger,
	}
}

// RegisterChecker adds a checker. Names must be unique.
func (m *Manager) RegisterChecker(checker Checker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := checker.Name()
	if name == "" {
		return fmt.Errorf("checker name cannot be empty")
	}
	if _, exists := m.checkers[name]; exists {
		return fmt.Errorf("checker %s already registered", name)
	}

	m.checkers[name] = checker
	m.logger.Info("Health checker registered",
		zap.String("checker", name),
		zap.Bool("critical", checker.IsCritical()),
		zap.Duration("timeout", checker.Timeout()),
	)
	return nil
}

// UnregisterChecker removes a checker and its cached result.
func (m *Manager) UnregisterChecker(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.checkers[name]; !exists {
		return fmt.Errorf("checker %s not found", name)
	}
	delete(m.checkers, name)
	delete(m.lastResults, name)
	return nil
}

// GetOverallHealth runs all checks and returns the rollup.
func (m *Manager) GetOverallHealth(ctx context.Context) OverallHealth {
	start := time.Now()
	detailed := m.GetDetailedHealth(ctx)

	overall := detailed.Overall
	overall.Timestamp = detailed.Timestamp
	overall.Duration = time.Since(start)
	return overall
}

// GetDetailedHealth runs all checks now and returns per-component results.
func (m *Manager) GetDetailedHealth(ctx context.Context) DetailedHealth {
	m.mu.RLock()
	checkers := make(map[string]Checker, len(m.checkers))
	for name, c := range m.checkers {
		checkers[name] = c
	}
	m.mu.RUnlock()

	components := make(map[string]CheckResult, len(checkers))
	for name, c := range checkers {
		components[name] = m.runCheck(ctx, c)
	}

	m.mu.Lock()
	for name, result := range components {
		m.lastResults[name] = result
	}
	m.mu.Unlock()

	return Summarize(components)
}

// Summarize rolls a set of component results into a DetailedHealth without
// running anything. The HTTP handler uses it for cached responses too.
func Summarize(components map[string]CheckResult) DetailedHealth {
	summary := HealthSummary{Total: len(components)}
	criticalFailures := 0
	nonCriticalFailures := 0

	for _, result := range components {
		switch result.Status {
		case StatusHealthy:
			summary.Healthy++
		case StatusDegraded:
			summary.Degraded++
		case StatusUnhealthy:
			summary.Unhealthy++
			if result.Critical {
				criticalFailures++
			} else {
				nonCriticalFailures++
			}
		}
		if result.Critical {
			summary.Critical++
		} else {
			summary.NonCritical++
		}
	}

	overall := OverallHealth{Timestamp: time.Now(), Live: true, Ready: true}
	switch {
	case summary.Total == 0:
		overall.Status = StatusUnknown
		overall.Message = "No health checks registered"
		overall.Ready = false
		overall.Live = false
	case criticalFailures > 0:
		overall.Status = StatusUnhealthy
		overall.Message = fmt.Sprintf("%d critical component(s) failing", criticalFailures)
		overall.Ready = false
	case summary.Degraded > 0:
		overall.Status = StatusDegraded
		overall.Message = fmt.Sprintf("%d component(s) degraded", summary.Degraded)
	case nonCriticalFailures > 0:
		overall.Status = StatusDegraded
		overall.Message = fmt.Sprintf("%d non-critical component(s) failing", nonCriticalFailures)
	default:
		overall.Status = StatusHealthy
		overall.Message = fmt.Sprintf("All %d components healthy", summary.Total)
	}
	overall.Degraded = overall.Status == StatusDegraded

	return DetailedHealth{
		Overall:    overall,
		Components: components,
		Summary:    summary,
		Timestamp:  overall.Timestamp,
	}
}

// GetLastResults returns the most recent results without running checks.
func (m *Manager) GetLastResults() map[string]CheckResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make(map[string]CheckResult, len(m.lastResults))
	for name, result := range m.lastResults {
		results[name] = result
	}
	return results
}

// IsReady reports readiness: every critical component is passing.
func (m *Manager) IsReady(ctx context.Context) bool {
	return m.GetOverallHealth(ctx).Ready
}

// IsLive reports liveness: the process can still serve probe traffic.
func (m *Manager) IsLive(ctx context.Context) bool {
	return m.GetOverallHealth(ctx).Live
}

// Start begins background checking so cached results stay warm.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}
	m.started = true
	go m.backgroundChecker()

	m.logger.Info("Health manager started",
		zap.Duration("check_interval", m.checkInterval),
		zap.Int("registered_checkers", len(m.checkers)),
	)
	return nil
}

// Stop halts background checking.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	close(m.stopCh)
	m.started = false
	return nil
}

func (m *Manager) backgroundChecker() {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.checkInterval)
			m.GetDetailedHealth(ctx)
			cancel()
		}
	}
}

// runCheck executes one checker under its timeout and stamps the result.
func (m *Manager) runCheck(ctx context.Context, checker Checker) CheckResult {
	timeout := checker.Timeout()
	if timeout <= 0 {
		timeout = m.globalTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result := checker.Check(checkCtx)
	result.Component = checker.Name()
	result.Critical = checker.IsCritical()
	result.Duration = time.Since(start)
	result.Timestamp = start
	return result
}
