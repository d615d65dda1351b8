package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/RaffaelBild/gta-benchmark/pkg/errors"
)

// Checker runs the preflight checks that must pass before a sweep starts.
type Checker struct {
	logger  *logrus.Logger
	timeout time.Duration
	mu      sync.RWMutex
	checks  map[string]HealthCheck
}

// HealthCheck is a single named check
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) HealthResult
	Critical() bool
}

// HealthResult represents the result of a health check
type HealthResult struct {
	Status   HealthStatus  `json:"status"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration"`
	Error    error         `json:"-"`
}

// HealthStatus represents the health status
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// Report is the outcome of running every registered check
type Report struct {
	OverallStatus  HealthStatus            `json:"overall_status"`
	CheckResults   map[string]HealthResult `json:"check_results"`
	CriticalIssues []string                `json:"critical_issues"`
}

// Err returns an error naming every failed critical check, or nil
func (r *Report) Err() error {
	if len(r.CriticalIssues) == 0 {
		return nil
	}
	msgs := make([]string, len(r.CriticalIssues))
	for i, name := range r.CriticalIssues {
		msgs[i] = fmt.Sprintf("%s: %s", name, r.CheckResults[name].Message)
	}
	return errors.NewConfigurationError(errors.CodeInvalidConfig, "preflight checks failed").
		WithDetails(strings.Join(msgs, "; "))
}

// NewChecker creates a checker whose checks each get timeout
func NewChecker(timeout time.Duration, logger *logrus.Logger) *Checker {
	if logger == nil {
		logger = logrus.New()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Checker{
		logger:  logger,
		timeout: timeout,
		checks:  make(map[string]HealthCheck),
	}
}

// RegisterCheck adds a check, replacing one with the same name
func (c *Checker) RegisterCheck(check HealthCheck) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[check.Name()] = check
}

// Run executes all checks. Failed critical checks make the report
// unhealthy; failed non-critical checks only degrade it.
func (c *Checker) Run(ctx context.Context) *Report {
	c.mu.RLock()
	checks := make([]HealthCheck, 0, len(c.checks))
	for _, check := range c.checks {
		checks = append(checks, check)
	}
	c.mu.RUnlock()
	sort.Slice(checks, func(i, j int) bool { return checks[i].Name() < checks[j].Name() })

	report := &Report{
		OverallStatus:  StatusHealthy,
		CheckResults:   make(map[string]HealthResult, len(checks)),
		CriticalIssues: make([]string, 0),
	}

	for _, check := range checks {
		result := c.executeCheck(ctx, check)
		report.CheckResults[check.Name()] = result
		if result.Status != StatusUnhealthy {
			continue
		}
		if check.Critical() {
			report.CriticalIssues = append(report.CriticalIssues, check.Name())
			report.OverallStatus = StatusUnhealthy
		} else if report.OverallStatus == StatusHealthy {
			report.OverallStatus = StatusDegraded
		}
	}

	return report
}

func (c *Checker) executeCheck(ctx context.Context, check HealthCheck) HealthResult {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result := check.Check(checkCtx)
	result.Duration = time.Since(start)

	entry := c.logger.WithFields(logrus.Fields{
		"check":    check.Name(),
		"status":   result.Status,
		"duration": result.Duration,
	})
	if result.Status == StatusHealthy {
		entry.Debug("Preflight check passed")
	} else {
		entry.WithField("message", result.Message).Warn("Preflight check failed")
	}

	return result
}

// BasicHealthCheck wraps a function as a check
type BasicHealthCheck struct {
	name      string
	checkFunc func(ctx context.Context) error
	critical  bool
}

// NewBasicHealthCheck creates a new basic health check
func NewBasicHealthCheck(name string, checkFunc func(ctx context.Context) error, critical bool) *BasicHealthCheck {
	return &BasicHealthCheck{name: name, checkFunc: checkFunc, critical: critical}
}

func (b *BasicHealthCheck) Name() string  { return b.name }
func (b *BasicHealthCheck) Critical() bool { return b.critical }

// Check executes the health check
func (b *BasicHealthCheck) Check(ctx context.Context) HealthResult {
	if err := b.checkFunc(ctx); err != nil {
		return HealthResult{Status: StatusUnhealthy, Message: err.Error(), Error: err}
	}
	return HealthResult{Status: StatusHealthy, Message: "OK"}
}

// DirectoryCheck verifies that path is an existing directory
func DirectoryCheck(name, path string, critical bool) HealthCheck {
	return NewBasicHealthCheck(name, func(ctx context.Context) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", path)
		}
		return nil
	}, critical)
}

// WritableDirectoryCheck creates path if needed and verifies a file can be
// created in it
func WritableDirectoryCheck(name, path string, critical bool) HealthCheck {
	return NewBasicHealthCheck(name, func(ctx context.Context) error {
		if err := os.MkdirAll(path, 0755); err != nil {
			return err
		}
		f, err := os.CreateTemp(path, ".preflight-*")
		if err != nil {
			return err
		}
		f.Close()
		return os.Remove(f.Name())
	}, critical)
}

// CommandCheck verifies that command resolves to an executable
func CommandCheck(name, command string, critical bool) HealthCheck {
	return NewBasicHealthCheck(name, func(ctx context.Context) error {
		_, err := exec.LookPath(command)
		return err
	}, critical)
}
