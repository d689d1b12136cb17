package health

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jordigilh/qa-intelligence/pkg/shared/logging"
)

// ValidationTimeout bounds how long a single integration's startup check may
// run before it is treated as a timeout failure.
const ValidationTimeout = 5 * time.Second

// Criticality marks whether a failing integration should block startup.
type Criticality int

const (
	// Critical integrations (e.g. Jira) block the app from starting if
	// validation fails.
	Critical Criticality = iota
	// Optional integrations (e.g. Postman, Testmo) only produce a warning.
	Optional
)

// ValidationResult is the outcome of validating one integration at startup.
type ValidationResult struct {
	Integration    string
	Success        bool
	ErrorMessage   *string
	ResponseTimeMs *int64
	IsCritical     bool
}

// ValidationReport is the complete result of a startup validation pass.
type ValidationReport struct {
	Valid              bool
	HasCriticalFailure bool
	Results            []ValidationResult
	TotalTimeMs        int64
}

type checkEntry struct {
	check       Check
	criticality Criticality
}

// StartupValidator validates every configured integration once at
// application boot, blocking startup only on critical integration failures.
type StartupValidator struct {
	checks []checkEntry
	log    *logrus.Logger
}

// NewStartupValidator creates an empty StartupValidator.
func NewStartupValidator(log *logrus.Logger) *StartupValidator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &StartupValidator{log: log}
}

// AddCritical registers a check whose failure must block startup.
func (v *StartupValidator) AddCritical(check Check) *StartupValidator {
	v.log.WithField("integration", check.IntegrationName()).Info("adding critical integration to startup validator")
	v.checks = append(v.checks, checkEntry{check, Critical})
	return v
}

// AddOptional registers a check whose failure only warns.
func (v *StartupValidator) AddOptional(check Check) *StartupValidator {
	v.log.WithField("integration", check.IntegrationName()).Info("adding optional integration to startup validator")
	v.checks = append(v.checks, checkEntry{check, Optional})
	return v
}

// CheckCount returns the number of configured checks.
func (v *StartupValidator) CheckCount() int {
	return len(v.checks)
}

// Validate runs every configured check in parallel, each bounded by
// ValidationTimeout, and returns a report describing whether the
// application is clear to start.
func (v *StartupValidator) Validate(ctx context.Context) ValidationReport {
	start := time.Now()

	if len(v.checks) == 0 {
		v.log.Info("no integrations configured for startup validation")
		return ValidationReport{Valid: true}
	}

	v.log.WithField("count", len(v.checks)).Info("running startup validation for integrations")

	results := make([]ValidationResult, len(v.checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, entry := range v.checks {
		i, entry := i, entry
		g.Go(func() error {
			results[i] = v.validateOne(gctx, entry)
			return nil
		})
	}
	_ = g.Wait()

	hasCriticalFailure := false
	for _, r := range results {
		if r.IsCritical && !r.Success {
			hasCriticalFailure = true
			break
		}
	}

	totalTimeMs := time.Since(start).Milliseconds()

	fields := logging.NewFields().Component("health").Operation("startup_validate").Custom("total_time_ms", totalTimeMs)
	if hasCriticalFailure {
		v.log.WithFields(fields.ToLogrus()).Warn("startup validation completed with critical failures")
	} else {
		v.log.WithFields(fields.ToLogrus()).Info("startup validation completed successfully")
	}

	return ValidationReport{
		Valid:              !hasCriticalFailure,
		HasCriticalFailure: hasCriticalFailure,
		Results:            results,
		TotalTimeMs:        totalTimeMs,
	}
}

func (v *StartupValidator) validateOne(ctx context.Context, entry checkEntry) ValidationResult {
	name := entry.check.IntegrationName()
	isCritical := entry.criticality == Critical

	checkCtx, cancel := context.WithTimeout(ctx, ValidationTimeout)
	defer cancel()

	done := make(chan CheckResult, 1)
	go func() {
		done <- entry.check.Run(checkCtx)
	}()

	select {
	case result := <-done:
		success := result.Status == StatusOnline || result.Status == StatusDegraded

		fields := logging.IntegrationFields("startup_validate", name).Custom("critical", isCritical)
		if success {
			if result.ResponseTimeMs != nil {
				fields = fields.Custom("response_time_ms", *result.ResponseTimeMs)
			}
			v.log.WithFields(fields.ToLogrus()).Info("startup validation passed")
		} else if result.ErrorMessage != nil {
			v.log.WithFields(fields.Error(errString(*result.ErrorMessage)).ToLogrus()).Warn("startup validation failed")
		} else {
			v.log.WithFields(fields.ToLogrus()).Warn("startup validation failed")
		}

		return ValidationResult{
			Integration:    name,
			Success:        success,
			ErrorMessage:   result.ErrorMessage,
			ResponseTimeMs: result.ResponseTimeMs,
			IsCritical:     isCritical,
		}

	case <-checkCtx.Done():
		msg := fmt.Sprintf("validation timed out (>%s)", ValidationTimeout)
		v.log.WithFields(logging.IntegrationFields("startup_validate", name).
			Custom("critical", isCritical).
			Custom("timeout_seconds", int64(ValidationTimeout.Seconds())).ToLogrus()).
			Warn("startup validation timed out")

		return ValidationResult{
			Integration:  name,
			Success:      false,
			ErrorMessage: &msg,
			IsCritical:   isCritical,
		}
	}
}
