package config

import (
	"os"
	"path/filepath"
	"strconv"

	"movephotos/internal/deduction"
)

// ValidationSeverity represents the severity of a validation issue.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// maxConcurrency is the point past which more workers only add contention.
const maxConcurrency = 256

// ConfigValidationError represents a single validation issue.
type ConfigValidationError struct {
	Field    string             // Config field with issue (e.g., "strategies[1]")
	Message  string             // Human-readable description
	Severity ValidationSeverity // "error" or "warning"
}

// ValidationResult contains all validation findings.
type ValidationResult struct {
	Errors   []ConfigValidationError
	Warnings []ConfigValidationError
	Valid    bool // True if no errors (warnings OK)
}

func (r *ValidationResult) add(findings []ConfigValidationError) {
	for _, f := range findings {
		if f.Severity == SeverityError {
			r.Errors = append(r.Errors, f)
		} else {
			r.Warnings = append(r.Warnings, f)
		}
	}
}

// ValidateConfig checks the configuration and returns all findings.
func ValidateConfig(cfg *Configuration) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ConfigValidationError{},
		Warnings: []ConfigValidationError{},
	}

	result.add(ValidateStrategies(cfg))
	result.add(ValidatePatterns(cfg))
	result.add(ValidateLimits(cfg))
	result.add(ValidatePaths(cfg))

	result.Valid = len(result.Errors) == 0
	return result
}

// ValidateStrategies checks that every strategy name is registered. A name
// listed twice only wastes work, so it is a warning.
func ValidateStrategies(cfg *Configuration) []ConfigValidationError {
	var findings []ConfigValidationError
	seen := make(map[string]int)

	for i, name := range cfg.Strategies {
		if !deduction.KnownStrategy(name) {
			findings = append(findings, ConfigValidationError{
				Field:    formatField("strategies", i),
				Message:  "unknown strategy: \"" + name + "\"",
				Severity: SeverityError,
			})
			continue
		}
		if first, dup := seen[name]; dup {
			findings = append(findings, ConfigValidationError{
				Field:    formatField("strategies", i),
				Message:  "strategy \"" + name + "\" already listed at index " + strconv.Itoa(first),
				Severity: SeverityWarning,
			})
			continue
		}
		seen[name] = i
	}
	return findings
}

// ValidatePatterns checks that unwanted and ignore patterns are valid globs.
func ValidatePatterns(cfg *Configuration) []ConfigValidationError {
	var findings []ConfigValidationError

	check := func(field string, patterns []string) {
		for i, p := range patterns {
			if p == "" {
				findings = append(findings, ConfigValidationError{
					Field:    formatField(field, i),
					Message:  "pattern cannot be empty",
					Severity: SeverityError,
				})
				continue
			}
			if _, err := filepath.Match(p, ""); err != nil {
				findings = append(findings, ConfigValidationError{
					Field:    formatField(field, i),
					Message:  "invalid pattern \"" + p + "\": " + err.Error(),
					Severity: SeverityError,
				})
			}
		}
	}

	check("unwantedPatterns", cfg.UnwantedPatterns)
	check("watch.ignorePatterns", cfg.Watch.IgnorePatterns)
	return findings
}

// ValidateLimits checks numeric settings.
func ValidateLimits(cfg *Configuration) []ConfigValidationError {
	var findings []ConfigValidationError

	if cfg.Concurrency < 0 {
		findings = append(findings, ConfigValidationError{
			Field:    "concurrency",
			Message:  "concurrency must be a positive integer",
			Severity: SeverityError,
		})
	} else if cfg.Concurrency > maxConcurrency {
		findings = append(findings, ConfigValidationError{
			Field:    "concurrency",
			Message:  "concurrency above " + strconv.Itoa(maxConcurrency) + " is unlikely to help",
			Severity: SeverityWarning,
		})
	}

	if cfg.Watch.DebounceSeconds < 0 {
		findings = append(findings, ConfigValidationError{
			Field:    "watch.debounceSeconds",
			Message:  "debounceSeconds cannot be negative",
			Severity: SeverityError,
		})
	}
	return findings
}

// ValidatePaths checks that the audit directory and hash cache location
// are usable. Missing directories are created later, so only a path that
// exists as the wrong kind of file is an error.
func ValidatePaths(cfg *Configuration) []ConfigValidationError {
	var findings []ConfigValidationError

	if cfg.Audit != nil && cfg.Audit.LogDirectory != "" {
		if info, err := os.Stat(cfg.Audit.LogDirectory); err == nil && !info.IsDir() {
			findings = append(findings, ConfigValidationError{
				Field:    "audit.logDirectory",
				Message:  "path exists but is not a directory: " + cfg.Audit.LogDirectory,
				Severity: SeverityError,
			})
		}
	}

	if cfg.HashCache != "" {
		if info, err := os.Stat(cfg.HashCache); err == nil && info.IsDir() {
			findings = append(findings, ConfigValidationError{
				Field:    "hashCache",
				Message:  "path is a directory: " + cfg.HashCache,
				Severity: SeverityError,
			})
		} else if _, err := os.Stat(filepath.Dir(cfg.HashCache)); os.IsNotExist(err) {
			findings = append(findings, ConfigValidationError{
				Field:    "hashCache",
				Message:  "parent directory does not exist: " + filepath.Dir(cfg.HashCache),
				Severity: SeverityError,
			})
		}
	}
	return findings
}

// formatField creates a field reference string for validation errors.
func formatField(name string, index int) string {
	return name + "[" + strconv.Itoa(index) + "]"
}
