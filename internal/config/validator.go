package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePort validates a TCP port
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidatePath validates an HTTP route path
func (v *Validator) ValidatePath(name, path string) error {
	if path == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("%s must start with /, got %q", name, path)
	}
	if strings.ContainsAny(path, "?# ") {
		return fmt.Errorf("%s must be a plain path, got %q", name, path)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateMethods validates the CORS method allowance
func (v *Validator) ValidateMethods(methods []string) error {
	validMethods := map[string]bool{
		"GET": true, "POST": true, "OPTIONS": true, "HEAD": true,
		"PUT": true, "PATCH": true, "DELETE": true,
	}

	hasGet, hasPost := false, false
	for _, method := range methods {
		upper := strings.ToUpper(method)
		if !validMethods[upper] {
			return fmt.Errorf("invalid CORS method: %s", method)
		}
		hasGet = hasGet || upper == "GET"
		hasPost = hasPost || upper == "POST"
	}
	if !hasGet || !hasPost {
		return fmt.Errorf("CORS methods must include GET and POST")
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidatePort(cfg.Server.Port); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidatePath("stream_path", cfg.Server.StreamPath); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidatePath("message_path", cfg.Server.MessagePath); err != nil {
		errors = append(errors, err)
	}
	if cfg.Server.StreamPath != "" && cfg.Server.StreamPath == cfg.Server.MessagePath {
		errors = append(errors, fmt.Errorf("stream_path and message_path must differ"))
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		errors = append(errors, fmt.Errorf("max_body_bytes must be positive, got %d", cfg.Server.MaxBodyBytes))
	}
	if cfg.Server.KeepAliveSeconds < 0 {
		errors = append(errors, fmt.Errorf("keepalive_seconds cannot be negative"))
	}
	if cfg.Server.SendQueueLimit < 0 {
		errors = append(errors, fmt.Errorf("send_queue_limit cannot be negative"))
	}
	if cfg.Server.ShutdownTimeoutSeconds <= 0 {
		errors = append(errors, fmt.Errorf("shutdown_timeout_seconds must be positive"))
	}

	if len(cfg.CORS.AllowedOrigins) == 0 {
		errors = append(errors, fmt.Errorf("cors allowed_origins cannot be empty"))
	}
	if err := v.ValidateMethods(cfg.CORS.AllowedMethods); err != nil {
		errors = append(errors, err)
	}

	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.MaxConcurrent < 0 {
		errors = append(errors, fmt.Errorf("rate limits cannot be negative"))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}
	if cfg.Logging.MaxSizeMB < 0 || cfg.Logging.MaxBackups < 0 {
		errors = append(errors, fmt.Errorf("log rotation limits cannot be negative"))
	}

	if cfg.Engine.Name == "" {
		errors = append(errors, fmt.Errorf("engine name cannot be empty"))
	}

	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errors = append(errors, fmt.Errorf("tracing sample ratio must be between 0 and 1, got %v", cfg.Tracing.SampleRatio))
	}

	return errors
}
