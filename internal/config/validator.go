package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Paths returns the path of every error, in order.
func (e ValidationErrors) Paths() []string {
	paths := make([]string, 0, len(e))
	for _, err := range e {
		paths = append(paths, err.Path)
	}
	return paths
}

// Validator validates gateway configuration. Field rules live in struct
// tags; rules spanning several sections are checked here.
type Validator struct {
	validate *validator.Validate
	errors   ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(yamlFieldName)

	return &Validator{
		validate: validate,
		errors:   make(ValidationErrors, 0),
	}
}

// ValidateConfig validates a gateway configuration.
func ValidateConfig(config *GatewayConfig) error {
	return NewValidator().Validate(config)
}

// Validate validates the configuration and returns every problem found as
// ValidationErrors.
func (v *Validator) Validate(config *GatewayConfig) error {
	v.errors = make(ValidationErrors, 0)

	if config == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateTags(config)
	v.validateSecret(&config.Auth.JWT)
	v.validateBackends(config.Backends)
	v.validateRoutes(config.Routes, config.Backends)
	v.validateEndpoints(config.RateLimit.Endpoints)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateTags(config *GatewayConfig) {
	err := v.validate.Struct(config)
	if err == nil {
		return
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.addError("", err.Error())
		return
	}

	for _, fe := range fieldErrs {
		v.addError(fieldPath(fe.Namespace()), tagMessage(fe))
	}
}

func (v *Validator) validateSecret(jwt *JWTConfig) {
	if jwt.Secret != "" {
		return
	}
	if !jwt.Vault.Enabled() {
		v.addError("auth.jwt", "either secret or vault.path is required")
		return
	}
	if jwt.Vault.Mount == "" {
		v.addError("auth.jwt.vault.mount", "mount is required")
	}
	if jwt.Vault.Key == "" {
		v.addError("auth.jwt.vault.key", "key is required")
	}
}

func (v *Validator) validateBackends(backends []Backend) {
	seen := make(map[string]bool, len(backends))
	for i, b := range backends {
		if b.Name == "" {
			continue
		}
		if seen[b.Name] {
			v.addError(fmt.Sprintf("backends[%d].name", i), fmt.Sprintf("duplicate backend name %q", b.Name))
		}
		seen[b.Name] = true
	}
}

func (v *Validator) validateRoutes(routes []Route, backends []Backend) {
	known := make(map[string]bool, len(backends))
	for _, b := range backends {
		known[b.Name] = true
	}

	prefixes := make(map[string]bool, len(routes))
	for i, r := range routes {
		path := fmt.Sprintf("routes[%d]", i)
		if r.Backend != "" && !known[r.Backend] {
			v.addError(path+".backend", fmt.Sprintf("unknown backend %q", r.Backend))
		}
		if prefixes[r.Prefix] {
			v.addError(path+".prefix", fmt.Sprintf("duplicate route prefix %q", r.Prefix))
		}
		prefixes[r.Prefix] = true
	}
}

// validateEndpoints checks per-prefix policies, naming the prefix in the path.
func (v *Validator) validateEndpoints(endpoints map[string]PolicyConfig) {
	for prefix, p := range endpoints {
		path := fmt.Sprintf("rateLimit.endpoints[%s]", prefix)
		if p.Limit < 1 {
			v.addError(path+".limit", "must be at least 1")
		}
		if p.Duration <= 0 {
			v.addError(path+".duration", "must be greater than 0")
		}
		if p.BurstCapacity < 1 {
			v.addError(path+".burstCapacity", "must be at least 1")
		}
	}
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func yamlFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
	if name == "-" || name == "" {
		return field.Name
	}
	return name
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required when enabled"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "startswith":
		return fmt.Sprintf("must start with %q", fe.Param())
	case "url":
		return "must be a valid URL"
	case "hostname_port":
		return "must be host:port"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
