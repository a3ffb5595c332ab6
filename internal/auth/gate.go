package auth

import (
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/vyrodovalexey/placegw/internal/apierror"
	"github.com/vyrodovalexey/placegw/internal/observability"
	"github.com/vyrodovalexey/placegw/internal/token"
)

// DefaultAppType is the only client application class accepted by default.
const DefaultAppType = "PLACE_MANAGER"

const bearerPrefix = "Bearer "

// DefaultPublicPaths bypass every check.
var DefaultPublicPaths = []string{
	"/actuator",
	"/health",
	"/metrics",
	"/swagger-ui",
	"/v3/api-docs",
	"/webjars",
}

// DefaultPreAuthPaths require the app-identity header but no credential.
var DefaultPreAuthPaths = []string{
	"/api/v1/auth/login",
	"/api/v1/auth/refresh",
}

// TokenValidator validates credentials and exposes their claims.
type TokenValidator interface {
	Validate(token string) token.Outcome
	Claims(token string) (token.Claims, bool)
}

// GateConfig configures the authentication gate.
type GateConfig struct {
	Validator       TokenValidator
	ExpectedAppType string
	PublicPaths     []string
	PreAuthPaths    []string
	Logger          observability.Logger
}

// DefaultGateConfig returns a GateConfig with default paths and app type.
// The validator must still be set.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		ExpectedAppType: DefaultAppType,
		PublicPaths:     append([]string(nil), DefaultPublicPaths...),
		PreAuthPaths:    append([]string(nil), DefaultPreAuthPaths...),
	}
}

// Decision tells the caller what to do with a request that passed the gate.
type Decision int

const (
	// DecisionBypass leaves the request untouched.
	DecisionBypass Decision = iota
	// DecisionPreAuth strips identity headers and sets only the app type.
	DecisionPreAuth
	// DecisionAuthenticated replaces identity headers with Result.Identity.
	DecisionAuthenticated
)

// String returns the string representation of the decision.
func (d Decision) String() string {
	switch d {
	case DecisionBypass:
		return "bypass"
	case DecisionPreAuth:
		return "pre-auth"
	case DecisionAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Result is the outcome of a request that passed the gate.
type Result struct {
	Decision Decision
	Identity Identity
}

// Apply rewrites the identity headers of h according to the decision.
func (r *Result) Apply(h http.Header) {
	switch r.Decision {
	case DecisionPreAuth:
		StripIdentityHeaders(h)
		h.Set(HeaderAppType, r.Identity.AppType)
	case DecisionAuthenticated:
		r.Identity.Apply(h)
	}
}

// Gate enforces app identity, credential validity and role policy.
type Gate struct {
	validator    TokenValidator
	appType      string
	publicPaths  []string
	preAuthPaths []string
	logger       observability.Logger
}

// NewGate creates a gate from cfg.
func NewGate(cfg GateConfig) (*Gate, error) {
	if cfg.Validator == nil {
		return nil, fmt.Errorf("auth gate: validator is required")
	}
	if cfg.ExpectedAppType == "" {
		cfg.ExpectedAppType = DefaultAppType
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger()
	}

	return &Gate{
		validator:    cfg.Validator,
		appType:      cfg.ExpectedAppType,
		publicPaths:  cfg.PublicPaths,
		preAuthPaths: cfg.PreAuthPaths,
		logger:       cfg.Logger,
	}, nil
}

// Authenticate decides whether r may pass. Rejections are returned as
// *apierror.Error values.
func (g *Gate) Authenticate(r *http.Request) (*Result, error) {
	path := r.URL.Path
	logger := g.logger.WithContext(r.Context()).With(
		observability.String("method", r.Method),
		observability.String("path", path),
	)

	if r.Method == http.MethodOptions {
		logger.Debug("cors preflight bypasses authentication")
		return &Result{Decision: DecisionBypass}, nil
	}

	if hasAnyPrefix(path, g.publicPaths) {
		logger.Debug("public path bypasses authentication")
		return &Result{Decision: DecisionBypass}, nil
	}

	if got := r.Header.Get(HeaderAppType); got != g.appType {
		logger.Info("rejected request with unexpected app type",
			observability.String("expected", g.appType),
			observability.String("got", got),
		)
		return nil, apierror.Newf(apierror.AccessDenied,
			"Only the place manager app may access this gateway (%s: %s required)", HeaderAppType, g.appType)
	}

	if hasAnyPrefix(path, g.preAuthPaths) {
		logger.Debug("pre-auth path accessed with valid app type")
		return &Result{
			Decision: DecisionPreAuth,
			Identity: Identity{AppType: g.appType},
		}, nil
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		logger.Info("missing or invalid authorization header")
		return nil, apierror.New(apierror.Unauthorized, "An authentication token is required")
	}
	raw := header[len(bearerPrefix):]

	if outcome := g.validator.Validate(raw); outcome != token.Valid {
		logger.Warn("token validation failed", observability.String("reason", outcome.String()))
		return nil, rejectionFor(outcome)
	}

	claims, _ := g.validator.Claims(raw)
	if claims.Subject == "" {
		logger.Warn("token validated but subject is missing")
		return nil, apierror.New(apierror.InvalidToken, "Token carries no user identity")
	}

	if name, ok := forwardableClaims(claims); !ok {
		logger.Warn("token carries a claim that is not a valid header value",
			observability.String("claim", name),
		)
		return nil, apierror.New(apierror.InvalidToken, "Token carries an invalid claim value")
	}

	role, ok := ParseRole(claims.Role)
	if !ok || !role.CanAccessGateway() {
		logger.Info("access denied for role",
			observability.String("user_id", claims.Subject),
			observability.String("role", claims.Role),
		)
		return nil, apierror.Newf(apierror.AccessDenied,
			"Role '%s' is not allowed to access this gateway; place owner or admin required", claims.Role)
	}

	logger.Debug("authenticated request",
		observability.String("user_id", claims.Subject),
		observability.String("role", role.String()),
		observability.String("place_id", claims.PlaceID),
	)

	return &Result{
		Decision: DecisionAuthenticated,
		Identity: Identity{
			UserID:   claims.Subject,
			Role:     role,
			DeviceID: claims.DeviceID,
			PlaceID:  claims.PlaceID,
			AppType:  g.appType,
		},
	}, nil
}

// rejectionFor maps a failed validation outcome to an error.
func rejectionFor(outcome token.Outcome) *apierror.Error {
	switch outcome {
	case token.Expired:
		return apierror.FromCode(apierror.ExpiredToken)
	case token.InvalidSignature, token.Malformed, token.MissingClaims, token.InvalidFormat:
		return apierror.FromCode(apierror.InvalidToken)
	default:
		return apierror.FromCode(apierror.Unauthorized)
	}
}

// forwardableClaims reports whether every claim copied into identity
// headers is a valid header value, and names the first one that is not.
func forwardableClaims(c token.Claims) (string, bool) {
	for _, claim := range []struct{ name, value string }{
		{"sub", c.Subject},
		{"role", c.Role},
		{"deviceId", c.DeviceID},
		{"placeId", c.PlaceID},
	} {
		if !httpguts.ValidHeaderFieldValue(claim.value) {
			return claim.name, false
		}
	}
	return "", true
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
