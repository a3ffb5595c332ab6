// Package token verifies compact HMAC-SHA256 signed credentials and
// extracts their identity claims.
//
// A credential is three base64url segments: header, payload and signature.
// The payload is a flat JSON object; only sub, exp, role, deviceId and
// placeId are read.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Outcome is the result of validating a credential.
type Outcome int

// Validation outcomes. Valid is the only outcome that may be trusted.
const (
	Valid Outcome = iota
	Expired
	InvalidSignature
	Malformed
	MissingClaims
	InvalidFormat
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	case InvalidSignature:
		return "invalid_signature"
	case Malformed:
		return "malformed"
	case MissingClaims:
		return "missing_claims"
	case InvalidFormat:
		return "invalid_format"
	default:
		return "unknown"
	}
}

// Claim names in the payload.
const (
	ClaimSubject    = "sub"
	ClaimExpiration = "exp"
	ClaimRole       = "role"
	ClaimDeviceID   = "deviceId"
	ClaimPlaceID    = "placeId"
)

// Claims is the decoded identity carried by a credential.
type Claims struct {
	Subject   string
	Role      string
	DeviceID  string
	PlaceID   string
	ExpiresAt int64
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock sets the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// Validator verifies credentials signed with a shared secret.
// It is safe for concurrent use.
type Validator struct {
	secret []byte
	now    func() time.Time
}

// New creates a Validator for the given signing secret.
func New(secret []byte, opts ...Option) *Validator {
	v := &Validator{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks the credential's format, signature, claims and expiry.
func (v *Validator) Validate(token string) Outcome {
	parts := strings.Split(token, ".")
	wellFormed := len(parts) == 3 && parts[0] != "" && parts[1] != "" && parts[2] != ""

	// The signature is computed for every input so a format failure costs
	// the same as a signature failure.
	signingInput, signature := token, ""
	if len(parts) == 3 {
		signingInput = parts[0] + "." + parts[1]
		signature = parts[2]
	}
	signatureOK := constantTimeEquals(v.sign(signingInput), signature)

	if !wellFormed {
		return InvalidFormat
	}
	if !signatureOK {
		return InvalidSignature
	}

	payload, err := decodePayload(parts[1])
	if err != nil {
		return Malformed
	}

	sub, hasSub := payload[ClaimSubject]
	exp, hasExp := payload[ClaimExpiration]
	if !hasSub || sub.IsNull() || !hasExp || exp.IsNull() {
		return MissingClaims
	}

	expiresAt, ok := exp.Number()
	if !ok {
		return Malformed
	}

	if v.now().Unix() >= expiresAt {
		return Expired
	}
	return Valid
}

// Claims decodes the payload without verifying the signature.
// Callers must Validate first.
func (v *Validator) Claims(token string) (Claims, bool) {
	payload, ok := safePayload(token)
	if !ok {
		return Claims{}, false
	}

	c := Claims{
		Subject:  claimString(payload, ClaimSubject),
		Role:     claimString(payload, ClaimRole),
		DeviceID: claimString(payload, ClaimDeviceID),
		PlaceID:  claimString(payload, ClaimPlaceID),
	}
	if exp, ok := payload[ClaimExpiration]; ok {
		c.ExpiresAt, _ = exp.Number()
	}
	return c, true
}

// ExtractUserID returns the sub claim, or "" on any failure.
func (v *Validator) ExtractUserID(token string) string {
	return v.extract(token, ClaimSubject)
}

// ExtractRole returns the role claim, or "" on any failure.
func (v *Validator) ExtractRole(token string) string {
	return v.extract(token, ClaimRole)
}

// ExtractDeviceID returns the deviceId claim, or "" on any failure.
func (v *Validator) ExtractDeviceID(token string) string {
	return v.extract(token, ClaimDeviceID)
}

// ExtractPlaceID returns the placeId claim, or "" on any failure.
func (v *Validator) ExtractPlaceID(token string) string {
	return v.extract(token, ClaimPlaceID)
}

// ExtractExpiration returns the seconds left until the credential expires.
// The result is negative for expired credentials and 0 when the payload
// cannot be read.
func (v *Validator) ExtractExpiration(token string) int64 {
	payload, ok := safePayload(token)
	if !ok {
		return 0
	}
	exp, ok := payload[ClaimExpiration]
	if !ok {
		return 0
	}
	expiresAt, ok := exp.Number()
	if !ok {
		return 0
	}
	return expiresAt - v.now().Unix()
}

func (v *Validator) extract(token, claim string) string {
	payload, ok := safePayload(token)
	if !ok {
		return ""
	}
	return claimString(payload, claim)
}

func (v *Validator) sign(input string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(input))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// constantTimeEquals compares a and b without an early exit on the first
// differing byte.
// NOTE: differing lengths return immediately. The expected length is fixed
// by HMAC-SHA256, so this only reveals the length of the supplied value.
func constantTimeEquals(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := 0; i < len(a); i++ {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}

func decodePayload(segment string) (map[string]Value, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(segment, "="))
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return ParseFlatObject(raw)
}

// safePayload decodes the payload segment. It reports false instead of
// returning an error or panicking.
func safePayload(token string) (payload map[string]Value, ok bool) {
	defer func() {
		if recover() != nil {
			payload, ok = nil, false
		}
	}()

	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[1] == "" {
		return nil, false
	}
	payload, err := decodePayload(parts[1])
	if err != nil {
		return nil, false
	}
	return payload, true
}

func claimString(payload map[string]Value, claim string) string {
	v, ok := payload[claim]
	if !ok {
		return ""
	}
	return v.String()
}
