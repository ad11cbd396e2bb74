package auth

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/infinitehq/aimlgw/internal/observability"
)

// bearerPrefix is the required Authorization header scheme.
const bearerPrefix = "Bearer "

// algRS256 is the provider's expected signing algorithm.
const algRS256 = "RS256"

// Verifier validates bearer tokens against the process-wide KeySet.
type Verifier struct {
	keys    *KeySet
	issuer  string
	logger  observability.Logger
	metrics *Metrics
	now     func() time.Time
}

// VerifierOption is a functional option for the Verifier.
type VerifierOption func(*Verifier)

// WithVerifierLogger sets the logger.
func WithVerifierLogger(logger observability.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// WithVerifierMetrics sets the metrics.
func WithVerifierMetrics(metrics *Metrics) VerifierOption {
	return func(v *Verifier) {
		v.metrics = metrics
	}
}

// WithClock sets the time source used for expiry checks.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

// NewVerifier creates a new Verifier.
func NewVerifier(keys *KeySet, issuer string, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		keys:   keys,
		issuer: issuer,
		logger: observability.NopLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.metrics == nil {
		v.metrics = NewMetrics("gateway")
	}

	return v
}

// tokenHeader represents the JWT header.
type tokenHeader struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ"`
	KeyID     string `json:"kid"`
}

// Verify validates the raw Authorization header value and returns the
// verified Claims. Verification runs once per inbound request; nothing is
// cached across requests.
func (v *Verifier) Verify(authorization string) (*Claims, error) {
	start := v.now()

	token, ok := strings.CutPrefix(authorization, bearerPrefix)
	if !ok || token == "" {
		v.metrics.RecordVerification("error", "missing_bearer", time.Since(start))
		return nil, ErrMissingBearer
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		v.metrics.RecordVerification("error", "malformed", time.Since(start))
		return nil, ErrTokenMalformed
	}

	header, err := decodeHeader(parts[0])
	if err != nil {
		v.metrics.RecordVerification("error", "invalid_header", time.Since(start))
		return nil, NewVerificationError("failed to decode header", err)
	}

	if header.Algorithm != algRS256 {
		v.metrics.RecordVerification("error", "invalid_algorithm", time.Since(start))
		return nil, NewVerificationError("algorithm "+header.Algorithm+" is not allowed", ErrUnsupportedAlg)
	}

	key, ok := v.keys.Key(header.KeyID)
	if !ok {
		v.metrics.RecordVerification("error", "unknown_key", time.Since(start))
		return nil, ErrUnknownKey
	}

	if err := verifySignature(key, parts[0]+"."+parts[1], parts[2]); err != nil {
		v.metrics.RecordVerification("error", "invalid_signature", time.Since(start))
		return nil, err
	}

	claims, err := decodePayload(parts[1])
	if err != nil {
		v.metrics.RecordVerification("error", "invalid_payload", time.Since(start))
		return nil, NewVerificationError("failed to decode payload", err)
	}

	if err := claims.validate(v.issuer, v.now()); err != nil {
		v.metrics.RecordVerification("error", "invalid_claims", time.Since(start))
		return nil, err
	}

	v.metrics.RecordVerification("success", "", time.Since(start))
	v.logger.Debug("token verified",
		observability.String("subject", claims.Subject),
		observability.String("issuer", claims.Issuer),
	)

	return claims, nil
}

// decodeHeader decodes the JWT header segment.
func decodeHeader(encoded string) (*tokenHeader, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	var header tokenHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, err
	}

	return &header, nil
}

// decodePayload decodes the JWT payload segment.
func decodePayload(encoded string) (*Claims, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	var claimsMap map[string]interface{}
	if err := json.Unmarshal(data, &claimsMap); err != nil {
		return nil, err
	}

	return parseClaims(claimsMap), nil
}

// verifySignature verifies the RS256 signature over the signing input.
func verifySignature(key *rsa.PublicKey, signingInput, signature string) error {
	sigBytes, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return NewVerificationError("failed to decode signature", err)
	}

	h := sha256.New()
	h.Write([]byte(signingInput))
	hashed := h.Sum(nil)

	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, hashed, sigBytes); err != nil {
		return ErrInvalidSignature
	}

	return nil
}
