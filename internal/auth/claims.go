package auth

import (
	"encoding/json"
	"time"
)

// Claims is the decoded, verified identity token payload. It is immutable
// once produced and lives for exactly one inbound request; it is never
// persisted.
type Claims struct {
	Issuer    string `json:"iss,omitempty"`
	Subject   string `json:"sub,omitempty"`
	ExpiresAt *Time  `json:"exp,omitempty"`
	NotBefore *Time  `json:"nbf,omitempty"`
	IssuedAt  *Time  `json:"iat,omitempty"`
	JWTID     string `json:"jti,omitempty"`

	// Extra holds any non-standard claims.
	Extra map[string]interface{} `json:"-"`
}

// Time wraps time.Time for NumericDate (Unix seconds) JSON decoding.
type Time struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	var timestamp float64
	if err := json.Unmarshal(data, &timestamp); err != nil {
		return err
	}
	t.Time = time.Unix(int64(timestamp), 0)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Unix())
}

// parseClaims parses claims from a decoded payload map.
func parseClaims(data map[string]interface{}) *Claims {
	claims := &Claims{Extra: make(map[string]interface{})}

	for key, value := range data {
		switch key {
		case "iss":
			if s, ok := value.(string); ok {
				claims.Issuer = s
			}
		case "sub":
			if s, ok := value.(string); ok {
				claims.Subject = s
			}
		case "exp":
			claims.ExpiresAt = parseNumericDate(value)
		case "nbf":
			claims.NotBefore = parseNumericDate(value)
		case "iat":
			claims.IssuedAt = parseNumericDate(value)
		case "jti":
			if s, ok := value.(string); ok {
				claims.JWTID = s
			}
		default:
			claims.Extra[key] = value
		}
	}

	return claims
}

// parseNumericDate parses a NumericDate claim value.
func parseNumericDate(value interface{}) *Time {
	switch v := value.(type) {
	case float64:
		return &Time{Time: time.Unix(int64(v), 0)}
	case int64:
		return &Time{Time: time.Unix(v, 0)}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return &Time{Time: time.Unix(i, 0)}
		}
	}
	return nil
}

// validate checks the time-based claims and the issuer.
func (c *Claims) validate(expectedIssuer string, now time.Time) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrTokenExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrTokenNotYetValid
	}
	if c.Issuer != expectedIssuer {
		return ErrIssuerMismatch
	}
	return nil
}
