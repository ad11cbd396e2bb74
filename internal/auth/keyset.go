package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"

	"github.com/infinitehq/aimlgw/internal/observability"
)

// jsonWebKeySet represents the provider's published JWKS document.
type jsonWebKeySet struct {
	Keys []jsonWebKey `json:"keys"`
}

// jsonWebKey represents a single JSON Web Key.
type jsonWebKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg,omitempty"`
	Use string `json:"use,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// KeySet is a process-wide mapping from key id to public key material.
// It is immutable after FetchKeySet returns and requires no locking.
type KeySet struct {
	keys map[string]*rsa.PublicKey
}

// FetchKeySet fetches the provider's JWKS document and builds the KeySet.
// It is called once at process start; a failure here must abort startup
// rather than silently disable authentication.
func FetchKeySet(ctx context.Context, url string, client *http.Client, logger observability.Logger) (*KeySet, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("JWKS endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read JWKS response: %w", err)
	}

	keySet, err := ParseKeySet(body)
	if err != nil {
		return nil, err
	}

	logger.Info("key set fetched",
		observability.String("url", url),
		observability.Int("keyCount", len(keySet.keys)),
	)

	return keySet, nil
}

// ParseKeySet parses a JWKS document into a KeySet. Non-RSA keys are
// skipped; at least one usable key is required.
func ParseKeySet(data []byte) (*KeySet, error) {
	var jwks jsonWebKeySet
	if err := json.Unmarshal(data, &jwks); err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for i := range jwks.Keys {
		jwk := &jwks.Keys[i]
		if jwk.Kty != "RSA" {
			continue
		}
		pub, err := jwk.toRSAPublicKey()
		if err != nil {
			return nil, fmt.Errorf("invalid key %q: %w", jwk.Kid, err)
		}
		keys[jwk.Kid] = pub
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("JWKS contains no usable RSA keys")
	}

	return &KeySet{keys: keys}, nil
}

// Key returns the public key for the given key id.
func (ks *KeySet) Key(kid string) (*rsa.PublicKey, bool) {
	key, ok := ks.keys[kid]
	return key, ok
}

// Len returns the number of keys in the set.
func (ks *KeySet) Len() int {
	return len(ks.keys)
}

// toRSAPublicKey converts a JSON Web Key to an RSA public key.
func (jwk *jsonWebKey) toRSAPublicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	n := new(big.Int).SetBytes(nBytes)

	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}
	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}

	return &rsa.PublicKey{N: n, E: e}, nil
}
