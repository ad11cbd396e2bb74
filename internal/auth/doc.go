// Package auth implements bearer token verification against the identity
// provider's published key set. The key set is fetched once at process
// start; if the provider rotates keys the gateway rejects valid tokens
// until restart (known limitation).
package auth
