// Package middleware provides HTTP middleware for the gateway: request
// IDs, request logging, panic recovery, CORS, and inbound rate limiting.
package middleware
