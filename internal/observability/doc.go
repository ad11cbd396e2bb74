// Package observability provides structured logging and request context
// plumbing for the gateway.
package observability
