// Package apierror defines the gateway's error taxonomy and the single
// classification chokepoint that maps any failure to a stable status/detail
// pair. Internal error types never leak to callers: every failure response
// is JSON with a "detail" field.
package apierror
