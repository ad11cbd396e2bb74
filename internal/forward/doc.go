// Package forward implements the request-forwarding core: it relays calls
// to the upstream AIML service with retry and timeout discipline, normalizes
// response payloads, and maps transport and status failures into the
// gateway's error taxonomy. The streaming variant relays long-lived chat
// responses chunk by chunk with no retry and no timeout ceiling.
package forward
