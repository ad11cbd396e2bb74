// Package session provides read access to conversation session records
// stored in Redis. The gateway consults the store to gate chat requests
// on the session's declared type before any upstream call is made.
package session
