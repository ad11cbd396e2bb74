// Package audit persists records of unexpected failures together with the
// request context they occurred in. The sink is fire-and-forget: a failure
// to write an audit record is swallowed and never reaches the caller.
package audit
