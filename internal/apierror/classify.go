package apierror

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// Classify maps any failure to a normalized Error and reports whether it
// should be persisted to the audit sink. Audit is reserved for unexpected
// and internal failure classes: programming faults and upstream statuses
// of 500 and above. Routine client mistakes are not audited to avoid
// flooding the sink.
func Classify(err error) (*Error, bool) {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr, gwErr.Status >= http.StatusInternalServerError
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return BadRequest(validationErr.Message), false
	}

	// Data faults: malformed values and type mismatches are always
	// internal and always audited.
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var numErr *strconv.NumError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.As(err, &numErr) {
		return Internal(err.Error()), true
	}

	// Last resort: anything unrecognized is an internal fault.
	return Internal(err.Error()), true
}
