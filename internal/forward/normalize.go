package forward

import "regexp"

// objectIDKey is the extended-JSON wrapper key the upstream uses for
// document identifiers.
const objectIDKey = "$oid"

// objectIDPattern matches a 24-hex-character document identifier.
var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// NormalizeDocumentIDs recursively rewrites every document-identifier value
// in the parsed payload to its plain string form. A single-key object
// {"$oid": "<24 hex chars>"} collapses to the hex string; mappings and
// sequences are walked at any nesting depth. The operation is idempotent:
// an already-normalized tree is returned unchanged.
func NormalizeDocumentIDs(v interface{}) interface{} {
	switch value := v.(type) {
	case map[string]interface{}:
		if id, ok := documentID(value); ok {
			return id
		}
		for key, elem := range value {
			value[key] = NormalizeDocumentIDs(elem)
		}
		return value
	case []interface{}:
		for i, elem := range value {
			value[i] = NormalizeDocumentIDs(elem)
		}
		return value
	default:
		return v
	}
}

// documentID extracts the identifier from an extended-JSON object id
// wrapper, if m is one.
func documentID(m map[string]interface{}) (string, bool) {
	if len(m) != 1 {
		return "", false
	}
	raw, ok := m[objectIDKey]
	if !ok {
		return "", false
	}
	id, ok := raw.(string)
	if !ok || !objectIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}
