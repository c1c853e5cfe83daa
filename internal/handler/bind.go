package handler

import "bytes"

// isJSONArray reports whether the body starts a JSON array. Creation
// endpoints accept either a single object or an array of them.
func isJSONArray(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}
