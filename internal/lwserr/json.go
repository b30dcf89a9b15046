package lwserr

import "net/http"

// JCode identifies a JSON decoding failure, distinct from the domain
// Code table above. These all map to HTTP 400 per spec.md §6 ("JSON
// parse error => 400").
type JCode int

const (
	JInvalid JCode = iota
	JBufferOverflow
	JExpectedArray
	JExpectedBool
	JExpectedDouble
	JExpectedFloat
	JExpectedObject
	JExpectedString
	JExpectedUnsigned
	JInvalidHex
	JMissingField
	JOverflow
	JUnexpectedField
	JUnderflow
)

var jCodeNames = map[JCode]string{
	JInvalid:          "invalid",
	JBufferOverflow:   "buffer_overflow",
	JExpectedArray:    "expected_array",
	JExpectedBool:     "expected_bool",
	JExpectedDouble:   "expected_double",
	JExpectedFloat:    "expected_float",
	JExpectedObject:   "expected_object",
	JExpectedString:   "expected_string",
	JExpectedUnsigned: "expected_unsigned",
	JInvalidHex:       "invalid_hex",
	JMissingField:     "missing_field",
	JOverflow:         "overflow",
	JUnexpectedField:  "unexpected_field",
	JUnderflow:        "underflow",
}

// JSONError is the error type for request-body decoding failures, kept
// distinct from *Error since it occurs before any account/auth context
// exists to attach a domain Code to.
type JSONError struct {
	Code  JCode
	Field string
}

func NewJSONError(code JCode, field string) *JSONError {
	return &JSONError{Code: code, Field: field}
}

func (e *JSONError) Error() string {
	name := jCodeNames[e.Code]
	if e.Field != "" {
		return "lws: json: " + name + ": " + e.Field
	}
	return "lws: json: " + name
}

// HTTPStatus is always 400 for a JSONError, per spec.md §6.
func (e *JSONError) HTTPStatus() int { return http.StatusBadRequest }
