// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// APIError is an application-level failure reported by the server.
// Callers extract it with errors.As:
//
//	var apiErr *messaging.APIError
//	if errors.As(err, &apiErr) {
//	    log.Printf("server said %s: %s", apiErr.Type, apiErr.Body)
//	}
type APIError struct {
	// Type is the server's error type ("notFound", "Unauthorized", ...).
	// Empty when the body carried none.
	Type string

	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Body is the raw response body.
	Body []byte
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("meower: api error (%d): %s", e.StatusCode, truncate(e.Body))
	}
	return fmt.Sprintf("meower: api error %s (%d)", e.Type, e.StatusCode)
}

// Error types the server is known to send.
const (
	ErrTypeNotFound           = "notFound"
	ErrTypeUnauthorized       = "Unauthorized"
	ErrTypeInvalidCredentials = "invalidCredentials"
	ErrTypeTooManyRequests    = "tooManyRequests"
	ErrTypeMissingPermissions = "missingPermissions"
	ErrTypeInternal           = "Internal"
)

// IsAPIError reports whether err is an *APIError of the given type.
func IsAPIError(err error, errorType string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Type == errorType
	}
	return false
}

// ShapeError reports a record that does not have the structure of the
// entity it was supposed to be.
type ShapeError struct {
	// Entity names the expected type: "chat", "post", "user", ...
	Entity string

	// Field is the first missing or mistyped field, when known.
	Field string

	// Body is the offending record.
	Body []byte
}

func (e *ShapeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("meower: record is not a %s: %s", e.Entity, truncate(e.Body))
	}
	return fmt.Sprintf("meower: record is not a %s: field %q missing or mistyped", e.Entity, e.Field)
}

// IsShapeError reports whether err is a *ShapeError.
func IsShapeError(err error) bool {
	var shapeErr *ShapeError
	return errors.As(err, &shapeErr)
}

// shapeError builds a ShapeError from a decode failure, naming the
// offending field when encoding/json reports one.
func shapeError(entity string, body []byte, err error) *ShapeError {
	shape := &ShapeError{Entity: entity, Body: bytes.Clone(body)}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		shape.Field = typeErr.Field
	}
	return shape
}

func missingField(entity, field string, body []byte) *ShapeError {
	return &ShapeError{Entity: entity, Field: field, Body: bytes.Clone(body)}
}

// errorFlagged reports whether body is a JSON object whose "error" field
// is truthy: true, a non-empty string, a non-zero number, or any object
// or array. Bodies that are not JSON objects are never flagged.
func errorFlagged(body []byte) (flagged bool, errorType string) {
	var envelope struct {
		Error json.RawMessage `json:"error"`
		Type  json.RawMessage `json:"type"`
	}
	if json.Unmarshal(body, &envelope) != nil {
		return false, ""
	}
	// Resource bodies carry a numeric "type" too; only strings name an
	// error type.
	json.Unmarshal(envelope.Type, &errorType)
	return truthy(envelope.Error), errorType
}

func truthy(raw json.RawMessage) bool {
	value := bytes.TrimSpace(raw)
	switch string(value) {
	case "", "null", "false", `""`:
		return false
	}
	if number, err := strconv.ParseFloat(string(value), 64); err == nil {
		return number != 0
	}
	return true
}

func truncate(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
