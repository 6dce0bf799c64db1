// Package mcp implements the Model Context Protocol server for filepick,
// exposing the Coordinator's search, access-tracking, and scan-progress
// operations as tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amerrors "github.com/fastfind/filepick/internal/errors"
)

// Custom filepick MCP error codes, in the same band the upstream
// protocol reserves for server-defined errors.
const (
	ErrCodeNotInitialized = -32001
	ErrCodeGitUnavailable = -32002
	ErrCodeTimeout        = -32003

	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

var (
	ErrToolNotFound  = errors.New("tool not found")
	ErrInvalidParams = errors.New("invalid parameters")
)

// MCPError represents an MCP protocol error with code and message.
// Data carries the JSON-RPC "data" member: a machine-readable dump of
// the underlying *errors.FilepickError (category, retryable, details)
// for clients that want more than the human-readable Message.
type MCPError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// MapError converts an internal error into an MCPError, mapping
// *errors.FilepickError categories to protocol-appropriate codes.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var ferr *amerrors.FilepickError
	if errors.As(err, &ferr) {
		mapped := mapFilepickError(ferr)
		if data, jsonErr := amerrors.FormatJSON(ferr); jsonErr == nil {
			mapped.Data = data
		}
		return mapped
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "request timed out"}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "tool not found"}
	case errors.Is(err, ErrInvalidParams):
		return &MCPError{Code: ErrCodeInvalidParams, Message: "invalid parameters"}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
	}
}

func mapFilepickError(ae *amerrors.FilepickError) *MCPError {
	message := ae.Message
	if ae.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ae.Message, ae.Suggestion)
	}

	switch ae.Category {
	case amerrors.CategoryState:
		return &MCPError{Code: ErrCodeNotInitialized, Message: message}
	case amerrors.CategoryGit:
		return &MCPError{Code: ErrCodeGitUnavailable, Message: message}
	case amerrors.CategoryQuery:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}

// NewInvalidParamsError builds an invalid-params MCPError with msg.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError builds a method-not-found MCPError for name.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("tool %q not found", name)}
}
