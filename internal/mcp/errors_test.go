package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/fastfind/filepick/internal/errors"
)

func TestMapError_NilError(t *testing.T) {
	// Given: nil error
	var err error = nil

	// When: mapping the error
	result := MapError(err)

	// Then: returns nil
	assert.Nil(t, result)
}

func TestMapError_StateError(t *testing.T) {
	// Given: a StateError, as returned by a call sequence violation
	err := amerrors.NewStateError("search before init", nil)

	// When: mapping the error
	result := MapError(err)

	// Then: returns the not-initialized MCP code
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeNotInitialized, result.Code)
}

func TestMapError_PopulatesDataWithFormattedError(t *testing.T) {
	// Given: a StateError
	err := amerrors.NewStateError("search before init", nil)

	// When: mapping the error
	result := MapError(err)

	// Then: Data carries the FormatJSON encoding of the same error
	require.NotNil(t, result)
	require.NotEmpty(t, result.Data)
	want, jsonErr := amerrors.FormatJSON(err)
	require.NoError(t, jsonErr)
	assert.JSONEq(t, string(want), string(result.Data))
}

func TestMapError_GitUnavailable(t *testing.T) {
	// Given: a GitUnavailable error
	err := amerrors.NewGitUnavailable("git binary not found", nil)

	// When: mapping the error
	result := MapError(err)

	// Then: returns the git-unavailable MCP code
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeGitUnavailable, result.Code)
}

func TestMapError_QueryError(t *testing.T) {
	// Given: a QueryError, as returned for a malformed search request
	err := amerrors.NewQueryError("max_results must be non-negative", nil)

	// When: mapping the error
	result := MapError(err)

	// Then: returns the invalid-params MCP code
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeInvalidParams, result.Code)
}

func TestMapError_OtherFilepickErrorFallsBackToInternal(t *testing.T) {
	// Given: a category without a dedicated MCP code (e.g. scan/init/persist)
	err := amerrors.NewScanError("base path removed mid-walk", nil)

	// When: mapping the error
	result := MapError(err)

	// Then: returns the generic internal-error MCP code
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeInternalError, result.Code)
}

func TestMapError_WithSuggestionIsAppended(t *testing.T) {
	// Given: a FilepickError carrying an actionable suggestion
	err := amerrors.NewStateError("engine not initialized", nil).WithSuggestion("call init_file_picker first")

	// When: mapping the error
	result := MapError(err)

	// Then: the message includes both the error text and the suggestion
	require.NotNil(t, result)
	assert.Contains(t, result.Message, "engine not initialized")
	assert.Contains(t, result.Message, "call init_file_picker first")
}

func TestMapError_DeadlineExceeded(t *testing.T) {
	// Given: deadline exceeded error
	err := context.DeadlineExceeded

	// When: mapping the error
	result := MapError(err)

	// Then: returns timeout error
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeTimeout, result.Code)
	assert.Contains(t, result.Message, "timed out")
}

func TestMapError_Canceled(t *testing.T) {
	// Given: context canceled error
	err := context.Canceled

	// When: mapping the error
	result := MapError(err)

	// Then: returns timeout error
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeTimeout, result.Code)
}

func TestMapError_ToolNotFound(t *testing.T) {
	// Given: tool not found error
	err := ErrToolNotFound

	// When: mapping the error
	result := MapError(err)

	// Then: returns method not found error
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeMethodNotFound, result.Code)
}

func TestMapError_InvalidParams(t *testing.T) {
	// Given: invalid params error
	err := ErrInvalidParams

	// When: mapping the error
	result := MapError(err)

	// Then: returns invalid params error
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeInvalidParams, result.Code)
}

func TestMapError_UnknownErrorFallsBackToInternal(t *testing.T) {
	// Given: a plain error with no special handling
	err := errors.New("boom")

	// When: mapping the error
	result := MapError(err)

	// Then: returns internal error with the original message
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeInternalError, result.Code)
	assert.Equal(t, "boom", result.Message)
}

func TestNewInvalidParamsError(t *testing.T) {
	// Given/When: building an invalid-params error directly
	result := NewInvalidParamsError("query parameter is required")

	// Then: the code and message round-trip
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeInvalidParams, result.Code)
	assert.Equal(t, "query parameter is required", result.Message)
}

func TestNewMethodNotFoundError(t *testing.T) {
	// Given/When: building a method-not-found error directly
	result := NewMethodNotFoundError("does_not_exist")

	// Then: the code is set and the message names the tool
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeMethodNotFound, result.Code)
	assert.Contains(t, result.Message, "does_not_exist")
}

func TestMCPError_ErrorString(t *testing.T) {
	// Given: an MCPError
	err := &MCPError{Code: ErrCodeInternalError, Message: "something failed"}

	// When: formatting it as an error
	s := err.Error()

	// Then: both code and message appear
	assert.Contains(t, s, "-32603")
	assert.Contains(t, s, "something failed")
}
