/*-------------------------------------------------------------------------
 *
 * errors.go
 *    Error taxonomy shared by the workflow engine, tool client and
 *    OAuth bootstrap
 *
 * ConfigurationError and TerminalError end a plan. InvalidStateError and
 * ValidationError reject an operation and leave state untouched. Tool
 * level ProtocolError and TransportError live in the mcp package and are
 * absorbed into conversation content.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/reliability/errors.go
 *
 *-------------------------------------------------------------------------
 */

package reliability

import (
	"errors"
	"fmt"
)

/* Code is a stable machine readable error class */
type Code string

const (
	CodeNoAnthropic       Code = "NO_ANTHROPIC"
	CodeNoToolServer      Code = "NO_TOOL_SERVER"
	CodeUnknownHostedKind Code = "UNKNOWN_HOSTED_KIND"
	CodeUnknownProvider   Code = "UNKNOWN_OAUTH_PROVIDER"
	CodeBadConfig         Code = "BAD_CONFIG"

	CodeInvalidState      Code = "INVALID_STATE"
	CodeInvalidOAuthState Code = "INVALID_OAUTH_STATE"
	CodeNotFound          Code = "NOT_FOUND"

	CodeEmptyHistory  Code = "EMPTY_HISTORY"
	CodeEmptyFeedback Code = "EMPTY_FEEDBACK"
	CodeBadAction     Code = "BAD_ACTION"
	CodeBadInput      Code = "BAD_INPUT"

	CodeBackendExhausted Code = "BACKEND_EXHAUSTED"
	CodeTurnBudget       Code = "TURN_BUDGET"
	CodeBadToolSchema    Code = "BAD_TOOL_SCHEMA"
	CodeCancelled        Code = "CANCELLED"
	CodeInternal         Code = "INTERNAL"
)

/* ConfigurationError reports missing credentials or tool server config */
type ConfigurationError struct {
	Code    Code
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: code=%s, message='%s', error=%v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("configuration error: code=%s, message='%s'", e.Code, e.Message)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

/* InvalidStateError reports an operation attempted from the wrong status */
type InvalidStateError struct {
	Code    Code
	Message string
	Current string
}

func (e *InvalidStateError) Error() string {
	if e.Current != "" {
		return fmt.Sprintf("invalid state: code=%s, message='%s', current_status='%s'", e.Code, e.Message, e.Current)
	}
	return fmt.Sprintf("invalid state: code=%s, message='%s'", e.Code, e.Message)
}

/* ValidationError reports rejected caller input */
type ValidationError struct {
	Code    Code
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: code=%s, field='%s', message='%s'", e.Code, e.Field, e.Message)
}

/* NotFoundError reports a missing plan, server or authorization */
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: id='%s'", e.Resource, e.ID)
}

/* TerminalError reports an unrecoverable turn loop failure */
type TerminalError struct {
	Code    Code
	Message string
	Err     error
}

func (e *TerminalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *TerminalError) Unwrap() error { return e.Err }

/* NewConfigurationError creates a ConfigurationError */
func NewConfigurationError(code Code, message string, err error) *ConfigurationError {
	return &ConfigurationError{Code: code, Message: message, Err: err}
}

/* NewInvalidStateError creates an InvalidStateError */
func NewInvalidStateError(code Code, message, current string) *InvalidStateError {
	return &InvalidStateError{Code: code, Message: message, Current: current}
}

/* NewValidationError creates a ValidationError */
func NewValidationError(code Code, field, message string) *ValidationError {
	return &ValidationError{Code: code, Field: field, Message: message}
}

/* NewTerminalError creates a TerminalError */
func NewTerminalError(code Code, message string, err error) *TerminalError {
	return &TerminalError{Code: code, Message: message, Err: err}
}

/* CodeOf extracts the error class, or CodeInternal */
func CodeOf(err error) Code {
	var cfgErr *ConfigurationError
	var stateErr *InvalidStateError
	var valErr *ValidationError
	var termErr *TerminalError
	var nfErr *NotFoundError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return cfgErr.Code
	case errors.As(err, &stateErr):
		return stateErr.Code
	case errors.As(err, &valErr):
		return valErr.Code
	case errors.As(err, &termErr):
		return termErr.Code
	case errors.As(err, &nfErr):
		return CodeNotFound
	default:
		return CodeInternal
	}
}

/* IsInvalidState reports whether err is an InvalidStateError */
func IsInvalidState(err error) bool {
	var stateErr *InvalidStateError
	return errors.As(err, &stateErr)
}

/* IsConfiguration reports whether err is a ConfigurationError */
func IsConfiguration(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

/* IsValidation reports whether err is a ValidationError */
func IsValidation(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}

/* IsNotFound reports whether err is a NotFoundError */
func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}
