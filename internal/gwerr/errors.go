// Package gwerr defines the error taxonomy that every gateway component
// returns and the single place that taxonomy is mapped to an HTTP status
// and response envelope.
package gwerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a failure mode from the taxonomy. Components return
// errors carrying a Code; the dispatcher never re-derives status from
// ad-hoc string matching.
type Code string

const (
	CodeUnauthenticated          Code = "Unauthenticated"
	CodeForbidden                Code = "Forbidden"
	CodeNotFound                 Code = "NotFound"
	CodeRateLimited              Code = "RateLimited"
	CodeQuerySyntax              Code = "QuerySyntax"
	CodeInvalidField             Code = "InvalidField"
	CodeTypeMismatch             Code = "TypeMismatch"
	CodeMissingParameter         Code = "MissingParameter"
	CodeFileTooLarge             Code = "FileTooLarge"
	CodeExtensionDenied          Code = "ExtensionDenied"
	CodeFileExists               Code = "FileExists"
	CodeFileNotFound             Code = "FileNotFound"
	CodePathEscape               Code = "PathEscape"
	CodeCompositeTemplateError   Code = "CompositeTemplateError"
	CodeUpstreamBadGateway       Code = "UpstreamBadGateway"
	CodeUpstreamTimeout          Code = "UpstreamTimeout"
	CodeUpstreamUnavailable      Code = "UpstreamUnavailable"
	CodeDbTimeout                Code = "DbTimeout"
	CodeDbUnavailable            Code = "DbUnavailable"
	CodeRowConflict              Code = "RowConflict"
	CodeCacheUnavailable         Code = "CacheUnavailable"
	CodeEnvironmentMisconfigured Code = "EnvironmentMisconfigured"
	CodeSettingsDecryptUnavail   Code = "SettingsDecryptionUnavailable"
	CodeConfigInvalid            Code = "ConfigInvalid"
	CodeUnexpected               Code = "Unexpected"
)

// Error is the concrete error type every gateway component returns.
// Stage/Target mirror the audit/log context a caller needs without
// re-parsing the message; Remediation is operator-facing only and never
// reaches the HTTP response body.
type Error struct {
	Code        Code
	Stage       string
	Target      string
	Remediation string
	Status      int
	Detail      string
	Err         error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds a gateway error for code, deriving its HTTP status from the
// taxonomy unless status is overridden by a more specific constructor.
func New(code Code, stage, target string, err error) *Error {
	return &Error{Code: code, Stage: stage, Target: target, Status: statusFor(code), Err: err}
}

// WithDetail attaches an operator-visible (never user-visible) detail string.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// As reports the gwerr.Error carried by err, if any.
func As(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

func statusFor(code Code) int {
	switch code {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeFileNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeQuerySyntax, CodeInvalidField, CodeTypeMismatch, CodeMissingParameter,
		CodeFileTooLarge, CodeExtensionDenied, CodeFileExists, CodePathEscape,
		CodeCompositeTemplateError:
		return http.StatusBadRequest
	case CodeUpstreamTimeout, CodeDbTimeout:
		return http.StatusGatewayTimeout
	case CodeUpstreamUnavailable, CodeDbUnavailable, CodeCacheUnavailable:
		return http.StatusServiceUnavailable
	case CodeRowConflict:
		return http.StatusConflict
	case CodeEnvironmentMisconfigured, CodeSettingsDecryptUnavail, CodeConfigInvalid, CodeUnexpected:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Envelope is the JSON error body shape from spec §6/§7. Detail is only
// populated for operator-visible (5xx operator) classes, never for
// user-input classes, and never carries SQL text, connection strings or
// secret values.
type Envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Detail  string `json:"details,omitempty"`
}

// ToEnvelope renders err as the wire envelope + HTTP status to write.
func ToEnvelope(err error) (int, Envelope) {
	ge, ok := As(err)
	if !ok {
		return http.StatusInternalServerError, Envelope{Success: false, Error: string(CodeUnexpected)}
	}
	env := Envelope{Success: false, Error: string(ge.Code)}
	switch ge.Code {
	case CodeEnvironmentMisconfigured, CodeSettingsDecryptUnavail, CodeConfigInvalid:
		env.Detail = ge.Detail
	}
	return ge.Status, env
}
