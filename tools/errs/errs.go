package errs

import (
	"errors"
	"fmt"
)

// Error codes carried back to the client inside the "error" event.
const (
	CodeAuthentication = 401
	CodeValidation     = 422
	CodeNotFound       = 404
	CodePersistence    = 500
	CodeDuplicateConn  = 409
)

// CodeError is the error shape every failure inside the gateway collapses
// to before it is reported to a connection. Detail is for logs only and is
// never serialized to the client.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"-"`
}

func (e *CodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("[%d] %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Code, e.Msg, e.Detail)
}

func (e *CodeError) Is(target error) bool {
	var ce *CodeError
	if !errors.As(target, &ce) {
		return false
	}
	return ce.Code == e.Code
}

// WithDetail returns a copy carrying extra context for logging.
func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

func New(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

// Sentinel errors matching the gateway's failure taxonomy.
var (
	ErrAuthentication = New(CodeAuthentication, "authentication failed")
	ErrValidation     = New(CodeValidation, "validation failed")
	ErrNotFound       = New(CodeNotFound, "not found")
	ErrPersistence    = New(CodePersistence, "storage failure")
	ErrDuplicateConn  = New(CodeDuplicateConn, "connection already registered")
)

// AsCodeError normalizes err into a CodeError. Anything unrecognized is
// reported as a persistence-grade internal failure so raw driver errors
// never reach a client.
func AsCodeError(err error) *CodeError {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce
	}
	return ErrPersistence.WithDetail(err.Error())
}
