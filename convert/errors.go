package convert

import (
	"context"
	"errors"

	errorslib "github.com/goliatone/go-errors"
)

// ErrorKind defines conversion error kinds.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindWorkbook   ErrorKind = "workbook"
	KindSheet      ErrorKind = "sheet"
	KindEngine     ErrorKind = "engine"
	KindNotFound   ErrorKind = "not_found"
	KindCanceled   ErrorKind = "canceled"
	KindInternal   ErrorKind = "internal"
)

// ConvertError wraps errors with a kind.
type ConvertError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *ConvertError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *ConvertError) Unwrap() error {
	return e.Err
}

// NewError creates a new conversion error.
func NewError(kind ErrorKind, msg string, err error) *ConvertError {
	return &ConvertError{Kind: kind, Msg: msg, Err: err}
}

// AsGoError maps an error into a go-errors error.
func AsGoError(err error) *errorslib.Error {
	if err == nil {
		return nil
	}

	var ge *errorslib.Error
	if errors.As(err, &ge) {
		return ge
	}

	kind := KindInternal
	msg := err.Error()

	var convErr *ConvertError
	if errors.As(err, &convErr) {
		kind = convErr.Kind
		if convErr.Msg != "" {
			msg = convErr.Msg
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = KindCanceled
	}

	switch kind {
	case KindValidation:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode("validation")
	case KindWorkbook:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("workbook")
	case KindSheet:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("sheet")
	case KindEngine:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("engine")
	case KindNotFound:
		return errorslib.New(msg, errorslib.CategoryNotFound).WithTextCode("not_found")
	case KindCanceled:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("canceled")
	default:
		return errorslib.New(msg, errorslib.CategoryInternal).WithTextCode("internal")
	}
}

// KindFromError maps an error to its conversion error kind.
func KindFromError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var convErr *ConvertError
	if errors.As(err, &convErr) {
		return convErr.Kind
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}

	return KindInternal
}
