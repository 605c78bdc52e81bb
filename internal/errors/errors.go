package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code codes.Code

const (
	CodeInvalidArgument    = Code(codes.InvalidArgument)
	CodeNotFound           = Code(codes.NotFound)
	CodeFailedPrecondition = Code(codes.FailedPrecondition)
	CodeUnavailable        = Code(codes.Unavailable)
	CodeDeadlineExceeded   = Code(codes.DeadlineExceeded)
	CodeInternal           = Code(codes.Internal)
)

// Kind tags an error with the failure it represents, independently of the transport.
type Kind string

const (
	KindInvalidArgument   Kind = "InvalidArgument"
	KindNotFound          Kind = "NotFound"
	KindConfigMissing     Kind = "ConfigMissing"
	KindRosterUnavailable Kind = "RosterUnavailable"
	KindTimeout           Kind = "Timeout"
	KindInternal          Kind = "Internal"
)

var code2http = map[Code]int{
	CodeInvalidArgument:    http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeFailedPrecondition: http.StatusInternalServerError,
	CodeUnavailable:        http.StatusServiceUnavailable,
	CodeDeadlineExceeded:   http.StatusGatewayTimeout,
	CodeInternal:           http.StatusInternalServerError,
}

var code2kind = map[Code]Kind{
	CodeInvalidArgument:    KindInvalidArgument,
	CodeNotFound:           KindNotFound,
	CodeFailedPrecondition: KindConfigMissing,
	CodeUnavailable:        KindRosterUnavailable,
	CodeDeadlineExceeded:   KindTimeout,
	CodeInternal:           KindInternal,
}

type Error struct {
	Code    Code   `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Kind:    code2kind[code],
		Message: codes.Code(code).String(),
	}
	if e.Kind == "" {
		e.Kind = KindInternal
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, kind: %s, message: %s", e.Code, e.Kind, e.Message)
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) GRPCStatus() *status.Status {
	return status.New(codes.Code(e.Code), e.Message)
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

// Convert returns the *Error carried by err. A caller that stopped waiting becomes a Timeout,
// anything else an Internal error.
func Convert(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return New(CodeDeadlineExceeded,
			WithMessagef("request cancelled or timed out"),
			WithCause(err),
		)
	}

	return Internal(err)
}

// Is reports whether err carries an *Error of the given kind.
func Is(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

func ConfigMissing(format string, args ...any) *Error {
	return New(CodeFailedPrecondition, WithMessagef(format, args...))
}

func RosterUnavailable(err error) *Error {
	return New(CodeUnavailable,
		WithMessagef("roster unavailable"),
		WithCause(err),
	)
}

func Timeout(err error) *Error {
	return New(CodeDeadlineExceeded,
		WithMessagef("leaderboard computation timed out"),
		WithCause(err),
	)
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}

func WithKind(k Kind) Option {
	return optionFunc(func(e *Error) {
		e.Kind = k
	})
}
