package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type Code codes.Code

const (
	CodeInvalidArgument    = Code(codes.InvalidArgument)
	CodeNotFound           = Code(codes.NotFound)
	CodeAlreadyExists      = Code(codes.AlreadyExists)
	CodeFailedPrecondition = Code(codes.FailedPrecondition)
	CodeResourceExhausted  = Code(codes.ResourceExhausted)
	CodeUnavailable        = Code(codes.Unavailable)
	CodeInternal           = Code(codes.Internal)
)

var code2http = map[Code]int{
	CodeInvalidArgument:    http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeAlreadyExists:      http.StatusConflict,
	CodeFailedPrecondition: http.StatusConflict,
	CodeResourceExhausted:  http.StatusServiceUnavailable,
	CodeUnavailable:        http.StatusBadGateway,
	CodeInternal:           http.StatusInternalServerError,
}

// Error is an error carrying a status code that both the gRPC and the HTTP
// layers know how to report. Details name the game, player or quiz the
// failure is about and travel with the status as a google.protobuf.Struct.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: codes.Code(code).String(),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %s, message: %s", codes.Code(e.Code), e.Message)
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) GRPCStatus() *status.Status {
	st := status.New(codes.Code(e.Code), e.Message)
	if len(e.Details) == 0 {
		return st
	}

	d, err := structpb.NewStruct(e.Details)
	if err != nil {
		return st
	}

	if withDetails, err := st.WithDetails(d); err == nil {
		return withDetails
	}
	return st
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

// Convert returns the *Error in err's chain, or wraps err as an internal error.
func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

// FromStatus rebuilds an *Error from an error returned by a gRPC call.
// Errors without a status become internal errors.
func FromStatus(err error) *Error {
	st, ok := status.FromError(err)
	if !ok {
		return Internal(err)
	}

	e := New(Code(st.Code()), WithMessagef("%s", st.Message()))
	for _, d := range st.Details() {
		if s, ok := d.(*structpb.Struct); ok {
			for k, v := range s.AsMap() {
				WithDetail(k, v).apply(e)
			}
		}
	}

	return e
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
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

// WithDetail attaches a key/value pair. Values must be representable in a
// google.protobuf.Struct: strings, bools, numbers, or nested maps and slices.
func WithDetail(key string, value any) Option {
	return optionFunc(func(e *Error) {
		if e.Details == nil {
			e.Details = make(map[string]any)
		}
		e.Details[key] = value
	})
}
