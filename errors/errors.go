package errors

import (
	stderrors "errors"
	"net/http"
)

/*
* Error codes are intended to convey detailed errors internally and to clients.
* These should be combined with the appropriate HTTP status code, but are not
* intended to supercede correct HTTP responses.
*
* Every failure that can occur while serving a read belongs to exactly one
* Kind. Handlers must not invent other outcomes: if a Kind is added here it
* needs an HTTP status in HTTPStatus below and a test.
*
 */

// Kind is the closed set of failure categories
type Kind uint8

const (
	// Unknown is the zero value and is never produced deliberately
	Unknown Kind = iota

	// CacheUnavailable means no cache connection could be acquired. The
	// request carries on without the cache.
	CacheUnavailable
	// CacheWriteFailure means the write-back after a successful store read
	// failed. The response is already decided.
	CacheWriteFailure
	// CacheDecodeFailure means a cache hit did not decode to a collection.
	CacheDecodeFailure
	// ServiceDegraded means the circuit breaker refused the store call.
	ServiceDegraded
	// StoreFailure means the store query itself failed.
	StoreFailure
	// NotFound means the requested item does not exist in the store.
	NotFound
	// InvalidRequest means the request could not be understood.
	InvalidRequest
)

// Error codes sent to clients in the errorCode field
const (
	// HTTP 400 Bad Request.
	// A parameter was not of the expected type.
	UnexpectedType ErrCode = 3
	// A parameter was outside the expected range.
	OutOfRange ErrCode = 4

	// HTTP 404 Not Found.
	ItemNotFound ErrCode = 14

	// HTTP 500 Internal Server Error.
	// The store could not answer the query.
	StoreError ErrCode = 30
	// A cached collection could not be read back.
	CorruptCache ErrCode = 31

	// HTTP 503 Service Unavailable.
	// The store is being protected by the circuit breaker.
	Degraded ErrCode = 32
)

// ErrCode is sent to clients alongside the HTTP status
type ErrCode uint8

// Sentinels for errors.Is comparisons against a Kind
var (
	ErrCacheUnavailable   = &PantryError{Kind: CacheUnavailable, ErrorMessage: "cache unavailable"}
	ErrCacheWriteFailure  = &PantryError{Kind: CacheWriteFailure, ErrorMessage: "cache write failed"}
	ErrCacheDecodeFailure = &PantryError{Kind: CacheDecodeFailure, ErrorMessage: "cache entry could not be decoded"}
	ErrServiceDegraded    = &PantryError{Kind: ServiceDegraded, ErrorMessage: "service degraded"}
	ErrStoreFailure       = &PantryError{Kind: StoreFailure, ErrorMessage: "store query failed"}
	ErrNotFound           = &PantryError{Kind: NotFound, ErrorMessage: "not found"}
	ErrInvalidRequest     = &PantryError{Kind: InvalidRequest, ErrorMessage: "invalid request"}
)

// PantryError implements the Error interface.
type PantryError struct {
	Function     string  `json:"-"`
	Kind         Kind    `json:"-"`
	ErrorCode    ErrCode `json:"errorCode"`
	ErrorMessage string  `json:"errorDetail"`
	Err          error   `json:"-"`
}

func (e *PantryError) Error() string {
	if e.Err != nil {
		return e.ErrorMessage + ": " + e.Err.Error()
	}
	return e.ErrorMessage
}

// Unwrap exposes the underlying cause
func (e *PantryError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a PantryError of the same Kind, so that
// errors.Is(err, ErrServiceDegraded) works for any wrapped instance.
func (e *PantryError) Is(target error) bool {
	t, ok := target.(*PantryError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// HTTPStatus is the status a handler responds with for this error
func (e *PantryError) HTTPStatus() int {
	return StatusFor(e.Kind)
}

// StatusFor maps a Kind to the HTTP status a handler must respond with
func StatusFor(k Kind) int {
	switch k {
	case CacheUnavailable, CacheWriteFailure:
		// Never fatal on their own
		return http.StatusOK
	case ServiceDegraded:
		return http.StatusServiceUnavailable
	case NotFound:
		return http.StatusNotFound
	case InvalidRequest:
		return http.StatusBadRequest
	case CacheDecodeFailure, StoreFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(k Kind) ErrCode {
	switch k {
	case CacheDecodeFailure:
		return CorruptCache
	case ServiceDegraded:
		return Degraded
	case StoreFailure:
		return StoreError
	case NotFound:
		return ItemNotFound
	case InvalidRequest:
		return UnexpectedType
	default:
		return 0
	}
}

// New returns a PantryError of the given kind carrying the default error
// code for that kind
func New(function string, kind Kind, errMessage string, cause error) error {
	return NewWithCode(function, kind, codeFor(kind), errMessage, cause)
}

// NewWithCode returns a PantryError with a specific error code
func NewWithCode(
	function string,
	kind Kind,
	code ErrCode,
	errMessage string,
	cause error,
) error {
	return &PantryError{
		Function:     function,
		Kind:         kind,
		ErrorCode:    code,
		ErrorMessage: errMessage,
		Err:          cause,
	}
}

// KindOf returns the Kind carried by err, or Unknown
func KindOf(err error) Kind {
	var pe *PantryError
	if stderrors.As(err, &pe) {
		return pe.Kind
	}
	return Unknown
}
