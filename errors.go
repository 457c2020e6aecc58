package main

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DomainError so callers can branch on category
// without string matching. Mirrors the failure taxonomy partitioning used
// across the rail adapters and the processor.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindNotFound         ErrorKind = "not_found"
	KindAuth             ErrorKind = "auth"
	KindInsufficientFund ErrorKind = "insufficient_funds"
	KindConflict         ErrorKind = "conflict"
	KindExternalService  ErrorKind = "external_service"
	KindTimeout          ErrorKind = "timeout"
	KindCryptography     ErrorKind = "cryptography"
	KindInternal         ErrorKind = "internal"
)

// DomainError is the error type returned by every exported function in this
// module. Like RPCError in the ancestor RPC layer, its message is considered
// safe to surface to a caller; wrap an internal error with %w to keep the
// chain walkable while still classifying it under a stable Kind.
type DomainError struct {
	Kind ErrorKind
	err  error
}

func newDomainErrorf(kind ErrorKind, format string, args ...any) DomainError {
	return DomainError{Kind: kind, err: fmt.Errorf(format, args...)}
}

func ValidationErrorf(format string, args ...any) DomainError {
	return newDomainErrorf(KindValidation, format, args...)
}

func NotFoundErrorf(format string, args ...any) DomainError {
	return newDomainErrorf(KindNotFound, format, args...)
}

func AuthErrorf(format string, args ...any) DomainError {
	return newDomainErrorf(KindAuth, format, args...)
}

func InsufficientFundsErrorf(format string, args ...any) DomainError {
	return newDomainErrorf(KindInsufficientFund, format, args...)
}

func ConflictErrorf(format string, args ...any) DomainError {
	return newDomainErrorf(KindConflict, format, args...)
}

func ExternalServiceErrorf(format string, args ...any) DomainError {
	return newDomainErrorf(KindExternalService, format, args...)
}

func TimeoutErrorf(format string, args ...any) DomainError {
	return newDomainErrorf(KindTimeout, format, args...)
}

func CryptographyErrorf(format string, args ...any) DomainError {
	return newDomainErrorf(KindCryptography, format, args...)
}

func InternalErrorf(format string, args ...any) DomainError {
	return newDomainErrorf(KindInternal, format, args...)
}

func (e DomainError) Error() string {
	return e.err.Error()
}

func (e DomainError) Unwrap() error {
	return e.err
}

// Is lets errors.Is match two DomainErrors by Kind, since the wrapped
// messages are rarely identical once %w has been used to add context.
func (e DomainError) Is(target error) bool {
	var de DomainError
	if errors.As(target, &de) {
		return de.Kind == e.Kind
	}
	return false
}

func KindOf(err error) ErrorKind {
	var de DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
