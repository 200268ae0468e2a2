package errors

import "fmt"

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

// Store errors

type ErrStoreOpen struct {
	Path string
	Err  error
}

func (e *ErrStoreOpen) Error() string {
	return fmt.Sprintf("failed to open store %s: %v", e.Path, e.Err)
}

func (e *ErrStoreOpen) Unwrap() error {
	return e.Err
}

type ErrStoreMigration struct {
	Version int
	Err     error
}

func (e *ErrStoreMigration) Error() string {
	return fmt.Sprintf("store migration %d failed: %v", e.Version, e.Err)
}

func (e *ErrStoreMigration) Unwrap() error {
	return e.Err
}

type ErrStoreQuery struct {
	Operation string
	Err       error
}

func (e *ErrStoreQuery) Error() string {
	return fmt.Sprintf("store operation %s failed: %v", e.Operation, e.Err)
}

func (e *ErrStoreQuery) Unwrap() error {
	return e.Err
}

// Credential validation errors

type ErrCredentialValidation struct {
	Reason string
}

func (e *ErrCredentialValidation) Error() string {
	return fmt.Sprintf("invalid session credential: %s", e.Reason)
}

type ErrDuplicateCredential struct {
	AccountName string
}

func (e *ErrDuplicateCredential) Error() string {
	if e.AccountName != "" {
		return fmt.Sprintf("session credential already registered for account %q", e.AccountName)
	}
	return "session credential already registered"
}

type ErrAccountNotFound struct {
	ID string
}

func (e *ErrAccountNotFound) Error() string {
	return fmt.Sprintf("account not found: %s", e.ID)
}

// Token lifecycle errors

type ErrNoToken struct{}

func (e *ErrNoToken) Error() string {
	return "no OAuth token stored"
}

type ErrNoRefreshToken struct{}

func (e *ErrNoRefreshToken) Error() string {
	return "stored token has no refresh_token"
}

type ErrRefreshRejected struct {
	StatusCode int
	Body       string
}

func (e *ErrRefreshRejected) Error() string {
	return fmt.Sprintf("token endpoint rejected refresh: %d %s", e.StatusCode, e.Body)
}

type ErrExchangeRejected struct {
	StatusCode int
	Body       string
}

func (e *ErrExchangeRejected) Error() string {
	return fmt.Sprintf("token endpoint rejected code exchange: %d %s", e.StatusCode, e.Body)
}

type ErrMissingParams struct {
	What string
}

func (e *ErrMissingParams) Error() string {
	return fmt.Sprintf("missing required parameters: %s", e.What)
}

// Dispatch errors

type ErrBadRequest struct {
	Reason string
}

func (e *ErrBadRequest) Error() string {
	return fmt.Sprintf("invalid relay request: %s", e.Reason)
}

type ErrPoolEmpty struct{}

func (e *ErrPoolEmpty) Error() string {
	return "no session accounts available"
}

type ErrPoolExhausted struct {
	Attempts int
	LastErr  string
}

func (e *ErrPoolExhausted) Error() string {
	if e.LastErr != "" {
		return fmt.Sprintf("all %d session attempts failed, last error: %s", e.Attempts, e.LastErr)
	}
	return fmt.Sprintf("all %d session attempts failed", e.Attempts)
}

type ErrUpstream struct {
	StatusCode int
	Body       string
}

func (e *ErrUpstream) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
}

// Server errors

type ErrServerStart struct {
	Addr string
	Err  error
}

func (e *ErrServerStart) Error() string {
	return fmt.Sprintf("failed to start server on %s: %v", e.Addr, e.Err)
}

func (e *ErrServerStart) Unwrap() error {
	return e.Err
}
