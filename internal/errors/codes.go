package errors

// Code is a stable numeric error code surfaced in API error envelopes.
// Codes are grouped by subsystem: 1xxx auth, 2xxx relay, 3xxx accounts,
// 9xxx system. Existing values must never be renumbered.
type Code int

const (
	CodeAuthMissingParams  Code = 1001
	CodeAuthExchangeFailed Code = 1002
	CodeAuthNoToken        Code = 1003
	CodeAuthTokenExpired   Code = 1004
	CodeAuthRefreshFailed  Code = 1008

	CodeRelayUpstreamFailed Code = 2001
	CodeRelayBadRequest     Code = 2002

	CodeAccountInvalidCredential Code = 3001
	CodeAccountDuplicate         Code = 3002
	CodeAccountNotFound          Code = 3003
	CodeAccountPoolExhausted     Code = 3004

	CodeSystemInternal Code = 9001
	CodeSystemNotFound Code = 9404
	CodeSystemStorage  Code = 9005
)

// CodeFor maps an error to its stable API code.
func CodeFor(err error) Code {
	switch err.(type) {
	case *ErrCredentialValidation:
		return CodeAccountInvalidCredential
	case *ErrDuplicateCredential:
		return CodeAccountDuplicate
	case *ErrAccountNotFound:
		return CodeAccountNotFound
	case *ErrPoolEmpty, *ErrPoolExhausted:
		return CodeAccountPoolExhausted
	case *ErrNoToken, *ErrNoRefreshToken:
		return CodeAuthNoToken
	case *ErrRefreshRejected:
		return CodeAuthRefreshFailed
	case *ErrExchangeRejected:
		return CodeAuthExchangeFailed
	case *ErrUpstream:
		return CodeRelayUpstreamFailed
	case *ErrBadRequest:
		return CodeRelayBadRequest
	case *ErrMissingParams:
		return CodeAuthMissingParams
	case *ErrStoreOpen, *ErrStoreMigration, *ErrStoreQuery:
		return CodeSystemStorage
	default:
		return CodeSystemInternal
	}
}
