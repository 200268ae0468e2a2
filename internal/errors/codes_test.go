package errors

import (
	"fmt"
	"testing"
)

func TestCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		want Code
	}{
		{&ErrCredentialValidation{Reason: "too short"}, CodeAccountInvalidCredential},
		{&ErrDuplicateCredential{AccountName: "A"}, CodeAccountDuplicate},
		{&ErrAccountNotFound{ID: "x"}, CodeAccountNotFound},
		{&ErrPoolEmpty{}, CodeAccountPoolExhausted},
		{&ErrPoolExhausted{Attempts: 3}, CodeAccountPoolExhausted},
		{&ErrNoToken{}, CodeAuthNoToken},
		{&ErrNoRefreshToken{}, CodeAuthNoToken},
		{&ErrRefreshRejected{StatusCode: 400}, CodeAuthRefreshFailed},
		{&ErrExchangeRejected{StatusCode: 400}, CodeAuthExchangeFailed},
		{&ErrMissingParams{What: "code"}, CodeAuthMissingParams},
		{&ErrBadRequest{Reason: "empty"}, CodeRelayBadRequest},
		{&ErrUpstream{StatusCode: 500}, CodeRelayUpstreamFailed},
		{&ErrStoreOpen{Path: "/x"}, CodeSystemStorage},
		{&ErrStoreQuery{Operation: "get"}, CodeSystemStorage},
		{fmt.Errorf("anything else"), CodeSystemInternal},
	}

	for _, tt := range tests {
		if got := CodeFor(tt.err); got != tt.want {
			t.Errorf("CodeFor(%T) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestPoolExhaustedMessage(t *testing.T) {
	err := &ErrPoolExhausted{Attempts: 3, LastErr: "rate_limited"}
	want := "all 3 session attempts failed, last error: rate_limited"
	if err.Error() != want {
		t.Errorf("unexpected message: %q", err.Error())
	}

	bare := &ErrPoolExhausted{Attempts: 2}
	if bare.Error() != "all 2 session attempts failed" {
		t.Errorf("unexpected message: %q", bare.Error())
	}
}
