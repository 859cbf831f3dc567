package protocol

import "testing"

func TestErrorMessageRoundTrip(t *testing.T) {
	tests := []*ErrorMessage{
		NewError(ErrInvalidTree, "bad tree"),
		NewFatalError(ErrSessionExpired, "gone"),
		NewError(ErrReconcileFailed, ""),
	}
	for _, em := range tests {
		got, err := DecodeErrorMessage(EncodeErrorMessage(em))
		if err != nil {
			t.Fatalf("DecodeErrorMessage() error = %v", err)
		}
		if *got != *em {
			t.Errorf("got %+v, want %+v", got, em)
		}
	}
}

func TestErrorMessageError(t *testing.T) {
	if got := NewError(ErrNotFound, "snapshot").Error(); got != "NotFound: snapshot" {
		t.Errorf("Error() = %q", got)
	}
	em := NewFatalError(ErrServerError, "boom")
	if got := em.Error(); got != "fatal: ServerError: boom" {
		t.Errorf("Error() = %q", got)
	}
	if !em.IsFatal() {
		t.Error("IsFatal() = false")
	}
}

func TestErrorCodeString(t *testing.T) {
	tests := map[ErrorCode]string{
		ErrUnknown:         "Unknown",
		ErrInvalidFrame:    "InvalidFrame",
		ErrInvalidTree:     "InvalidTree",
		ErrReconcileFailed: "ReconcileFailed",
		ErrSessionExpired:  "SessionExpired",
		ErrServerError:     "ServerError",
		ErrNotFound:        "NotFound",
		ErrValidation:      "Validation",
		ErrorCode(0x7777):  "Unknown",
	}
	for code, want := range tests {
		if got := code.String(); got != want {
			t.Errorf("ErrorCode(%#x).String() = %q, want %q", uint16(code), got, want)
		}
	}
}
