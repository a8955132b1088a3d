package aggregates

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Code: CodeInsufficientResources, Op: OpDebit, Message: "insufficient project_voucher"}, "Billing.Wallet.Debit: insufficient project_voucher (insufficient_resources)"},
		{&Error{Code: CodeNotFound, Op: OpDebit}, "Billing.Wallet.Debit (not_found)"},
		{&Error{Code: CodeValidation, Message: "missing user_id"}, "missing user_id (validation)"},
		{&Error{Code: CodeInternal}, "(internal)"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Fatalf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestCodeSurvivesWrapping(t *testing.T) {
	cause := errors.New("database is locked")
	err := fmt.Errorf("credit bundle: %w", Wrap(CodeRetryable, OpCredit, cause))
	if !IsCode(err, CodeRetryable) || CodeOf(err) != CodeRetryable {
		t.Fatalf("code lost: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause lost: %v", err)
	}
	if Wrap(CodeInternal, OpCredit, nil) != nil {
		t.Fatalf("Wrap(nil) must stay nil")
	}
	if IsCode(errors.New("plain"), CodeInternal) || CodeOf(nil) != "" {
		t.Fatalf("plain errors carry no code")
	}
}

func TestTransientCodes(t *testing.T) {
	for _, c := range []ErrorCode{CodeConflict, CodeRetryable} {
		if !c.Transient() {
			t.Fatalf("%s should be transient", c)
		}
	}
	for _, c := range []ErrorCode{CodeValidation, CodeInsufficientResources, CodeInternal} {
		if c.Transient() {
			t.Fatalf("%s should not be transient", c)
		}
	}
}
