package domain

import (
	"math"
	"testing"
)

func TestValidateAmount(t *testing.T) {
	cases := []struct {
		in   float64
		want bool
	}{
		{0, false},
		{-1, false},
		{1.5, false},
		{math.NaN(), false},
		{math.Inf(1), false},
		{math.MaxInt32 + 1, false},
		{3, true},
		{1, true},
	}
	for _, tc := range cases {
		if got := ValidateAmount(tc.in); got != tc.want {
			t.Fatalf("ValidateAmount(%v): want %v got %v", tc.in, tc.want, got)
		}
	}
}

func TestValidateTypes(t *testing.T) {
	for _, rt := range ResourceTypes {
		if !ValidateResourceType(rt) {
			t.Fatalf("resource type %q rejected", rt)
		}
	}
	if ValidateResourceType("credits") {
		t.Fatalf("unknown resource type accepted")
	}
	for _, tt := range []string{TransactionPurchase, TransactionConsume, TransactionRefund, TransactionGrant, TransactionExpire} {
		if !ValidateTransactionType(tt) {
			t.Fatalf("transaction type %q rejected", tt)
		}
		if IsCreditType(tt) == IsDebitType(tt) {
			t.Fatalf("%q must be exactly one of credit or debit", tt)
		}
	}
	if ValidateTransactionType("gift") {
		t.Fatalf("unknown transaction type accepted")
	}
}

func TestWalletBalanceAccessors(t *testing.T) {
	w := &ResourceWallet{}
	w.SetBalance(ResourceStorytellerSeat, 4)
	if w.Balance(ResourceStorytellerSeat) != 4 || w.StorytellerSeats != 4 {
		t.Fatalf("SetBalance/Balance mismatch: %+v", w)
	}
	if w.Balance("unknown") != 0 {
		t.Fatalf("unknown resource must read as 0")
	}
	var nilWallet *ResourceWallet
	if nilWallet.Balance(ResourceProjectVoucher) != 0 {
		t.Fatalf("nil wallet must read as 0")
	}
}

func TestBuildSearchContent(t *testing.T) {
	if got := BuildSearchContent("My Title", "Some Words"); got != "my title some words" {
		t.Fatalf("BuildSearchContent: got %q", got)
	}
}
