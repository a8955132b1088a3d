package domain

import "math"

func ValidateResourceType(resourceType string) bool {
	_, ok := BalanceColumn(resourceType)
	return ok
}

func ValidateTransactionType(transactionType string) bool {
	switch transactionType {
	case TransactionPurchase, TransactionConsume, TransactionRefund, TransactionGrant, TransactionExpire:
		return true
	default:
		return false
	}
}

// IsCreditType reports whether transactionType increases a balance.
func IsCreditType(transactionType string) bool {
	switch transactionType {
	case TransactionPurchase, TransactionRefund, TransactionGrant:
		return true
	default:
		return false
	}
}

// IsDebitType reports whether transactionType decreases a balance.
func IsDebitType(transactionType string) bool {
	return transactionType == TransactionConsume || transactionType == TransactionExpire
}

// ValidateAmount accepts only positive whole numbers. Amounts arrive as JSON
// numbers, so fractional and non-finite values must be rejected here.
func ValidateAmount(amount float64) bool {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return false
	}
	if amount <= 0 || amount > math.MaxInt32 {
		return false
	}
	return amount == math.Trunc(amount)
}
