package payment

import (
	"errors"
	"fmt"
)

// 错误类型, Kind 返回给调用方的机器可读错误码
var (
	ErrValidation            = errors.New("validation failed")
	ErrInvalidSignature      = errors.New("signature verification failed")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrOrderNotFound         = errors.New("order not found")
	ErrPartialReconciliation = errors.New("payment and order state diverged")
	ErrGatewayUnreachable    = errors.New("payment gateway unreachable")
	ErrGatewayRejected       = errors.New("payment gateway rejected the request")
	ErrNotCaptured           = errors.New("payment is not captured")
	ErrAlreadyRefunded       = errors.New("payment already refunded")
	ErrAmountMismatch        = errors.New("amount does not match")
)

const KindInternal = "internal_error"

// checked in order; ErrPartialReconciliation may wrap store errors, so it goes first
var kinds = []struct {
	err  error
	kind string
}{
	{ErrPartialReconciliation, "partial_reconciliation_failure"},
	{ErrInvalidSignature, "invalid_signature"},
	{ErrPaymentNotFound, "payment_not_found"},
	{ErrOrderNotFound, "order_not_found"},
	{ErrGatewayUnreachable, "gateway_unreachable"},
	{ErrGatewayRejected, "gateway_error"},
	{ErrNotCaptured, "not_captured"},
	{ErrAlreadyRefunded, "already_refunded"},
	{ErrAmountMismatch, "amount_mismatch"},
	{ErrValidation, "validation_error"},
}

// Kind maps err to its error code, "internal_error" when it carries none of the sentinels.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

func reject(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
