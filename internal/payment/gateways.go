// Package payment translates gateway-neutral payment requests into each
// provider's wire contract and normalises the answers.
package payment

import (
	"fmt"

	"github.com/ariefcatur/go-sales-orders/internal/apperr"
)

const (
	GatewayStripe      = "stripe"
	GatewayMercadoPago = "mercadopago"
	GatewayPagSeguro   = "pagseguro"

	DefaultGateway = GatewayStripe
)

const (
	MethodCreditCard   = "CREDIT_CARD"
	MethodPix          = "PIX"
	MethodBankTransfer = "BANK_TRANSFER"
	MethodBoleto       = "BOLETO"
)

const (
	// creditCardMinimum is R$ 1,00.
	creditCardMinimum int64 = 100
	// pixMaximum is R$ 10.000,00.
	pixMaximum int64 = 1_000_000
)

// Gateways lists the supported providers in probe order.
var Gateways = []string{GatewayStripe, GatewayMercadoPago, GatewayPagSeguro}

var methodGateways = map[string][]string{
	MethodCreditCard:   {GatewayStripe, GatewayPagSeguro},
	MethodPix:          {GatewayMercadoPago},
	MethodBankTransfer: {GatewayPagSeguro},
	MethodBoleto:       {GatewayMercadoPago, GatewayPagSeguro},
}

// IsSupportedGateway reports whether name is one of Gateways.
func IsSupportedGateway(name string) bool {
	for _, g := range Gateways {
		if g == name {
			return true
		}
	}
	return false
}

// MethodValidation is the outcome of a successful ValidatePaymentMethod.
type MethodValidation struct {
	Valid             bool     `json:"valid"`
	SupportedGateways []string `json:"supported_gateways"`
	PaymentMethod     string   `json:"payment_method"`
}

// ValidatePaymentMethod checks that method is known and amount (cents) is
// within the method's business limits.
func ValidatePaymentMethod(method string, amount int64) (MethodValidation, error) {
	gateways, ok := methodGateways[method]
	if !ok {
		return MethodValidation{}, apperr.New(apperr.ErrMethodNotSupported,
			fmt.Sprintf("Payment method %s not supported", method))
	}

	switch method {
	case MethodCreditCard:
		if amount < creditCardMinimum {
			return MethodValidation{}, apperr.New(apperr.ErrAmountOutOfRange,
				"Minimum amount for credit card payment is R$ 1,00")
		}
	case MethodPix:
		if amount > pixMaximum {
			return MethodValidation{}, apperr.New(apperr.ErrAmountOutOfRange,
				"Maximum amount for PIX payment is R$ 10.000,00")
		}
	}

	out := make([]string, len(gateways))
	copy(out, gateways)
	return MethodValidation{Valid: true, SupportedGateways: out, PaymentMethod: method}, nil
}
