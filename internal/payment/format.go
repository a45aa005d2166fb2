package payment

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-sales-orders/internal/apperr"
)

// Charge is the order snapshot a payment is built from.
type Charge struct {
	OrderNumber   string
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	Amount        int64
	Currency      string
}

func (c Charge) currency() string {
	if c.Currency == "" {
		return "BRL"
	}
	return c.Currency
}

func (c Charge) description() string { return "Order " + c.OrderNumber }

type StripePayment struct {
	Amount             int64             `json:"amount"`
	Currency           string            `json:"currency"`
	Description        string            `json:"description"`
	Metadata           map[string]string `json:"metadata"`
	PaymentMethodTypes []string          `json:"payment_method_types"`
	Confirm            bool              `json:"confirm"`
	ReturnURL          string            `json:"return_url"`
}

type MercadoPagoPayer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type MercadoPagoPayment struct {
	TransactionAmount float64          `json:"transaction_amount"`
	Description       string           `json:"description"`
	PaymentMethodID   string           `json:"payment_method_id"`
	Payer             MercadoPagoPayer `json:"payer"`
}

type PagSeguroPayment struct {
	Mode            string `xml:"mode" json:"mode"`
	Method          string `xml:"method" json:"method"`
	Amount          string `xml:"amount" json:"amount"`
	Currency        string `xml:"currency" json:"currency"`
	Description     string `xml:"description" json:"description"`
	NotificationURL string `xml:"notificationURL" json:"notificationURL"`
}

type PagSeguroRequest struct {
	XMLName xml.Name         `xml:"checkout" json:"-"`
	Payment PagSeguroPayment `xml:"payment" json:"payment"`
}

// Formatter builds gateway payloads. FrontendURL and APIURL feed the
// redirect and webhook addresses.
type Formatter struct {
	FrontendURL string
	APIURL      string
}

// FormatPaymentData maps c onto gateway's bespoke request body.
func (f Formatter) FormatPaymentData(c Charge, gateway string) (any, error) {
	switch gateway {
	case GatewayStripe:
		return StripePayment{
			Amount:      c.Amount,
			Currency:    strings.ToLower(c.currency()),
			Description: c.description(),
			Metadata: map[string]string{
				"order_number":   c.OrderNumber,
				"customer_id":    c.CustomerID,
				"customer_email": c.CustomerEmail,
			},
			PaymentMethodTypes: []string{"card"},
			Confirm:            true,
			ReturnURL:          f.FrontendURL + "/payment/return",
		}, nil
	case GatewayMercadoPago:
		first, last := splitName(c.CustomerName)
		return MercadoPagoPayment{
			TransactionAmount: majorUnits(c.Amount).InexactFloat64(),
			Description:       c.description(),
			PaymentMethodID:   "pix",
			Payer: MercadoPagoPayer{
				Email:     c.CustomerEmail,
				FirstName: first,
				LastName:  last,
			},
		}, nil
	case GatewayPagSeguro:
		return PagSeguroRequest{Payment: PagSeguroPayment{
			Mode:            "default",
			Method:          "creditCard",
			Amount:          majorUnits(c.Amount).StringFixed(2),
			Currency:        strings.ToUpper(c.currency()),
			Description:     c.description(),
			NotificationURL: f.APIURL + "/webhooks/pagseguro",
		}}, nil
	default:
		return nil, apperr.New(apperr.ErrGatewayNotSupported,
			fmt.Sprintf("Payment gateway %s not supported", gateway))
	}
}

func majorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// centsFrom converts an amount reported by gateway into cents. Stripe reports
// cents; MercadoPago and PagSeguro report reais.
func centsFrom(gateway string, amount decimal.Decimal) int64 {
	if gateway != GatewayStripe {
		amount = amount.Shift(2)
	}
	return amount.Round(0).IntPart()
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
