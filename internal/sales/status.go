package sales

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
	StatusRefunded  Status = "REFUNDED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCancelled, StatusRefunded, StatusShipped, StatusDelivered:
		return true
	}
	return false
}

// Terminal reports the conventionally final states. Nothing blocks leaving them.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusRefunded || s == StatusDelivered
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentAuthorized PaymentStatus = "AUTHORIZED"
	PaymentPaid       PaymentStatus = "PAID"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentAuthorized, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

type Source string

const (
	SourceWeb    Source = "WEB"
	SourceMobile Source = "MOBILE"
	SourceAPI    Source = "API"
	SourcePhone  Source = "PHONE"
)

func (s Source) Valid() bool {
	switch s {
	case SourceWeb, SourceMobile, SourceAPI, SourcePhone:
		return true
	}
	return false
}

// Lifecycle guards. Direct status and payment-status writes stay unguarded;
// only the payment use cases are checked here.

// CanProcessPayment rejects a second charge for an already paid sale.
func CanProcessPayment(s *Sale) bool { return s.PaymentStatus != PaymentPaid }

// CanRefund allows refunds of paid sales only.
func CanRefund(s *Sale) bool { return s.PaymentStatus == PaymentPaid }
