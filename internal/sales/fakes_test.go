package sales

import (
	"context"
	"sort"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-sales-orders/internal/payment"
)

type memRepo struct {
	mu    sync.Mutex
	rows  map[string]Sale
	clock time.Time

	// dupes makes the next n Create calls fail with ErrDuplicateOrderNumber.
	dupes   int
	creates int
	updates int
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[string]Sale{}, clock: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)}
}

func (r *memRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memRepo) Create(ctx context.Context, s *Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.dupes > 0 {
		r.dupes--
		return ErrDuplicateOrderNumber
	}
	now := r.tick()
	s.CreatedAt, s.UpdatedAt = now, now
	r.rows[s.ID] = *s
	return nil
}

func (r *memRepo) FindByID(ctx context.Context, id string) (*Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return nil, ErrSaleNotFound
	}
	return &s, nil
}

func (r *memRepo) FindByOrderNumber(ctx context.Context, n string) (*Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.OrderNumber == n {
			s := s
			return &s, nil
		}
	}
	return nil, ErrSaleNotFound
}

func (r *memRepo) match(f Filter, s Sale) bool {
	switch {
	case f.Status != "" && s.Status != f.Status:
		return false
	case f.PaymentStatus != "" && s.PaymentStatus != f.PaymentStatus:
		return false
	case f.CustomerID != "" && s.CustomerID != f.CustomerID:
		return false
	case f.Source != "" && s.Source != f.Source:
		return false
	case f.IntegrationSource != "" && s.IntegrationSource != f.IntegrationSource:
		return false
	case f.IsActive != nil && s.IsActive != *f.IsActive:
		return false
	case f.CreatedFrom != nil && s.CreatedAt.Before(*f.CreatedFrom):
		return false
	case f.CreatedTo != nil && s.CreatedAt.After(*f.CreatedTo):
		return false
	}
	return true
}

func (r *memRepo) FindAll(ctx context.Context, f Filter) ([]Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sale
	for _, s := range r.rows {
		if r.match(f, s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) FindAndCount(ctx context.Context, f Filter, p Page) ([]Sale, int, error) {
	all, _ := r.FindAll(ctx, f)
	start := p.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + p.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (r *memRepo) Update(ctx context.Context, s *Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[s.ID]; !ok {
		return ErrSaleNotFound
	}
	r.updates++
	s.UpdatedAt = r.tick()
	r.rows[s.ID] = *s
	return nil
}

type memCache struct {
	rows    map[string]Sale
	deletes []string
}

func (c *memCache) Get(ctx context.Context, id string) (*Sale, bool) {
	s, ok := c.rows[id]
	if !ok {
		return nil, false
	}
	return &s, true
}

func (c *memCache) Set(ctx context.Context, s *Sale) { c.rows[s.ID] = *s }

func (c *memCache) Delete(ctx context.Context, id string) {
	delete(c.rows, id)
	c.deletes = append(c.deletes, id)
}

type recordingPublisher struct {
	msgs []kafkago.Message
}

func (p *recordingPublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	p.msgs = append(p.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
}

func (p *recordingPublisher) types() []string {
	var out []string
	for _, m := range p.msgs {
		for _, h := range m.Headers {
			if h.Key == "x-event-type" {
				out = append(out, string(h.Value))
			}
		}
	}
	return out
}

type fakePayments struct {
	processCalls int
	refundCalls  int
	statusCalls  int

	lastCharge  payment.Charge
	lastGateway string
	lastTxn     string
	lastAmount  int64

	processErr error
	refundErr  error
}

func (f *fakePayments) ValidatePaymentMethod(method string, amount int64) (payment.MethodValidation, error) {
	return payment.ValidatePaymentMethod(method, amount)
}

func (f *fakePayments) ProcessPayment(ctx context.Context, c payment.Charge, gateway string) (payment.PaymentResult, error) {
	f.processCalls++
	f.lastCharge, f.lastGateway = c, gateway
	if f.processErr != nil {
		return payment.PaymentResult{}, f.processErr
	}
	return payment.PaymentResult{
		Success: true, TransactionID: "txn_42", Status: "authorized",
		Gateway: gateway, Amount: c.Amount, Currency: c.Currency,
	}, nil
}

func (f *fakePayments) RefundPayment(ctx context.Context, txn string, amount int64, gateway string) (payment.RefundResult, error) {
	f.refundCalls++
	f.lastTxn, f.lastAmount, f.lastGateway = txn, amount, gateway
	if f.refundErr != nil {
		return payment.RefundResult{}, f.refundErr
	}
	return payment.RefundResult{Success: true, RefundID: "ref_1", Status: "succeeded", Amount: amount, Gateway: gateway}, nil
}

func (f *fakePayments) GetPaymentStatus(ctx context.Context, txn, gateway string) (payment.StatusResult, error) {
	f.statusCalls++
	f.lastTxn, f.lastGateway = txn, gateway
	return payment.StatusResult{TransactionID: txn, Status: "succeeded", Gateway: gateway, Currency: "BRL"}, nil
}

func (f *fakePayments) GetStatistics(ctx context.Context, gateway, period string) (payment.Statistics, error) {
	return payment.Statistics{Gateway: gateway, Period: period}, nil
}

func (f *fakePayments) CheckAllGatewaysHealth(ctx context.Context) []payment.Health {
	return []payment.Health{{Service: "payment", Gateway: "stripe", Status: "healthy"}}
}
