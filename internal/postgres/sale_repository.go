package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-sales-orders/internal/sales"
)

const orderNumberConstraint = "sales_order_number_key"

const saleColumns = `id, order_number, customer_id, customer_name, customer_email,
	COALESCE(customer_phone, ''), COALESCE(customer_document, ''),
	subtotal_amount, tax_amount, discount_amount, shipping_amount, total_amount, currency,
	status, payment_status,
	COALESCE(payment_method, ''), COALESCE(payment_gateway, ''), COALESCE(payment_transaction_id, ''),
	items, shipping_address, billing_address,
	source, COALESCE(integration_source, ''), COALESCE(external_id, ''), metadata, COALESCE(notes, ''),
	is_active, created_at, updated_at`

// SaleRepository is the pgx implementation of sales.Repository.
type SaleRepository struct{ DB *pgxpool.Pool }

var _ sales.Repository = (*SaleRepository)(nil)

func (r *SaleRepository) Create(ctx context.Context, s *sales.Sale) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO sales(
			id, order_number, customer_id, customer_name, customer_email, customer_phone, customer_document,
			subtotal_amount, tax_amount, discount_amount, shipping_amount, total_amount, currency,
			status, payment_status, payment_method, payment_gateway, payment_transaction_id,
			items, shipping_address, billing_address,
			source, integration_source, external_id, metadata, notes, is_active)
		VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),NULLIF($7,''),
			$8,$9,$10,$11,$12,$13,
			$14,$15,NULLIF($16,''),NULLIF($17,''),NULLIF($18,''),
			$19,$20,$21,
			$22,NULLIF($23,''),NULLIF($24,''),$25,NULLIF($26,''),$27)
		RETURNING created_at, updated_at`,
		s.ID, s.OrderNumber, s.CustomerID, s.CustomerName, s.CustomerEmail, s.CustomerPhone, s.CustomerDocument,
		s.SubtotalAmount, s.TaxAmount, s.DiscountAmount, s.ShippingAmount, s.TotalAmount, s.Currency,
		string(s.Status), string(s.PaymentStatus), s.PaymentMethod, s.PaymentGateway, s.PaymentTransactionID,
		s.Items, s.ShippingAddress, s.BillingAddress,
		string(s.Source), s.IntegrationSource, s.ExternalID, s.Metadata, s.Notes, s.IsActive,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if isUniqueViolation(err, orderNumberConstraint) {
		return sales.ErrDuplicateOrderNumber
	}
	return err
}

func (r *SaleRepository) FindByID(ctx context.Context, id string) (*sales.Sale, error) {
	return r.findOne(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1`, id)
}

func (r *SaleRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*sales.Sale, error) {
	return r.findOne(ctx, `SELECT `+saleColumns+` FROM sales WHERE order_number=$1`, orderNumber)
}

func (r *SaleRepository) findOne(ctx context.Context, query string, arg any) (*sales.Sale, error) {
	s, err := scanSale(r.DB.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sales.ErrSaleNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FindAndCount runs the count and the page query concurrently.
func (r *SaleRepository) FindAndCount(ctx context.Context, f sales.Filter, p sales.Page) ([]sales.Sale, int, error) {
	where, args := buildWhere(f)

	var (
		total int
		rows  []sales.Sale
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.DB.QueryRow(gctx, `SELECT COUNT(*) FROM sales`+where, args...).Scan(&total)
	})
	g.Go(func() error {
		pageArgs := append(append([]any{}, args...), p.Limit, p.Offset())
		query := fmt.Sprintf(`SELECT %s FROM sales%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			saleColumns, where, len(args)+1, len(args)+2)
		var err error
		rows, err = r.query(gctx, query, pageArgs...)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *SaleRepository) FindAll(ctx context.Context, f sales.Filter) ([]sales.Sale, error) {
	where, args := buildWhere(f)
	return r.query(ctx, `SELECT `+saleColumns+` FROM sales`+where+` ORDER BY created_at DESC`, args...)
}

func (r *SaleRepository) query(ctx context.Context, query string, args ...any) ([]sales.Sale, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []sales.Sale{}
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *SaleRepository) Update(ctx context.Context, s *sales.Sale) error {
	err := r.DB.QueryRow(ctx, `
		UPDATE sales SET
			customer_name=$2, customer_email=$3, customer_phone=NULLIF($4,''), customer_document=NULLIF($5,''),
			subtotal_amount=$6, tax_amount=$7, discount_amount=$8, shipping_amount=$9, total_amount=$10,
			status=$11, payment_status=$12,
			payment_method=NULLIF($13,''), payment_gateway=NULLIF($14,''), payment_transaction_id=NULLIF($15,''),
			items=$16, shipping_address=$17, billing_address=$18,
			metadata=$19, notes=NULLIF($20,''), is_active=$21,
			updated_at=now()
		WHERE id=$1
		RETURNING updated_at`,
		s.ID, s.CustomerName, s.CustomerEmail, s.CustomerPhone, s.CustomerDocument,
		s.SubtotalAmount, s.TaxAmount, s.DiscountAmount, s.ShippingAmount, s.TotalAmount,
		string(s.Status), string(s.PaymentStatus),
		s.PaymentMethod, s.PaymentGateway, s.PaymentTransactionID,
		s.Items, s.ShippingAddress, s.BillingAddress,
		s.Metadata, s.Notes, s.IsActive,
	).Scan(&s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return sales.ErrSaleNotFound
	}
	return err
}

func scanSale(row pgx.Row) (*sales.Sale, error) {
	var s sales.Sale
	var status, paymentStatus, source string
	err := row.Scan(
		&s.ID, &s.OrderNumber, &s.CustomerID, &s.CustomerName, &s.CustomerEmail,
		&s.CustomerPhone, &s.CustomerDocument,
		&s.SubtotalAmount, &s.TaxAmount, &s.DiscountAmount, &s.ShippingAmount, &s.TotalAmount, &s.Currency,
		&status, &paymentStatus,
		&s.PaymentMethod, &s.PaymentGateway, &s.PaymentTransactionID,
		&s.Items, &s.ShippingAddress, &s.BillingAddress,
		&source, &s.IntegrationSource, &s.ExternalID, &s.Metadata, &s.Notes,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = sales.Status(status)
	s.PaymentStatus = sales.PaymentStatus(paymentStatus)
	s.Source = sales.Source(source)
	return &s, nil
}

// buildWhere turns f into a parameterised WHERE clause.
func buildWhere(f sales.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.PaymentStatus != "" {
		add("payment_status = $%d", string(f.PaymentStatus))
	}
	if f.CustomerID != "" {
		add("customer_id = $%d", f.CustomerID)
	}
	if f.Source != "" {
		add("source = $%d", string(f.Source))
	}
	if f.IntegrationSource != "" {
		add("integration_source = $%d", f.IntegrationSource)
	}
	if f.IsActive != nil {
		add("is_active = $%d", *f.IsActive)
	}
	if f.CreatedFrom != nil {
		add("created_at >= $%d", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		add("created_at <= $%d", *f.CreatedTo)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
