package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"essayhub/internal/models"
)

func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderTaken — the order is no longer unassigned/pending.
	ErrOrderTaken = errors.New("order already assigned")
	// ErrWriterBusy — the writer already holds an order In Progress.
	ErrWriterBusy     = errors.New("writer already has an active order")
	ErrWriterNotFound = errors.New("writer not found")
)

type OrderRepository interface {
	Store(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id int64) (*models.Order, error)
	FindAll(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	FindBySubmissionFile(ctx context.Context, filename string) (*models.Order, error)
	Delete(ctx context.Context, id int64) error

	// Claim atomically assigns the order to the writer. It holds a row lock on
	// the writer for the duration of the check-then-set, so two concurrent
	// claims cannot both pass the "one active order" check; the order row
	// itself is guarded by the conditional UPDATE.
	Claim(ctx context.Context, orderID, writerID int64) error

	UpdateStatus(ctx context.Context, id int64, to models.OrderStatus) error
	SetSubmissionFile(ctx context.Context, id int64, filename string) error
	SetPreviewFile(ctx context.Context, id int64, filename string) error

	// MarkPaymentPending moves unpaid -> pending and records ref/phone/amount.
	// A no-op when the order is already paid.
	MarkPaymentPending(ctx context.Context, id int64, ref, phone, amount string) error
	// ConfirmPayment is the idempotent webhook write: pending/unpaid -> paid,
	// and (current behavior, kept deliberately) status -> Delivered to Client.
	ConfirmPayment(ctx context.Context, id int64, ref string) error
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `
	id, title, description, client_id, writer_id, status,
	submission_file, preview_file, client_guide,
	payment_status, payment_ref, payment_phone, amount,
	deadline, created_at, updated_at
`

type orderScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row orderScanner) (*models.Order, error) {
	o := &models.Order{}
	var (
		writerID sql.NullInt64
		subFile  sql.NullString
		prevFile sql.NullString
		guide    sql.NullString
		ref      sql.NullString
		phone    sql.NullString
		amount   sql.NullString
		deadline sql.NullTime
	)
	err := row.Scan(
		&o.ID, &o.Title, &o.Description, &o.ClientID, &writerID, &o.Status,
		&subFile, &prevFile, &guide,
		&o.PaymentStatus, &ref, &phone, &amount,
		&deadline, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if writerID.Valid {
		v := writerID.Int64
		o.WriterID = &v
	}
	if subFile.Valid {
		s := subFile.String
		o.SubmissionFile = &s
	}
	if prevFile.Valid {
		s := prevFile.String
		o.PreviewFile = &s
	}
	if guide.Valid {
		s := guide.String
		o.ClientGuide = &s
	}
	if ref.Valid {
		s := ref.String
		o.PaymentRef = &s
	}
	if phone.Valid {
		s := phone.String
		o.PaymentPhone = &s
	}
	if amount.Valid && amount.String != "" {
		if d, derr := parseAmount(amount.String); derr == nil {
			o.Amount = d
		}
	}
	if deadline.Valid {
		t := deadline.Time
		o.Deadline = &t
	}
	return o, nil
}

func (r *orderRepository) Store(ctx context.Context, order *models.Order) error {
	const q = `
		INSERT INTO orders (
			title, description, client_id, writer_id, status,
			submission_file, preview_file, client_guide,
			payment_status, payment_ref, payment_phone, amount,
			deadline, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW(),NOW())
		RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, q,
		order.Title, order.Description, order.ClientID, order.WriterID, order.Status,
		order.SubmissionFile, order.PreviewFile, order.ClientGuide,
		order.PaymentStatus, order.PaymentRef, order.PaymentPhone, order.Amount.String(),
		order.Deadline,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
}

func (r *orderRepository) FindByID(ctx context.Context, id int64) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

func (r *orderRepository) FindBySubmissionFile(ctx context.Context, filename string) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE submission_file = $1 ORDER BY id LIMIT 1`, filename)
	o, err := scanOrder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

func (r *orderRepository) FindAll(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	baseQuery := `SELECT ` + orderColumns + ` FROM orders`

	conditions := []string{}
	args := []interface{}{}
	argID := 1

	if filter.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", argID))
		args = append(args, *filter.ClientID)
		argID++
	}
	if filter.WriterID != nil {
		cond := fmt.Sprintf("writer_id = $%d", argID)
		if filter.IncludeUnassigned {
			cond = fmt.Sprintf("(writer_id = $%d OR (writer_id IS NULL AND status = '%s'))",
				argID, models.StatusPendingAssignment)
		}
		conditions = append(conditions, cond)
		args = append(args, *filter.WriterID)
		argID++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argID))
		args = append(args, *filter.Status)
		argID++
	}

	if len(conditions) > 0 {
		baseQuery += " WHERE " + strings.Join(conditions, " AND ")
	}
	baseQuery += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *orderRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) Claim(ctx context.Context, orderID, writerID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// serialize per writer: concurrent claims by the same writer queue here
	var lockedID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM users WHERE id = $1 FOR UPDATE`, writerID).Scan(&lockedID)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrWriterNotFound
		}
		return err
	}

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE writer_id = $1 AND status = $2`,
		writerID, models.StatusInProgress).Scan(&active)
	if err != nil {
		return err
	}
	if active > 0 {
		return ErrWriterBusy
	}

	// per-order race: the conditional UPDATE decides the winner
	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET writer_id = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND writer_id IS NULL AND status = $4`,
		writerID, models.StatusInProgress, orderID, models.StatusPendingAssignment)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrOrderNotFound
		}
		return ErrOrderTaken
	}

	return tx.Commit()
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, to models.OrderStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status=$1, updated_at=NOW() WHERE id=$2`, to, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) SetSubmissionFile(ctx context.Context, id int64, filename string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET submission_file=$1, status=$2, updated_at=NOW() WHERE id=$3`,
		filename, models.StatusSubmitted, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) SetPreviewFile(ctx context.Context, id int64, filename string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE orders SET preview_file=$1, updated_at=NOW() WHERE id=$2`, filename, id)
	return err
}

func (r *orderRepository) MarkPaymentPending(ctx context.Context, id int64, ref, phone, amount string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_status=$1, payment_ref=$2, payment_phone=$3, amount=$4,
			updated_at=NOW()
		WHERE id=$5 AND payment_status <> $6`,
		models.PaymentPending, ref, phone, amount, id, models.PaymentPaid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrOrderNotFound
		}
		// already paid: keep it that way
	}
	return nil
}

func (r *orderRepository) ConfirmPayment(ctx context.Context, id int64, ref string) error {
	// targeted conditional write by id; payment never regresses from paid, and
	// repeated webhook deliveries fall through to a no-op
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_status=$1, payment_ref=$2, status=$3, updated_at=NOW()
		WHERE id=$4 AND payment_status <> $1`,
		models.PaymentPaid, ref, models.StatusDelivered, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrOrderNotFound
		}
	}
	return nil
}
