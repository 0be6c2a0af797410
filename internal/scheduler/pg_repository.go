package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/barbershop-scheduling/internal/validate"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	var id int64

	err := row.Scan(
		&id,
		&c.Name,
		&c.Phone,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnknownCustomer
		}
		return nil, err
	}

	c.ID = CustomerID(id)
	return &c, nil
}

// StartsAt is rebuilt from the slot text so it carries the same location as
// values produced by the in-memory store.
func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var customerID int64

	err := row.Scan(
		&a.Slot,
		&customerID,
		&a.CustomerName,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.CustomerID = CustomerID(customerID)
	startsAt, err := validate.ParseSlot(a.Slot, time.Local)
	if err != nil {
		return nil, fmt.Errorf("stored slot %q: %w", a.Slot, err)
	}
	a.StartsAt = startsAt
	return &a, nil
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// Interface methods

func (r *PgRepository) CreateCustomer(ctx context.Context, c Customer) (*Customer, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO customers (name, phone, created_at)
		VALUES ($1, $2, COALESCE($3, now()))
		RETURNING id, name, phone, created_at
	`, c.Name, c.Phone, nullableTime(c.CreatedAt))

	created, err := scanCustomer(row)
	if err != nil {
		return nil, fmt.Errorf("insert customer: %w", err)
	}
	return created, nil
}

func (r *PgRepository) ListCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, phone, created_at
		FROM customers
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) FindLatestCustomerByName(ctx context.Context, name string) (*Customer, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, created_at
		FROM customers
		WHERE lower(name) = lower($1)
		ORDER BY id DESC
		LIMIT 1
	`, name)
	return scanCustomer(row)
}

func (r *PgRepository) GetAppointment(ctx context.Context, slot string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT a.slot, a.customer_id, c.name, a.created_at
		FROM appointments a
		JOIN customers c ON c.id = a.customer_id
		WHERE a.slot = $1
	`, slot)
	return scanAppointment(row)
}

// CreateAppointment relies on the UNIQUE(slot) constraint as the last guard
// against a concurrent insert from another process.
func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		WITH ins AS (
			INSERT INTO appointments (slot, starts_at, customer_id, created_at)
			VALUES ($1, $2, $3, COALESCE($4, now()))
			RETURNING slot, customer_id, created_at
		)
		SELECT ins.slot, ins.customer_id, c.name, ins.created_at
		FROM ins
		JOIN customers c ON c.id = ins.customer_id
	`, a.Slot, a.StartsAt, int64(a.CustomerID), nullableTime(a.CreatedAt))

	created, err := scanAppointment(row)
	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return nil, ErrSlotTaken
		case pgForeignKeyViolation:
			return nil, ErrUnknownCustomer
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, slot string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		DELETE FROM appointments a
		USING customers c
		WHERE a.slot = $1
		  AND c.id = a.customer_id
		RETURNING a.slot, a.customer_id, c.name, a.created_at
	`, slot)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.slot, a.customer_id, c.name, a.created_at
		FROM appointments a
		JOIN customers c ON c.id = a.customer_id
		ORDER BY a.starts_at, a.slot
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	var customerID *int64
	if ev.CustomerID != nil {
		id := int64(*ev.CustomerID)
		customerID = &id
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, slot, customer_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.Slot, customerID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func (r *PgRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
