package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/database"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/entity"
)

var repoTracer = otel.Tracer("github.com/JoyelAlbert/ManoMercy-Supermarket/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// ErrConflict is returned when an insert violates a uniqueness
// constraint (duplicate order number, second draft for one customer).
var ErrConflict = errors.New("order conflicts with existing row")

// ErrVersionMismatch is returned by Save when the row changed since it
// was read; callers re-read and retry.
var ErrVersionMismatch = errors.New("order version mismatch")

// Repository encapsulates read/write access for orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// NextOrderNumber advances the order-number sequence under a row lock
// and returns the formatted label.
func (r *Repository) NextOrderNumber(ctx context.Context) (string, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.NextOrderNumber")
	defer span.End()

	var value int64
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		counter := &entity.Counter{Name: entity.CounterOrderNumber}
		err := tx.NewSelect().Model(counter).
			Where("name = ?", entity.CounterOrderNumber).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			counter.Value = 0
			if _, err := tx.NewInsert().Model(counter).Exec(ctx); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		counter.Value++
		value = counter.Value
		_, err = tx.NewUpdate().Model(counter).
			Column("value").
			Where("name = ?", entity.CounterOrderNumber).
			Exec(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sequence update failed")
		return "", err
	}
	return fmt.Sprintf("Order No %d", value), nil
}

// FindDraftByCustomer returns the customer's single draft order, or
// ErrNotFound when none exists.
func (r *Repository) FindDraftByCustomer(ctx context.Context, customerID int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.FindDraftByCustomer", trace.WithAttributes(attribute.Int64("order.customer_id", customerID)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).
		Relation("Lines", sortLines).
		Where("customer_id = ?", customerID).
		Where("status = ?", entity.StatusDraft).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// Create persists a new order using the write connection. Uniqueness
// violations surface as ErrConflict.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.number", order.Number)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			span.SetStatus(codes.Error, "uniqueness conflict")
			return ErrConflict
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// Save persists mutations to an existing order and replaces its lines.
// The update is optimistic: a stale version yields ErrVersionMismatch.
func (r *Repository) Save(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Save", trace.WithAttributes(attribute.Int64("order.id", order.ID)))
	defer span.End()

	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		current := order.Version
		order.Version++
		order.UpdatedAt = time.Now().UTC()

		res, err := tx.NewUpdate().Model(order).
			WherePK().
			Where("version = ?", current).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrVersionMismatch
		}

		if _, err := tx.NewDelete().Model((*entity.OrderLine)(nil)).
			Where("order_id = ?", order.ID).
			Exec(ctx); err != nil {
			return err
		}
		if len(order.Lines) == 0 {
			return nil
		}
		for _, line := range order.Lines {
			line.ID = 0
			line.OrderID = order.ID
		}
		_, err = tx.NewInsert().Model(&order.Lines).Exec(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrVersionMismatch) {
			span.SetStatus(codes.Error, "version mismatch")
			return ErrVersionMismatch
		}
		order.Version--
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	return nil
}

// GetByID fetches an order by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).
		Relation("Lines", sortLines).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// ListByCustomer returns a customer's orders, newest first.
func (r *Repository) ListByCustomer(ctx context.Context, customerID int64) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListByCustomer", trace.WithAttributes(attribute.Int64("order.customer_id", customerID)))
	defer span.End()

	var orders []*entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Relation("Lines", sortLines).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// ListAll returns every order, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListAll")
	defer span.End()

	var orders []*entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Relation("Lines", sortLines).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// Delete removes an order and its lines permanently.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*entity.OrderLine)(nil)).
			Where("order_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		res, err := tx.NewDelete().Model((*entity.Order)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
	}
	return err
}

func sortLines(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("position ASC")
}

// isUniqueViolation detects duplicate-key errors across the supported
// drivers (postgres 23505, mysql 1062, sqlite "UNIQUE constraint").
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "Error 1062") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
