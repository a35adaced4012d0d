package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/database"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/entity"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// Orders seeds example orders with lines if they are missing.
func (s *Seeder) Orders(ctx context.Context) error {
	now := time.Now().UTC()
	samples := []entity.Order{
		{
			Number:       "Order No 1",
			CustomerID:   1,
			Status:       entity.StatusPending,
			Total:        150,
			PaymentMode:  "cash",
			DeliveryMode: entity.DeliveryCollect,
			CreatedAt:    now,
			UpdatedAt:    now,
			ConfirmedAt:  now,
			Lines: []*entity.OrderLine{
				{ProductID: "rice-5kg", Name: "Rice 5kg", Price: 50, Qty: 3},
			},
		},
		{
			Number:       "Order No 2",
			CustomerID:   2,
			Status:       entity.StatusAccepted,
			Total:        80,
			PaymentMode:  "cash",
			DeliveryMode: entity.DeliveryDoor,
			CollectBy:    "6pm",
			CreatedAt:    now,
			UpdatedAt:    now,
			ConfirmedAt:  now,
			Lines: []*entity.OrderLine{
				{ProductID: "sugar-1kg", Name: "Sugar 1kg", Price: 40, Qty: 2},
			},
		},
	}

	for _, sample := range samples {
		order := sample
		res, err := s.db.NewInsert().Model(&order).
			On("CONFLICT (number) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, err := res.RowsAffected(); err != nil || affected == 0 {
			continue
		}
		for i, line := range order.Lines {
			line.OrderID = order.ID
			line.Position = int64(i)
		}
		if _, err := s.db.NewInsert().Model(&order.Lines).Exec(ctx); err != nil {
			return err
		}
	}

	counter := &entity.Counter{Name: entity.CounterOrderNumber, Value: int64(len(samples))}
	if _, err := s.db.NewInsert().Model(counter).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx); err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("seeded orders", zap.Int("count", len(samples)))
	}
	return nil
}
