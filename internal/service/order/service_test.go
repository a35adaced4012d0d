package order

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/entity"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/identity"
	repo "github.com/JoyelAlbert/ManoMercy-Supermarket/internal/repository/order"
	"github.com/JoyelAlbert/ManoMercy-Supermarket/pkg/errorbank"
)

func newTestService(t *testing.T) (*Service, *repo.Memory) {
	t.Helper()
	store := repo.NewMemory()
	return NewServiceWithStore(store, zap.NewNop()), store
}

func customer(id int64) identity.Principal {
	return identity.Principal{UserID: id, Role: identity.RoleCustomer}
}

func requireKind(t *testing.T, err error, kind errorbank.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, errorbank.From(err).Kind())
}

func TestGetOrCreateDraftCreatesOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.GetOrCreateDraft(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDraft, first.Status)
	assert.Equal(t, "Order No 1", first.Number)
	assert.Empty(t, first.Lines)
	assert.Zero(t, first.Total)

	second, err := svc.GetOrCreateDraft(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetOrCreateDraftIsolatesCustomers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.GetOrCreateDraft(ctx, 1)
	require.NoError(t, err)
	b, err := svc.GetOrCreateDraft(ctx, 2)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Number, b.Number)
}

func TestGetOrCreateDraftConcurrentCallsConverge(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	const callers = 16
	ids := make([]int64, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			order, err := svc.GetOrCreateDraft(ctx, 42)
			errs[slot] = err
			if err == nil {
				ids[slot] = order.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	orders, err := store.ListByCustomer(ctx, 42)
	require.NoError(t, err)
	drafts := 0
	for _, order := range orders {
		if order.Status == entity.StatusDraft {
			drafts++
		}
	}
	assert.Equal(t, 1, drafts)
}

func TestAddItemMergesByProduct(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	draft, err := svc.GetOrCreateDraft(ctx, 1)
	require.NoError(t, err)

	updated, err := svc.AddItem(ctx, draft.ID, customer(1), &entity.OrderLine{ProductID: "p1", Name: "Rice", Price: 50, Qty: 2})
	require.NoError(t, err)
	assert.Equal(t, 100.0, updated.Total)

	updated, err = svc.AddItem(ctx, draft.ID, customer(1), &entity.OrderLine{ProductID: "p1", Name: "Rice", Price: 50, Qty: 3})
	require.NoError(t, err)
	require.Len(t, updated.Lines, 1)
	assert.Equal(t, int64(5), updated.Lines[0].Qty)
	assert.Equal(t, 250.0, updated.Total)
}

func TestAddItemValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	draft, err := svc.GetOrCreateDraft(ctx, 1)
	require.NoError(t, err)

	cases := []struct {
		name string
		line *entity.OrderLine
	}{
		{"zero qty", &entity.OrderLine{ProductID: "p1", Name: "Rice", Price: 50, Qty: 0}},
		{"negative qty", &entity.OrderLine{ProductID: "p1", Name: "Rice", Price: 50, Qty: -1}},
		{"missing product", &entity.OrderLine{Name: "Rice", Price: 50, Qty: 1}},
		{"missing name", &entity.OrderLine{ProductID: "p1", Price: 50, Qty: 1}},
		{"negative price", &entity.OrderLine{ProductID: "p1", Name: "Rice", Price: -5, Qty: 1}},
		{"discount above 100", &entity.OrderLine{ProductID: "p1", Name: "Rice", Price: 50, Qty: 1, Discount: 101}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddItem(ctx, draft.ID, customer(1), tc.line)
			requireKind(t, err, errorbank.KindUnprocessableEntity)
		})
	}
}

func TestAddItemOwnershipAndExistence(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	draft, err := svc.GetOrCreateDraft(ctx, 1)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, draft.ID+99, customer(1), &entity.OrderLine{ProductID: "p1", Name: "Rice", Price: 50, Qty: 1})
	requireKind(t, err, errorbank.KindNotFound)

	_, err = svc.AddItem(ctx, draft.ID, customer(2), &entity.OrderLine{ProductID: "p1", Name: "Rice", Price: 50, Qty: 1})
	requireKind(t, err, errorbank.KindForbidden)
}

func TestAddItemRejectedAfterConfirm(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	draft, err := svc.GetOrCreateDraft(ctx, 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, draft.ID, customer(1), &entity.OrderLine{ProductID: "p1", Name: "Rice", Price: 50, Qty: 2})
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, draft.ID, customer(1), ConfirmInput{PaymentMode: "cash", DeliveryMode: entity.DeliveryCollect})
	require.NoError(t, err)
	require.Equal(t, entity.StatusPending, confirmed.Status)

	_, err = svc.AddItem(ctx, draft.ID, customer(1), &entity.OrderLine{ProductID: "p2", Name: "Sugar", Price: 40, Qty: 1})
	requireKind(t, err, errorbank.KindInvalidState)

	// Items and total are untouched by the rejected mutation.
	current, err := store.GetByID(ctx, draft.ID)
	require.NoError(t, err)
	require.Len(t, current.Lines, 1)
	assert.Equal(t, 100.0, current.Total)
}

func TestConfirmValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	draft, err := svc.GetOrCreateDraft(ctx, 1)
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, draft.ID, customer(1), ConfirmInput{DeliveryMode: entity.DeliveryCollect})
	requireKind(t, err, errorbank.KindUnprocessableEntity)

	_, err = svc.Confirm(ctx, draft.ID, customer(1), ConfirmInput{PaymentMode: "cash"})
	requireKind(t, err, errorbank.KindUnprocessableEntity)

	_, err = svc.Confirm(ctx, draft.ID, customer(1), ConfirmInput{PaymentMode: "cash", DeliveryMode: "carrierPigeon"})
	requireKind(t, err, errorbank.KindUnprocessableEntity)

	_, err = svc.Confirm(ctx, draft.ID, customer(1), ConfirmInput{PaymentMode: "cash", DeliveryMode: entity.DeliveryDoor})
	requireKind(t, err, errorbank.KindUnprocessableEntity)

	confirmed, err := svc.Confirm(ctx, draft.ID, customer(1), ConfirmInput{PaymentMode: "cash", DeliveryMode: entity.DeliveryCollect})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, confirmed.Status)
	assert.False(t, confirmed.ConfirmedAt.IsZero())
}

func TestConfirmRequiresDraft(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	draft, err := svc.GetOrCreateDraft(ctx, 1)
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, draft.ID, customer(1), ConfirmInput{PaymentMode: "cash", DeliveryMode: entity.DeliveryCollect})
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, draft.ID, customer(1), ConfirmInput{PaymentMode: "upi", DeliveryMode: entity.DeliveryCollect})
	requireKind(t, err, errorbank.KindInvalidState)
}

func TestConfirmDoorDeliveryRecordsCollectBy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	draft, err := svc.GetOrCreateDraft(ctx, 1)
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, draft.ID, customer(1), ConfirmInput{
		PaymentMode:  "cash",
		DeliveryMode: entity.DeliveryDoor,
		CollectBy:    "6pm",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.DeliveryDoor, confirmed.DeliveryMode)
	assert.Equal(t, "6pm", confirmed.CollectBy)
}

func TestCancelIsTerminal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	draft, err := svc.GetOrCreateDraft(ctx, 1)
	require.NoError(t, err)

	canceled, err := svc.Cancel(ctx, draft.ID, customer(1))
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCanceled, canceled.Status)

	_, err = svc.Cancel(ctx, draft.ID, customer(1))
	requireKind(t, err, errorbank.KindInvalidState)
}

func TestCancelRequiresDraft(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	draft, err := svc.GetOrCreateDraft(ctx, 1)
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, draft.ID, customer(1), ConfirmInput{PaymentMode: "cash", DeliveryMode: entity.DeliveryCollect})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, draft.ID, customer(1))
	requireKind(t, err, errorbank.KindInvalidState)
}

func TestCancelOwnershipIsolation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	draft, err := svc.GetOrCreateDraft(ctx, 1)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, draft.ID, customer(2))
	requireKind(t, err, errorbank.KindForbidden)
	_, err = svc.Confirm(ctx, draft.ID, customer(2), ConfirmInput{PaymentMode: "cash", DeliveryMode: entity.DeliveryCollect})
	requireKind(t, err, errorbank.KindForbidden)
}

func TestAdminSetStatusOverride(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	draft, err := svc.GetOrCreateDraft(ctx, 1)
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, draft.ID, customer(1), ConfirmInput{PaymentMode: "cash", DeliveryMode: entity.DeliveryCollect})
	require.NoError(t, err)

	accepted, err := svc.AdminSetStatus(ctx, draft.ID, entity.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAccepted, accepted.Status)

	// The override is unguarded: moving backward is allowed.
	pending, err := svc.AdminSetStatus(ctx, draft.ID, entity.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, pending.Status)

	_, err = svc.AdminSetStatus(ctx, draft.ID, entity.StatusDraft)
	requireKind(t, err, errorbank.KindUnprocessableEntity)
	_, err = svc.AdminSetStatus(ctx, draft.ID, entity.StatusCanceled)
	requireKind(t, err, errorbank.KindUnprocessableEntity)

	_, err = svc.AdminSetStatus(ctx, draft.ID+99, entity.StatusAccepted)
	requireKind(t, err, errorbank.KindNotFound)
}

func TestAdminDelete(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	draft, err := svc.GetOrCreateDraft(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, svc.AdminDelete(ctx, draft.ID))
	_, err = store.GetByID(ctx, draft.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	requireKind(t, svc.AdminDelete(ctx, draft.ID), errorbank.KindNotFound)
}

func TestListForCustomerNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.GetOrCreateDraft(ctx, 1)
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, first.ID, customer(1), ConfirmInput{PaymentMode: "cash", DeliveryMode: entity.DeliveryCollect})
	require.NoError(t, err)
	second, err := svc.GetOrCreateDraft(ctx, 1)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	orders, err := svc.ListForCustomer(ctx, 1)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)

	other, err := svc.ListForCustomer(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestAddItemRetriesOnConcurrentMutation(t *testing.T) {
	store := repo.NewMemory()
	flaky := &staleOnFirstSave{Memory: store}
	svc := NewServiceWithStore(flaky, zap.NewNop())
	ctx := context.Background()

	draft, err := svc.GetOrCreateDraft(ctx, 1)
	require.NoError(t, err)

	flaky.arm()
	updated, err := svc.AddItem(ctx, draft.ID, customer(1), &entity.OrderLine{ProductID: "p1", Name: "Rice", Price: 50, Qty: 2})
	require.NoError(t, err)
	assert.Equal(t, 100.0, updated.Total)
	assert.Equal(t, 1, flaky.mismatches)
}

func TestFullHappyPath(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	draft, err := svc.GetOrCreateDraft(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDraft, draft.Status)
	assert.Empty(t, draft.Lines)

	order, err := svc.AddItem(ctx, draft.ID, customer(1), &entity.OrderLine{ProductID: "p1", Name: "Rice", Price: 50, Qty: 2})
	require.NoError(t, err)
	assert.Equal(t, 100.0, order.Total)

	order, err = svc.AddItem(ctx, draft.ID, customer(1), &entity.OrderLine{ProductID: "p1", Name: "Rice", Price: 50, Qty: 1})
	require.NoError(t, err)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, int64(3), order.Lines[0].Qty)
	assert.Equal(t, 150.0, order.Total)

	order, err = svc.Confirm(ctx, draft.ID, customer(1), ConfirmInput{PaymentMode: "cash", DeliveryMode: entity.DeliveryCollect})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, order.Status)
	assert.False(t, order.ConfirmedAt.IsZero())

	order, err = svc.AdminSetStatus(ctx, draft.ID, entity.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAccepted, order.Status)
}

// staleOnFirstSave wraps Memory to fail the next Save with a version
// mismatch, simulating a concurrent writer.
type staleOnFirstSave struct {
	*repo.Memory
	armed      bool
	mismatches int
}

func (s *staleOnFirstSave) arm() { s.armed = true }

func (s *staleOnFirstSave) Save(ctx context.Context, order *entity.Order) error {
	if s.armed {
		s.armed = false
		s.mismatches++
		return repo.ErrVersionMismatch
	}
	return s.Memory.Save(ctx, order)
}
