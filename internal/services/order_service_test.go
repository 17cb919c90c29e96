package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"essayhub/internal/authz"
	"essayhub/internal/models"
	"essayhub/internal/repositories"
)

func newOrderService(orders *fakeOrderRepo, users *fakeUserRepo) OrderService {
	return NewOrderService(orders, users, nil, &fakeEmail{}, nil, "/tmp")
}

func seedWriter(t *testing.T, users *fakeUserRepo, approved bool) *models.User {
	t.Helper()
	u := &models.User{Name: "Writer", Email: "writer@example.com", RoleID: authz.RoleWriter, Approved: approved}
	require.NoError(t, users.Create(u))
	return u
}

func seedOrder(t *testing.T, orders *fakeOrderRepo, clientID int64) *models.Order {
	t.Helper()
	o := &models.Order{
		Title:         "Essay on Go",
		Description:   "2000 words",
		ClientID:      clientID,
		Status:        models.StatusPendingAssignment,
		PaymentStatus: models.PaymentUnpaid,
	}
	require.NoError(t, orders.Store(context.Background(), o))
	return o
}

func TestCreate_Validation(t *testing.T) {
	t.Parallel()

	svc := newOrderService(newFakeOrderRepo(), newFakeUserRepo())
	ctx := context.Background()

	err := svc.Create(ctx, &models.Order{ClientID: 1, Description: "x"})
	assert.ErrorIs(t, err, ErrTitleRequired)

	err = svc.Create(ctx, &models.Order{Title: "t", Description: "x"})
	assert.ErrorIs(t, err, ErrClientRequired)

	err = svc.Create(ctx, &models.Order{Title: "t", ClientID: 1})
	assert.ErrorIs(t, err, ErrBriefRequired)

	// a client guide file satisfies the brief requirement
	err = svc.Create(ctx, &models.Order{Title: "t", ClientID: 1, ClientGuide: strp("guide_abc.pdf")})
	assert.NoError(t, err)
}

func TestCreate_ForcesInitialState(t *testing.T) {
	t.Parallel()

	orders := newFakeOrderRepo()
	svc := newOrderService(orders, newFakeUserRepo())

	w := int64(99)
	o := &models.Order{
		Title:         "t",
		Description:   "d",
		ClientID:      1,
		WriterID:      &w,
		Status:        models.StatusDelivered,
		PaymentStatus: models.PaymentPaid,
	}
	require.NoError(t, svc.Create(context.Background(), o))

	stored, err := orders.FindByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingAssignment, stored.Status)
	assert.Equal(t, models.PaymentUnpaid, stored.PaymentStatus)
	assert.Nil(t, stored.WriterID)
}

func TestGetByID_Visibility(t *testing.T) {
	t.Parallel()

	orders := newFakeOrderRepo()
	users := newFakeUserRepo()
	svc := newOrderService(orders, users)
	ctx := context.Background()

	o := seedOrder(t, orders, 1)

	// admin always
	_, err := svc.GetByID(ctx, o.ID, 50, authz.RoleAdmin)
	assert.NoError(t, err)

	// owning client
	_, err = svc.GetByID(ctx, o.ID, 1, authz.RoleClient)
	assert.NoError(t, err)

	// other client
	_, err = svc.GetByID(ctx, o.ID, 2, authz.RoleClient)
	assert.ErrorIs(t, err, ErrForbidden)

	// any writer sees the unassigned pending pool
	_, err = svc.GetByID(ctx, o.ID, 7, authz.RoleWriter)
	assert.NoError(t, err)

	// once claimed, only the assigned writer
	require.NoError(t, orders.Claim(ctx, o.ID, 7))
	_, err = svc.GetByID(ctx, o.ID, 7, authz.RoleWriter)
	assert.NoError(t, err)
	_, err = svc.GetByID(ctx, o.ID, 8, authz.RoleWriter)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestList_RoleScoping(t *testing.T) {
	t.Parallel()

	orders := newFakeOrderRepo()
	svc := newOrderService(orders, newFakeUserRepo())
	ctx := context.Background()

	a := seedOrder(t, orders, 1)
	seedOrder(t, orders, 2)
	claimed := seedOrder(t, orders, 2)
	require.NoError(t, orders.Claim(ctx, claimed.ID, 7))

	admin, err := svc.List(ctx, 50, authz.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, admin, 3)

	client, err := svc.List(ctx, 1, authz.RoleClient)
	require.NoError(t, err)
	require.Len(t, client, 1)
	assert.Equal(t, a.ID, client[0].ID)

	// writer: own claimed order + the open pool, not other writers' work
	writer, err := svc.List(ctx, 7, authz.RoleWriter)
	require.NoError(t, err)
	assert.Len(t, writer, 3)

	other, err := svc.List(ctx, 8, authz.RoleWriter)
	require.NoError(t, err)
	assert.Len(t, other, 2)

	_, err = svc.List(ctx, 1, 123)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAssign_RequiresApprovedWriter(t *testing.T) {
	t.Parallel()

	orders := newFakeOrderRepo()
	users := newFakeUserRepo()
	svc := newOrderService(orders, users)
	ctx := context.Background()

	o := seedOrder(t, orders, 1)

	unapproved := seedWriter(t, users, false)
	assert.ErrorIs(t, svc.Assign(ctx, o.ID, unapproved.ID), ErrNotAWriter)

	client := &models.User{Name: "C", Email: "c@example.com", RoleID: authz.RoleClient, Approved: true}
	require.NoError(t, users.Create(client))
	assert.ErrorIs(t, svc.Assign(ctx, o.ID, client.ID), ErrNotAWriter)

	assert.ErrorIs(t, svc.Assign(ctx, o.ID, 404), ErrNotAWriter)

	writer := seedWriter(t, users, true)
	require.NoError(t, svc.Assign(ctx, o.ID, writer.ID))

	got, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got.WriterID)
	assert.Equal(t, writer.ID, *got.WriterID)
	assert.Equal(t, models.StatusInProgress, got.Status)
}

func TestClaim_Conflicts(t *testing.T) {
	t.Parallel()

	orders := newFakeOrderRepo()
	svc := newOrderService(orders, newFakeUserRepo())
	ctx := context.Background()

	o := seedOrder(t, orders, 1)

	require.NoError(t, svc.Claim(ctx, o.ID, 7))

	// already taken, by anyone — including a repeat by the same writer
	assert.ErrorIs(t, svc.Claim(ctx, o.ID, 8), repositories.ErrOrderTaken)

	// the winner is busy now, so a second claim fails on the writer check first
	second := seedOrder(t, orders, 1)
	assert.ErrorIs(t, svc.Claim(ctx, second.ID, 7), repositories.ErrWriterBusy)

	assert.ErrorIs(t, svc.Claim(ctx, 9999, 8), repositories.ErrOrderNotFound)
}

func TestClaim_ConcurrentSameOrder(t *testing.T) {
	t.Parallel()

	orders := newFakeOrderRepo()
	svc := newOrderService(orders, newFakeUserRepo())
	ctx := context.Background()

	o := seedOrder(t, orders, 1)

	const writers = 16
	var wins, taken int64
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(writerID int64) {
			defer wg.Done()
			err := svc.Claim(ctx, o.ID, writerID)
			switch {
			case err == nil:
				atomic.AddInt64(&wins, 1)
			case errors.Is(err, repositories.ErrOrderTaken):
				atomic.AddInt64(&taken, 1)
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}(int64(100 + i))
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins)
	assert.Equal(t, int64(writers-1), taken)

	got, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got.WriterID)
	assert.Equal(t, models.StatusInProgress, got.Status)
}

func TestClaim_ConcurrentSameWriter(t *testing.T) {
	t.Parallel()

	orders := newFakeOrderRepo()
	svc := newOrderService(orders, newFakeUserRepo())
	ctx := context.Background()

	const n = 8
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, seedOrder(t, orders, 1).ID)
	}

	var wins, busy int64
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(orderID int64) {
			defer wg.Done()
			err := svc.Claim(ctx, orderID, 7)
			switch {
			case err == nil:
				atomic.AddInt64(&wins, 1)
			case errors.Is(err, repositories.ErrWriterBusy):
				atomic.AddInt64(&busy, 1)
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins, "a writer holds at most one active order")
	assert.Equal(t, int64(n-1), busy)
}

func TestUpdateStatus_PermissiveOverwrite(t *testing.T) {
	t.Parallel()

	orders := newFakeOrderRepo()
	svc := newOrderService(orders, newFakeUserRepo())
	ctx := context.Background()

	o := seedOrder(t, orders, 1)
	require.NoError(t, orders.UpdateStatus(ctx, o.ID, models.StatusDelivered))

	// any valid status overwrites, even "backwards"
	require.NoError(t, svc.UpdateStatus(ctx, o.ID, models.StatusPendingAssignment, 50, authz.RoleAdmin))
	got, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingAssignment, got.Status)

	assert.ErrorIs(t, svc.UpdateStatus(ctx, o.ID, "Cancelled", 50, authz.RoleAdmin), ErrUnknownStatus)
	assert.ErrorIs(t, svc.UpdateStatus(ctx, 9999, models.StatusSubmitted, 50, authz.RoleAdmin), repositories.ErrOrderNotFound)
}

func TestUpdateStatus_WriterMustOwn(t *testing.T) {
	t.Parallel()

	orders := newFakeOrderRepo()
	svc := newOrderService(orders, newFakeUserRepo())
	ctx := context.Background()

	o := seedOrder(t, orders, 1)

	assert.ErrorIs(t, svc.UpdateStatus(ctx, o.ID, models.StatusSubmitted, 7, authz.RoleWriter), ErrNotAssignedToYou)

	require.NoError(t, orders.Claim(ctx, o.ID, 7))
	assert.NoError(t, svc.UpdateStatus(ctx, o.ID, models.StatusSubmitted, 7, authz.RoleWriter))
	assert.ErrorIs(t, svc.UpdateStatus(ctx, o.ID, models.StatusSubmitted, 8, authz.RoleWriter), ErrNotAssignedToYou)
}

func TestSubmitWork(t *testing.T) {
	t.Parallel()

	orders := newFakeOrderRepo()
	conv := &fakeConverter{}
	svc := NewOrderService(orders, newFakeUserRepo(), conv, &fakeEmail{}, nil, t.TempDir())
	ctx := context.Background()

	o := seedOrder(t, orders, 1)
	require.NoError(t, orders.Claim(ctx, o.ID, 7))

	assert.ErrorIs(t, svc.SubmitWork(ctx, o.ID, 7, authz.RoleWriter, "  "), ErrNoFileAttached)
	assert.ErrorIs(t, svc.SubmitWork(ctx, o.ID, 8, authz.RoleWriter, "f.docx"), ErrNotAssignedToYou)

	require.NoError(t, svc.SubmitWork(ctx, o.ID, 7, authz.RoleWriter, "order_1_submission.docx"))

	got, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SubmissionFile)
	assert.Equal(t, "order_1_submission.docx", *got.SubmissionFile)
	assert.Equal(t, models.StatusSubmitted, got.Status)

	// preview conversion runs off the request path
	assert.Eventually(t, func() bool {
		got, err := orders.FindByID(ctx, o.ID)
		return err == nil && got.PreviewFile != nil && *got.PreviewFile == "preview.pdf"
	}, 2*time.Second, 10*time.Millisecond)

	// admin can submit on a writer's behalf
	o2 := seedOrder(t, orders, 1)
	require.NoError(t, orders.Claim(ctx, o2.ID, 8))
	assert.NoError(t, svc.SubmitWork(ctx, o2.ID, 50, authz.RoleAdmin, "fix.pdf"))
}

func TestSubmitWork_ConversionFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	orders := newFakeOrderRepo()
	conv := &fakeConverter{fail: true}
	svc := NewOrderService(orders, newFakeUserRepo(), conv, &fakeEmail{}, nil, t.TempDir())
	ctx := context.Background()

	o := seedOrder(t, orders, 1)
	require.NoError(t, orders.Claim(ctx, o.ID, 7))
	require.NoError(t, svc.SubmitWork(ctx, o.ID, 7, authz.RoleWriter, "essay.docx"))

	// submission sticks even though no preview ever appears
	assert.Never(t, func() bool {
		got, _ := orders.FindByID(ctx, o.ID)
		return got != nil && got.PreviewFile != nil
	}, 300*time.Millisecond, 25*time.Millisecond)

	got, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, got.Status)
}

func TestDeliver(t *testing.T) {
	t.Parallel()

	orders := newFakeOrderRepo()
	users := newFakeUserRepo()
	email := &fakeEmail{}
	svc := NewOrderService(orders, users, nil, email, nil, "/tmp")
	ctx := context.Background()

	client := &models.User{Name: "C", Email: "c@example.com", RoleID: authz.RoleClient, Approved: true}
	require.NoError(t, users.Create(client))

	o := seedOrder(t, orders, client.ID)
	require.NoError(t, svc.Deliver(ctx, o.ID))

	got, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, got.Status)

	assert.Eventually(t, func() bool {
		email.mu.Lock()
		defer email.mu.Unlock()
		for _, s := range email.sent {
			if s == "delivered" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, svc.Deliver(ctx, 9999), repositories.ErrOrderNotFound)
}
