package usecase

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/campops/procurement-service/internal/model"
	"github.com/campops/procurement-service/internal/notification"
	"github.com/campops/procurement-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	rows map[string]model.Notification
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]model.Notification{}}
}

func (r *fakeRepo) CreateBatch(_ context.Context, rows []model.Notification) error {
	for _, row := range rows {
		r.rows[row.ID] = row
	}
	return nil
}

func (r *fakeRepo) ListByUser(_ context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	var out []model.Notification
	for _, row := range r.rows {
		if row.UserID != userID {
			continue
		}
		if unreadOnly && row.IsRead {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) UnreadCount(_ context.Context, userID string) (int, error) {
	count := 0
	for _, row := range r.rows {
		if row.UserID == userID && !row.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *fakeRepo) MarkRead(_ context.Context, userID string, ids []string) (int64, error) {
	var marked int64
	for _, id := range ids {
		row, ok := r.rows[id]
		if !ok || row.UserID != userID || row.IsRead {
			continue
		}
		row.IsRead = true
		r.rows[id] = row
		marked++
	}
	return marked, nil
}

func (r *fakeRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	var marked int64
	for id, row := range r.rows {
		if row.UserID == userID && !row.IsRead {
			row.IsRead = true
			r.rows[id] = row
			marked++
		}
	}
	return marked, nil
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (*model.Notification, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (r *fakeRepo) Delete(_ context.Context, id string) error {
	delete(r.rows, id)
	return nil
}

type fakeRef struct {
	users     map[string]model.User
	reviewers []model.User
}

func (r *fakeRef) PropertyByID(_ context.Context, _ string) (*model.Property, error) {
	return nil, nil
}

func (r *fakeRef) SupplierByID(_ context.Context, _ string) (*model.Supplier, error) {
	return nil, nil
}

func (r *fakeRef) SupplierNames(_ context.Context, _ []string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (r *fakeRef) MatchSupplierByName(_ context.Context, _ string) (*model.Supplier, error) {
	return nil, nil
}

func (r *fakeRef) UserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *fakeRef) ListReviewers(_ context.Context) ([]model.User, error) {
	return r.reviewers, nil
}

func reviewer(id, email string) model.User {
	return model.User{
		BaseModel: model.BaseModel{ID: id},
		Email:     email,
		FullName:  "Reviewer " + id,
		Role:      model.RoleSupervisor,
		IsActive:  true,
	}
}

func testOrder() *model.Order {
	return &model.Order{
		BaseModel:   model.BaseModel{ID: "ord-1"},
		PropertyID:  "prop-1",
		OrderNumber: "YRC-20260817",
		Status:      model.OrderStatusSubmitted,
		CreatedBy:   "worker-1",
	}
}

func TestOrderSubmittedNotifiesEveryReviewer(t *testing.T) {
	repo := newFakeRepo()
	ref := &fakeRef{reviewers: []model.User{reviewer("sup-1", "sup1@camp.test"), reviewer("sup-2", "sup2@camp.test")}}
	uc := NewNotificationUseCase(repo, ref, nil, logger.NewNop())

	err := uc.OrderSubmitted(context.Background(), testOrder(), "Yukon River Camp", "Dana W")
	require.NoError(t, err)

	require.Len(t, repo.rows, 2)
	for _, row := range repo.rows {
		assert.Equal(t, model.NotificationOrderSubmitted, row.Type)
		assert.Equal(t, "New Order Submitted", row.Title)
		assert.Contains(t, row.Message, "YRC-20260817")
		assert.Contains(t, row.Message, "Yukon River Camp")
		require.NotNil(t, row.OrderID)
		assert.Equal(t, "ord-1", *row.OrderID)
	}
}

func TestOrderReviewedNotifiesCreatorOnly(t *testing.T) {
	repo := newFakeRepo()
	ref := &fakeRef{
		users: map[string]model.User{
			"worker-1": {BaseModel: model.BaseModel{ID: "worker-1"}, Email: "worker@camp.test", Role: model.RoleCampWorker},
		},
		reviewers: []model.User{reviewer("sup-1", "sup1@camp.test")},
	}
	uc := NewNotificationUseCase(repo, ref, nil, logger.NewNop())

	err := uc.OrderReviewed(context.Background(), testOrder(), "request_changes", "Sam P")
	require.NoError(t, err)

	require.Len(t, repo.rows, 1)
	for _, row := range repo.rows {
		assert.Equal(t, "worker-1", row.UserID)
		assert.Equal(t, "Changes Requested", row.Title)
	}
}

func TestOrderReviewedUnknownCreator(t *testing.T) {
	repo := newFakeRepo()
	uc := NewNotificationUseCase(repo, &fakeRef{}, nil, logger.NewNop())

	err := uc.OrderReviewed(context.Background(), testOrder(), "approve", "Sam P")
	assert.True(t, model.IsCode(err, model.ErrCodeNotFound))
	assert.Empty(t, repo.rows)
}

func TestItemsFlaggedFansOutPerReviewerPerItem(t *testing.T) {
	repo := newFakeRepo()
	ref := &fakeRef{reviewers: []model.User{reviewer("sup-1", ""), reviewer("sup-2", "")}}
	uc := NewNotificationUseCase(repo, ref, nil, logger.NewNop())

	flagged := []notification.FlaggedItem{
		{OrderItemID: "oi-1", ItemName: "Cilantro", IssueDescription: "wilted and slimy on arrival"},
		{OrderItemID: "oi-2", ItemName: "Eggs", IssueDescription: "half the case cracked"},
	}
	err := uc.ItemsFlagged(context.Background(), testOrder(), "Yukon River Camp", flagged)
	require.NoError(t, err)

	require.Len(t, repo.rows, 4)
	titles := map[string]int{}
	for _, row := range repo.rows {
		assert.Equal(t, model.NotificationItemFlagged, row.Type)
		assert.Contains(t, row.Message, "Yukon River Camp: ")
		titles[row.Title]++
	}
	assert.Equal(t, 2, titles["Item Flagged: Cilantro"])
	assert.Equal(t, 2, titles["Item Flagged: Eggs"])
}

func TestItemsFlaggedNoItemsIsNoop(t *testing.T) {
	repo := newFakeRepo()
	uc := NewNotificationUseCase(repo, &fakeRef{}, nil, logger.NewNop())

	require.NoError(t, uc.ItemsFlagged(context.Background(), testOrder(), "Yukon River Camp", nil))
	assert.Empty(t, repo.rows)
}

func TestListMineReportsUnreadAndRespectsFilter(t *testing.T) {
	repo := newFakeRepo()
	now := time.Now().UTC()
	repo.rows["n1"] = model.Notification{BaseModel: model.BaseModel{ID: "n1", CreatedAt: now}, UserID: "u1", IsRead: false}
	repo.rows["n2"] = model.Notification{BaseModel: model.BaseModel{ID: "n2", CreatedAt: now.Add(-time.Minute)}, UserID: "u1", IsRead: true}
	repo.rows["n3"] = model.Notification{BaseModel: model.BaseModel{ID: "n3", CreatedAt: now}, UserID: "u2", IsRead: false}

	uc := NewNotificationUseCase(repo, &fakeRef{}, nil, logger.NewNop())

	list, err := uc.ListMine(context.Background(), "u1", false, 0)
	require.NoError(t, err)
	assert.Len(t, list.Notifications, 2)
	assert.Equal(t, 1, list.UnreadCount)

	unread, err := uc.ListMine(context.Background(), "u1", true, 10)
	require.NoError(t, err)
	assert.Len(t, unread.Notifications, 1)
	assert.Equal(t, "n1", unread.Notifications[0].ID)
}

func TestMarkReadSkipsForeignRows(t *testing.T) {
	repo := newFakeRepo()
	repo.rows["n1"] = model.Notification{BaseModel: model.BaseModel{ID: "n1"}, UserID: "u1"}
	repo.rows["n2"] = model.Notification{BaseModel: model.BaseModel{ID: "n2"}, UserID: "u2"}

	uc := NewNotificationUseCase(repo, &fakeRef{}, nil, logger.NewNop())

	marked, err := uc.MarkRead(context.Background(), "u1", []string{"n1", "n2"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)
	assert.True(t, repo.rows["n1"].IsRead)
	assert.False(t, repo.rows["n2"].IsRead)
}

func TestDeleteEnforcesOwnership(t *testing.T) {
	repo := newFakeRepo()
	repo.rows["n1"] = model.Notification{BaseModel: model.BaseModel{ID: "n1"}, UserID: "u1"}

	uc := NewNotificationUseCase(repo, &fakeRef{}, nil, logger.NewNop())

	err := uc.Delete(context.Background(), "u2", "n1")
	assert.True(t, model.IsCode(err, model.ErrCodeForbidden))

	require.NoError(t, uc.Delete(context.Background(), "u1", "n1"))
	assert.Empty(t, repo.rows)

	err = uc.Delete(context.Background(), "u1", "n1")
	assert.True(t, model.IsCode(err, model.ErrCodeNotFound))
}
