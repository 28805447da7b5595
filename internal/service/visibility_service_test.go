package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/sourcing-service/internal/domain"
	"github.com/agrilink/sourcing-service/internal/service"
	"github.com/agrilink/sourcing-service/pkg/util"
)

type visibilityFixture struct {
	requests *memRequestRepo
	cache    *memViewCache
	svc      *service.VisibilityService
	buyer    *domain.User
	producer *domain.User
	other    *domain.User
}

func newVisibilityFixture(t *testing.T) *visibilityFixture {
	t.Helper()
	requests := newMemRequestRepo()
	cache := newMemViewCache()
	return &visibilityFixture{
		requests: requests,
		cache:    cache,
		svc:      service.NewVisibilityService(requests, cache),
		buyer:    &domain.User{ID: "b1", Email: "buyer@example.com", Name: "Buyer", Role: domain.RoleBuyer},
		producer: &domain.User{ID: "p1", Email: "ravi@example.com", Name: "Ravi", Role: domain.RoleProducer},
		other:    &domain.User{ID: "p2", Email: "anita@example.com", Name: "Anita", Role: domain.RoleProducer},
	}
}

func (f *visibilityFixture) seed(t *testing.T, producerEmail string, status domain.RequestStatus) *domain.Request {
	t.Helper()
	request := &domain.Request{
		Buyer:    domain.PartySnapshot{Name: "Buyer", Email: f.buyer.Email},
		Producer: domain.PartySnapshot{Name: "Producer", Email: producerEmail},
		CropName: "Rice",
		Quantity: "100kg",
		Price:    "₹3500",
		Deadline: time.Now().AddDate(0, 1, 0),
		Location: "Tamil Nadu",
		Status:   status,
	}
	require.NoError(t, f.requests.Create(context.Background(), request))
	return request
}

func TestVisibleRequests_BuyerSeesOwnAnyStatus(t *testing.T) {
	f := newVisibilityFixture(t)
	pending := f.seed(t, f.producer.Email, domain.RequestStatusPending)
	declined := f.seed(t, f.producer.Email, domain.RequestStatusDeclined)

	visible, err := f.svc.VisibleRequests(context.Background(), principalFor(f.buyer), service.PageRequest{})
	require.NoError(t, err)

	ids := requestIDs(visible)
	assert.ElementsMatch(t, []string{pending.ID, declined.ID}, ids)
}

func TestVisibleRequests_ProducerSeesGlobalPendingAndAssigned(t *testing.T) {
	f := newVisibilityFixture(t)
	pendingForOther := f.seed(t, f.other.Email, domain.RequestStatusPending)
	declinedForOther := f.seed(t, f.other.Email, domain.RequestStatusDeclined)
	acceptedOwn := f.seed(t, f.producer.Email, domain.RequestStatusAccepted)

	visible, err := f.svc.VisibleRequests(context.Background(), principalFor(f.producer), service.PageRequest{})
	require.NoError(t, err)

	ids := requestIDs(visible)
	assert.Contains(t, ids, pendingForOther.ID, "pending requests are broadcast to every producer")
	assert.Contains(t, ids, acceptedOwn.ID, "assigned requests stay visible past pending")
	assert.NotContains(t, ids, declinedForOther.ID, "settled requests of other producers are hidden")
}

func TestVisibleRequests_EmptyListNotNil(t *testing.T) {
	f := newVisibilityFixture(t)

	visible, err := f.svc.VisibleRequests(context.Background(), principalFor(f.buyer), service.PageRequest{})
	require.NoError(t, err)
	assert.NotNil(t, visible)
	assert.Empty(t, visible)
}

func TestVisibleRequests_CacheServedUntilInvalidated(t *testing.T) {
	f := newVisibilityFixture(t)
	f.seed(t, f.producer.Email, domain.RequestStatusPending)

	_, err := f.svc.VisibleRequests(context.Background(), principalFor(f.buyer), service.PageRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, f.cache.stores)

	// Second read hits the cache.
	_, err = f.svc.VisibleRequests(context.Background(), principalFor(f.buyer), service.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.stores)

	// A mutation invalidates; the next read recomputes and sees new data.
	fresh := f.seed(t, f.producer.Email, domain.RequestStatusPending)
	require.NoError(t, f.svc.InvalidateViews(context.Background()))

	visible, err := f.svc.VisibleRequests(context.Background(), principalFor(f.buyer), service.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, f.cache.stores)
	assert.Contains(t, requestIDs(visible), fresh.ID)
}

func TestVisibleRequests_PagesCoverTheWholeScope(t *testing.T) {
	f := newVisibilityFixture(t)
	var seeded []string
	for i := 0; i < 3; i++ {
		seeded = append(seeded, f.seed(t, f.producer.Email, domain.RequestStatusPending).ID)
		time.Sleep(time.Millisecond)
	}

	first, err := f.svc.VisibleRequests(context.Background(), principalFor(f.buyer), service.PageRequest{Page: 1, Size: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := f.svc.VisibleRequests(context.Background(), principalFor(f.buyer), service.PageRequest{Page: 2, Size: 2})
	require.NoError(t, err)
	require.Len(t, second, 1)

	// No row is lost or duplicated across the pages.
	assert.ElementsMatch(t, seeded, append(requestIDs(first), requestIDs(second)...))

	third, err := f.svc.VisibleRequests(context.Background(), principalFor(f.buyer), service.PageRequest{Page: 3, Size: 2})
	require.NoError(t, err)
	assert.Empty(t, third)
}

func TestVisibleRequests_CacheIsKeyedPerPage(t *testing.T) {
	f := newVisibilityFixture(t)
	for i := 0; i < 3; i++ {
		f.seed(t, f.producer.Email, domain.RequestStatusPending)
	}

	_, err := f.svc.VisibleRequests(context.Background(), principalFor(f.buyer), service.PageRequest{Page: 1, Size: 2})
	require.NoError(t, err)
	_, err = f.svc.VisibleRequests(context.Background(), principalFor(f.buyer), service.PageRequest{Page: 2, Size: 2})
	require.NoError(t, err)
	require.Equal(t, 2, f.cache.stores, "each page gets its own cache entry")

	// Re-reading either page hits the cache.
	_, err = f.svc.VisibleRequests(context.Background(), principalFor(f.buyer), service.PageRequest{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, f.cache.stores)
}

func TestPageRequest_Normalize(t *testing.T) {
	page := service.PageRequest{}.Normalize()
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.Size)

	page = service.PageRequest{Page: -3, Size: 10_000}.Normalize()
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 200, page.Size)
}

func TestVisibleRequest_PartyScoping(t *testing.T) {
	f := newVisibilityFixture(t)
	declined := f.seed(t, f.producer.Email, domain.RequestStatusDeclined)
	pending := f.seed(t, f.producer.Email, domain.RequestStatusPending)

	// The buyer who authored it can always read it.
	got, err := f.svc.VisibleRequest(context.Background(), principalFor(f.buyer), declined.ID)
	require.NoError(t, err)
	assert.Equal(t, declined.ID, got.ID)

	// An unrelated producer can read pending, not settled.
	_, err = f.svc.VisibleRequest(context.Background(), principalFor(f.other), pending.ID)
	require.NoError(t, err)
	_, err = f.svc.VisibleRequest(context.Background(), principalFor(f.other), declined.ID)
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "FORBIDDEN"))

	// The assigned producer reads it in any status.
	_, err = f.svc.VisibleRequest(context.Background(), principalFor(f.producer), declined.ID)
	require.NoError(t, err)
}

func TestVisibleRequest_Unknown(t *testing.T) {
	f := newVisibilityFixture(t)

	_, err := f.svc.VisibleRequest(context.Background(), principalFor(f.buyer), "missing")
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "NOT_FOUND"))
}

func requestIDs(requests []domain.Request) []string {
	ids := make([]string, 0, len(requests))
	for _, request := range requests {
		ids = append(ids, request.ID)
	}
	return ids
}
