package service_test

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/agrilink/sourcing-service/internal/auth"
	"github.com/agrilink/sourcing-service/internal/domain"
	"github.com/agrilink/sourcing-service/internal/repository"
	"github.com/agrilink/sourcing-service/pkg/util"
)

// memUserRepo is an in-memory repository.UserRepository.
type memUserRepo struct {
	mu      sync.Mutex
	byID    map[string]domain.User
	failing bool // next Create fails once when set
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: map[string]domain.User{}}
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		r.failing = false
		return context.DeadlineExceeded
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.byID[user.ID] = *user
	return nil
}

func (r *memUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.byID[user.ID] = *user
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.byID[id]; ok {
		copied := user
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.byID {
		if strings.EqualFold(user.Email, email) {
			copied := user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) ListByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.User
	for _, user := range r.byID {
		if user.Role == role {
			result = append(result, user)
		}
	}
	return result, nil
}

// memAccountRepo is an in-memory repository.AccountRepository.
type memAccountRepo struct {
	mu      sync.Mutex
	byEmail map[string]domain.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{byEmail: map[string]domain.Account{}}
}

func (r *memAccountRepo) Create(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account.ID = uuid.NewString()
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	r.byEmail[account.Email] = *account
	return nil
}

func (r *memAccountRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for email, account := range r.byEmail {
		if account.ID == id {
			account.PasswordHash = passwordHash
			r.byEmail[email] = account
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *memAccountRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account, ok := r.byEmail[email]; ok {
		copied := account
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *memAccountRepo) MarkProvisioned(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for email, account := range r.byEmail {
		if account.ID == id {
			account.Provisioned = true
			r.byEmail[email] = account
			return nil
		}
	}
	return pgx.ErrNoRows
}

// memRequestRepo is an in-memory repository.RequestRepository honoring the
// conditional-write contract of UpdateStatus.
type memRequestRepo struct {
	mu   sync.Mutex
	byID map[string]domain.Request
}

func newMemRequestRepo() *memRequestRepo {
	return &memRequestRepo{byID: map[string]domain.Request{}}
}

func (r *memRequestRepo) Create(_ context.Context, request *domain.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	request.ID = uuid.NewString()
	request.CreatedAt = time.Now()
	request.UpdatedAt = request.CreatedAt
	r.byID[request.ID] = *request
	return nil
}

func (r *memRequestRepo) GetByID(_ context.Context, id string) (*domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if request, ok := r.byID[id]; ok {
		copied := request
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *memRequestRepo) ListWithFilter(_ context.Context, filter repository.RequestFilter) ([]domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Request
	for _, request := range r.byID {
		if filter.BuyerEmail != nil && !strings.EqualFold(request.Buyer.Email, *filter.BuyerEmail) {
			continue
		}
		if filter.ProducerEmail != nil && !strings.EqualFold(request.Producer.Email, *filter.ProducerEmail) {
			continue
		}
		if filter.VisibleToProducer != nil {
			pending := request.Status == domain.RequestStatusPending
			assigned := strings.EqualFold(request.Producer.Email, *filter.VisibleToProducer)
			if !pending && !assigned {
				continue
			}
		}
		if len(filter.Statuses) > 0 {
			matched := false
			for _, status := range filter.Statuses {
				if request.Status == status {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		result = append(result, request)
	}

	// Same contract as the SQL store: newest first, then offset and limit.
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memRequestRepo) UpdateStatus(_ context.Context, id string, expected, next domain.RequestStatus) (*domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if request.Status != expected {
		return nil, util.NewConflict("request already settled", map[string]any{
			"request_id":      id,
			"expected_status": expected,
			"current_status":  request.Status,
		})
	}
	request.Status = next
	request.UpdatedAt = time.Now()
	r.byID[id] = request
	copied := request
	return &copied, nil
}

// memViewCache is an in-memory service.ViewCache with generation semantics.
type memViewCache struct {
	mu     sync.Mutex
	gen    int
	views  map[string][]domain.Request
	stores int
}

func newMemViewCache() *memViewCache {
	return &memViewCache{views: map[string][]domain.Request{}}
}

func (c *memViewCache) key(view string) string {
	return view + "#" + strconv.Itoa(c.gen)
}

func (c *memViewCache) Fetch(_ context.Context, view string) ([]domain.Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cached, ok := c.views[c.key(view)]
	return cached, ok
}

func (c *memViewCache) Store(_ context.Context, view string, requests []domain.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores++
	c.views[c.key(view)] = requests
}

func (c *memViewCache) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return nil
}

func principalFor(user *domain.User) *auth.Principal {
	return &auth.Principal{
		AccountID: uuid.NewString(),
		Email:     user.Email,
		Role:      user.Role,
		Profile:   user,
	}
}
