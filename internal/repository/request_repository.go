package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrilink/sourcing-service/internal/domain"
	"github.com/agrilink/sourcing-service/pkg/util"
)

// RequestFilter captures listing parameters. VisibleToProducer composes the
// marketplace scope: pending requests system-wide plus anything assigned to
// that producer email, any status.
type RequestFilter struct {
	BuyerEmail        *string
	ProducerEmail     *string
	Statuses          []domain.RequestStatus
	VisibleToProducer *string
	Limit             int
	Offset            int
}

// RequestRepository encapsulates request persistence. UpdateStatus is the
// only way a stored status changes; unconditional updates do not exist.
type RequestRepository interface {
	Create(ctx context.Context, request *domain.Request) error
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.Request, error)
	UpdateStatus(ctx context.Context, id string, expected, next domain.RequestStatus) (*domain.Request, error)
}

type requestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository instantiates repository.
func NewRequestRepository(pool *pgxpool.Pool) RequestRepository {
	return &requestRepository{pool: pool}
}

const requestColumns = `id, buyer_name, buyer_email, buyer_contact,
               producer_name, producer_email, producer_contact,
               crop_name, quantity, price, deadline, location, notes,
               status, created_at, updated_at`

func (r *requestRepository) Create(ctx context.Context, request *domain.Request) error {
	const query = `
        INSERT INTO requests (buyer_name, buyer_email, buyer_contact,
            producer_name, producer_email, producer_contact,
            crop_name, quantity, price, deadline, location, notes, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		request.Buyer.Name,
		request.Buyer.Email,
		request.Buyer.Contact,
		request.Producer.Name,
		request.Producer.Email,
		request.Producer.Contact,
		request.CropName,
		request.Quantity,
		request.Price,
		request.Deadline,
		request.Location,
		request.Notes,
		request.Status,
	).Scan(&request.ID, &request.CreatedAt, &request.UpdatedAt)
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id=$1`

	var request domain.Request
	if err := scanRequest(r.pool.QueryRow(ctx, query, id).Scan, &request); err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *requestRepository) ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.Request, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.BuyerEmail != nil {
		args = append(args, *filter.BuyerEmail)
		clauses = append(clauses, fmt.Sprintf("buyer_email=$%d", len(args)))
	}
	if filter.ProducerEmail != nil {
		args = append(args, *filter.ProducerEmail)
		clauses = append(clauses, fmt.Sprintf("producer_email=$%d", len(args)))
	}
	if filter.VisibleToProducer != nil {
		args = append(args, *filter.VisibleToProducer)
		clauses = append(clauses, fmt.Sprintf("(status='pending' OR producer_email=$%d)", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM requests WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		requestColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

// UpdateStatus performs the conditional write: the row changes only when the
// stored status still equals expected. A zero-row outcome is split into
// not-found vs conflict by re-reading the row, so callers can distinguish a
// missing request from a lost race.
func (r *requestRepository) UpdateStatus(ctx context.Context, id string, expected, next domain.RequestStatus) (*domain.Request, error) {
	query := `
        UPDATE requests SET status=$1, updated_at=NOW()
        WHERE id=$2 AND status=$3
        RETURNING ` + requestColumns

	var request domain.Request
	err := scanRequest(r.pool.QueryRow(ctx, query, next, id, expected).Scan, &request)
	if err == nil {
		return &request, nil
	}
	if err != pgx.ErrNoRows {
		return nil, err
	}

	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, util.NewConflict("request already settled", map[string]any{
		"request_id":      id,
		"expected_status": expected,
		"current_status":  current.Status,
	})
}

func scanRequests(rows pgx.Rows) ([]domain.Request, error) {
	var result []domain.Request
	for rows.Next() {
		var request domain.Request
		if err := scanRequest(rows.Scan, &request); err != nil {
			return nil, err
		}
		result = append(result, request)
	}
	return result, rows.Err()
}

func scanRequest(scan func(...any) error, request *domain.Request) error {
	return scan(
		&request.ID,
		&request.Buyer.Name,
		&request.Buyer.Email,
		&request.Buyer.Contact,
		&request.Producer.Name,
		&request.Producer.Email,
		&request.Producer.Contact,
		&request.CropName,
		&request.Quantity,
		&request.Price,
		&request.Deadline,
		&request.Location,
		&request.Notes,
		&request.Status,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
}
