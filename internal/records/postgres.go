package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store on the tables created by the migrations package.
type PostgresStore struct {
	db  pgQuerier
	now func() time.Time
}

// NewPostgresStore initializes a store backed by pgxpool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("records: pgx pool required")
	}
	return newPostgresStore(pool)
}

func newPostgresStore(db pgQuerier) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

const serviceRequestColumns = `id::text, type, status, customer_name, customer_email, customer_phone, ` +
	`description, preferred_date, scheduled_date, created_at, updated_at`

// LogInquiry inserts one inquiry row.
func (s *PostgresStore) LogInquiry(ctx context.Context, message, response string) (*Inquiry, error) {
	id := uuid.New()
	query := `INSERT INTO customer_inquiries (id, message, response) VALUES ($1, $2, $3)`
	if _, err := s.db.Exec(ctx, query, id, message, response); err != nil {
		return nil, fmt.Errorf("records: log inquiry: %w", err)
	}
	return &Inquiry{ID: id.String(), Message: message, Response: response}, nil
}

// ListFAQs returns FAQ rows in display order.
func (s *PostgresStore) ListFAQs(ctx context.Context) ([]FAQ, error) {
	rows, err := s.db.Query(ctx, `SELECT question, answer FROM faqs ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("records: list faqs: %w", err)
	}
	defer rows.Close()

	var faqs []FAQ
	for rows.Next() {
		var faq FAQ
		if err := rows.Scan(&faq.Question, &faq.Answer); err != nil {
			return nil, fmt.Errorf("records: scan faq: %w", err)
		}
		faqs = append(faqs, faq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("records: list faqs: %w", err)
	}
	return faqs, nil
}

// ReplaceFAQs swaps the whole FAQ table for faqs in one transaction, keeping
// their order as the display position.
func (s *PostgresStore) ReplaceFAQs(ctx context.Context, faqs []FAQ) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("records: replace faqs: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM faqs`); err != nil {
		return fmt.Errorf("records: clear faqs: %w", err)
	}
	for i, faq := range faqs {
		if strings.TrimSpace(faq.Question) == "" || strings.TrimSpace(faq.Answer) == "" {
			return fmt.Errorf("records: faq %d: question and answer are required", i+1)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO faqs (question, answer, position) VALUES ($1, $2, $3)`,
			faq.Question, faq.Answer, i); err != nil {
			return fmt.Errorf("records: insert faq %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("records: replace faqs: %w", err)
	}
	return nil
}

// CreateServiceRequest inserts req with a fresh id.
func (s *PostgresStore) CreateServiceRequest(ctx context.Context, req ServiceRequest) (*ServiceRequest, error) {
	created := req
	created.ID = uuid.New().String()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = s.now().UTC()
	}
	query := `
		INSERT INTO service_requests (id, type, status, customer_name, customer_email, customer_phone,
			description, preferred_date, scheduled_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if _, err := s.db.Exec(ctx, query,
		created.ID,
		string(created.Type),
		string(created.Status),
		created.CustomerName,
		created.CustomerEmail,
		created.CustomerPhone,
		created.Description,
		toTimestamptz(created.PreferredDate),
		toTimestamptz(created.ScheduledDate),
		created.CreatedAt,
		toTimestamptz(created.UpdatedAt),
	); err != nil {
		return nil, fmt.Errorf("records: create service request: %w", err)
	}
	return &created, nil
}

// UpdateServiceRequest overwrites the mutable columns of req.
func (s *PostgresStore) UpdateServiceRequest(ctx context.Context, req ServiceRequest) (*ServiceRequest, error) {
	if strings.TrimSpace(req.ID) == "" {
		return nil, ErrIDRequired
	}
	updatedAt := s.now().UTC()
	query := `
		UPDATE service_requests
		SET type = $2, status = $3, customer_name = $4, customer_email = $5, customer_phone = $6,
			description = $7, preferred_date = $8, scheduled_date = $9, updated_at = $10
		WHERE id = $1
	`
	tag, err := s.db.Exec(ctx, query,
		req.ID,
		string(req.Type),
		string(req.Status),
		req.CustomerName,
		req.CustomerEmail,
		req.CustomerPhone,
		req.Description,
		toTimestamptz(req.PreferredDate),
		toTimestamptz(req.ScheduledDate),
		updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("records: update service request %s: %w", req.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.ID)
	}
	updated := req
	updated.UpdatedAt = &updatedAt
	return &updated, nil
}

// ListServiceRequests returns every request, newest first.
func (s *PostgresStore) ListServiceRequests(ctx context.Context) ([]ServiceRequest, error) {
	rows, err := s.db.Query(ctx, `SELECT `+serviceRequestColumns+` FROM service_requests ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("records: list service requests: %w", err)
	}
	defer rows.Close()

	var out []ServiceRequest
	for rows.Next() {
		req, err := scanServiceRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("records: list service requests: %w", err)
	}
	return out, nil
}

// GetServiceRequest fetches one request by id.
func (s *PostgresStore) GetServiceRequest(ctx context.Context, id string) (*ServiceRequest, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrIDRequired
	}
	row := s.db.QueryRow(ctx, `SELECT `+serviceRequestColumns+` FROM service_requests WHERE id = $1`, id)
	req, err := scanServiceRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return &req, nil
}

func scanServiceRequest(row pgx.Row) (ServiceRequest, error) {
	var (
		req                  ServiceRequest
		reqType, status      string
		preferred, scheduled pgtype.Timestamptz
		createdAt, updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&req.ID,
		&reqType,
		&status,
		&req.CustomerName,
		&req.CustomerEmail,
		&req.CustomerPhone,
		&req.Description,
		&preferred,
		&scheduled,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ServiceRequest{}, err
		}
		return ServiceRequest{}, fmt.Errorf("records: scan service request: %w", err)
	}
	req.Type = ServiceRequestType(reqType)
	req.Status = ServiceRequestStatus(status)
	req.PreferredDate = fromTimestamptz(preferred)
	req.ScheduledDate = fromTimestamptz(scheduled)
	if createdAt.Valid {
		req.CreatedAt = createdAt.Time.UTC()
	}
	req.UpdatedAt = fromTimestamptz(updatedAt)
	return req, nil
}

func toTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil || t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

func fromTimestamptz(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}
