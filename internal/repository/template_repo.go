package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beyondfire/cloud-platform/booking-service/internal/models"
)

type TemplateRepository struct {
	pool *pgxpool.Pool
}

func NewTemplateRepository(pool *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

// Create inserts a new service template.
func (r *TemplateRepository) Create(ctx context.Context, t *models.ServiceTemplate) error {
	query := `
		INSERT INTO service_templates (
			id, name, description, price, image, cpu, memory, storage,
			compose_template, proxy_template, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.Name, t.Description, t.Price, t.Image,
		t.Resources.CPU, t.Resources.Memory, t.Resources.Storage,
		t.ComposeTemplate, t.ProxyTemplate, t.Active,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("insert service template: %w", err)
	}

	return nil
}

// GetByID retrieves a template by ID regardless of active flag.
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.ServiceTemplate, error) {
	query := selectTemplate + ` WHERE id = $1`
	return r.scanTemplate(r.pool.QueryRow(ctx, query, id))
}

// List retrieves templates, optionally restricted to active ones.
func (r *TemplateRepository) List(ctx context.Context, activeOnly bool) ([]*models.ServiceTemplate, error) {
	query := selectTemplate
	if activeOnly {
		query += ` WHERE active ORDER BY name`
	} else {
		query += ` ORDER BY name`
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query service templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.ServiceTemplate
	for rows.Next() {
		t, err := r.scanTemplateRow(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// Update persists all mutable fields of a template.
func (r *TemplateRepository) Update(ctx context.Context, t *models.ServiceTemplate) error {
	query := `
		UPDATE service_templates SET
			name = $1,
			description = $2,
			price = $3,
			image = $4,
			cpu = $5,
			memory = $6,
			storage = $7,
			compose_template = $8,
			proxy_template = $9,
			active = $10,
			updated_at = NOW()
		WHERE id = $11
	`

	tag, err := r.pool.Exec(ctx, query,
		t.Name, t.Description, t.Price, t.Image,
		t.Resources.CPU, t.Resources.Memory, t.Resources.Storage,
		t.ComposeTemplate, t.ProxyTemplate, t.Active, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update service template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Count returns the number of templates.
func (r *TemplateRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM service_templates`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count service templates: %w", err)
	}
	return count, nil
}

const selectTemplate = `
	SELECT id, name, description, price, image, cpu, memory, storage,
		   compose_template, proxy_template, active, created_at, updated_at
	FROM service_templates`

func (r *TemplateRepository) scanTemplate(row pgx.Row) (*models.ServiceTemplate, error) {
	t := &models.ServiceTemplate{}
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.Price, &t.Image,
		&t.Resources.CPU, &t.Resources.Memory, &t.Resources.Storage,
		&t.ComposeTemplate, &t.ProxyTemplate, &t.Active, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan service template: %w", err)
	}
	return t, nil
}

func (r *TemplateRepository) scanTemplateRow(rows pgx.Rows) (*models.ServiceTemplate, error) {
	t := &models.ServiceTemplate{}
	err := rows.Scan(
		&t.ID, &t.Name, &t.Description, &t.Price, &t.Image,
		&t.Resources.CPU, &t.Resources.Memory, &t.Resources.Storage,
		&t.ComposeTemplate, &t.ProxyTemplate, &t.Active, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan service template row: %w", err)
	}
	return t, nil
}
