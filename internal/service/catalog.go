package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/beyondfire/cloud-platform/booking-service/internal/apperrors"
	"github.com/beyondfire/cloud-platform/booking-service/internal/logger"
	"github.com/beyondfire/cloud-platform/booking-service/internal/models"
	"github.com/beyondfire/cloud-platform/booking-service/internal/repository"
)

// CatalogService manages the immutable-per-version list of service
// templates customers can book. Templates are administered here and only
// read by the booking flow.
type CatalogService struct {
	templates TemplateStore
}

func NewCatalogService(templates TemplateStore) *CatalogService {
	return &CatalogService{templates: templates}
}

// ListActive returns the templates customers can currently book.
func (s *CatalogService) ListActive(ctx context.Context) ([]*models.ServiceTemplate, error) {
	return s.templates.List(ctx, true)
}

// ListAll returns every template, including deactivated ones.
func (s *CatalogService) ListAll(ctx context.Context) ([]*models.ServiceTemplate, error) {
	return s.templates.List(ctx, false)
}

// Get returns a template by ID.
func (s *CatalogService) Get(ctx context.Context, id string) (*models.ServiceTemplate, error) {
	t, err := s.templates.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Newf(apperrors.CodeTemplateNotFound, "service template %s not found", id)
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// Create registers a new service template.
func (s *CatalogService) Create(ctx context.Context, req *models.CreateTemplateRequest) (*models.ServiceTemplate, error) {
	t := &models.ServiceTemplate{
		ID:              req.ID,
		Name:            req.Name,
		Description:     req.Description,
		Price:           req.Price,
		Image:           req.Image,
		Resources:       req.Resources,
		ComposeTemplate: req.ComposeTemplate,
		ProxyTemplate:   req.ProxyTemplate,
		Active:          true,
	}

	if err := s.templates.Create(ctx, t); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Newf(apperrors.CodeInvalid, "service template %s already exists", req.ID)
		}
		return nil, fmt.Errorf("create template: %w", err)
	}

	logger.L().Info("service template created", zap.String("template_id", t.ID))
	return t, nil
}

// Update applies the non-nil fields of req to a template. Existing
// bookings are unaffected: they snapshot the template at booking time.
func (s *CatalogService) Update(ctx context.Context, id string, req *models.UpdateTemplateRequest) (*models.ServiceTemplate, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		t.Name = *req.Name
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Price != nil {
		t.Price = *req.Price
	}
	if req.Image != nil {
		t.Image = *req.Image
	}
	if req.Resources != nil {
		t.Resources = *req.Resources
	}
	if req.ComposeTemplate != nil {
		t.ComposeTemplate = *req.ComposeTemplate
	}
	if req.ProxyTemplate != nil {
		t.ProxyTemplate = *req.ProxyTemplate
	}
	if req.Active != nil {
		t.Active = *req.Active
	}

	if err := s.templates.Update(ctx, t); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Newf(apperrors.CodeTemplateNotFound, "service template %s not found", id)
		}
		return nil, fmt.Errorf("update template: %w", err)
	}

	logger.L().Info("service template updated", zap.String("template_id", t.ID), zap.Bool("active", t.Active))
	return t, nil
}
