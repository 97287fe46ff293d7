package service

import (
	"context"
	"testing"

	"github.com/beyondfire/cloud-platform/booking-service/internal/apperrors"
	"github.com/beyondfire/cloud-platform/booking-service/internal/models"
)

func TestCatalogCreateAndGet(t *testing.T) {
	svc := NewCatalogService(newFakeTemplateStore())

	created, err := svc.Create(context.Background(), &models.CreateTemplateRequest{
		ID:              "gitea",
		Name:            "Gitea",
		Description:     "Self-hosted git service",
		Price:           9.99,
		Image:           "gitea/gitea:1.22",
		ComposeTemplate: "services: {}",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !created.Active {
		t.Error("new template not active")
	}

	got, err := svc.Get(context.Background(), "gitea")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Gitea" {
		t.Errorf("name = %q, want Gitea", got.Name)
	}
}

func TestCatalogCreateDuplicate(t *testing.T) {
	svc := NewCatalogService(newFakeTemplateStore(giteaTemplate()))

	_, err := svc.Create(context.Background(), &models.CreateTemplateRequest{
		ID:              "gitea",
		Name:            "Gitea Again",
		Description:     "dup",
		Price:           1,
		Image:           "gitea/gitea:1.22",
		ComposeTemplate: "services: {}",
	})
	if !apperrors.IsCode(err, apperrors.CodeInvalid) {
		t.Fatalf("err = %v, want code %s", err, apperrors.CodeInvalid)
	}
}

func TestCatalogGetUnknown(t *testing.T) {
	svc := NewCatalogService(newFakeTemplateStore())

	_, err := svc.Get(context.Background(), "nope")
	if !apperrors.IsCode(err, apperrors.CodeTemplateNotFound) {
		t.Fatalf("err = %v, want code %s", err, apperrors.CodeTemplateNotFound)
	}
}

func TestCatalogUpdatePatchesFields(t *testing.T) {
	svc := NewCatalogService(newFakeTemplateStore(giteaTemplate()))

	price := 19.99
	active := false
	updated, err := svc.Update(context.Background(), "gitea", &models.UpdateTemplateRequest{
		Price:  &price,
		Active: &active,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Price != 19.99 {
		t.Errorf("price = %v, want 19.99", updated.Price)
	}
	if updated.Active {
		t.Error("active flag not cleared")
	}
	// Untouched fields survive the patch.
	if updated.Name != "Gitea" {
		t.Errorf("name = %q, want Gitea", updated.Name)
	}
	if updated.Image != "gitea/gitea:1.22" {
		t.Errorf("image changed unexpectedly: %q", updated.Image)
	}
}

func TestCatalogListActiveFilters(t *testing.T) {
	retired := giteaTemplate()
	retired.ID = "retired"
	retired.Active = false
	svc := NewCatalogService(newFakeTemplateStore(giteaTemplate(), retired))

	activeOnly, err := svc.ListActive(context.Background())
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(activeOnly) != 1 || activeOnly[0].ID != "gitea" {
		t.Errorf("active list = %v, want just gitea", activeOnly)
	}

	all, err := svc.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("full list has %d entries, want 2", len(all))
	}
}
