package testfixtures

import (
	"context"
	"errors"
	"testing"

	"github.com/example/family-scheduler/internal/application"
	"github.com/example/family-scheduler/internal/reminder"
)

type capturingFamilyRepo struct {
	application.FamilyRepository
	created application.Family
}

func (c *capturingFamilyRepo) CreateFamily(ctx context.Context, family application.Family) (application.Family, error) {
	c.created = family
	return family, nil
}

func TestServiceFactoryNewFamilyService(t *testing.T) {
	factory := NewServiceFactory()
	repo := &capturingFamilyRepo{}

	svc := factory.NewFamilyService(FamilyServiceDeps{Families: repo})
	family, err := svc.CreateFamily(context.Background(), application.CreateFamilyParams{Name: "Smith"})
	if err != nil {
		t.Fatalf("CreateFamily returned error: %v", err)
	}

	if family.ID != "id-1" || repo.created.ID != family.ID {
		t.Fatalf("expected generated ID id-1, got %q", family.ID)
	}
	if !family.CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Now(), family.CreatedAt)
	}
}

func TestServiceFactoryNewReminderEngine(t *testing.T) {
	factory := NewServiceFactory()
	engine := factory.NewReminderEngine(reminder.Config{})

	if _, err := engine.ProcessReminders(context.Background()); !errors.Is(err, reminder.ErrEngineNotConfigured) {
		t.Fatalf("expected ErrEngineNotConfigured, got %v", err)
	}
}
