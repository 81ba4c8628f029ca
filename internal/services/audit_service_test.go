package services

import (
	"context"
	"testing"

	"orgfolio/internal/models"
	"orgfolio/internal/testutil"
)

func TestAuditLog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAuditService(db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Log(ctx, AuditEntry{
		UserID:       "user-1",
		OrganismID:   "org-1",
		Action:       AuditUpsertPosition,
		ResourceType: "position",
		ResourceID:   "pos-1",
		IPAddress:    "127.0.0.1",
		RequestID:    "req-1",
		Changes:      map[string]interface{}{"quantity": "10"},
	})

	var entry models.AuditLog
	if err := db.First(&entry).Error; err != nil {
		t.Fatalf("expected audit entry even after the request ended: %v", err)
	}
	if entry.Action != AuditUpsertPosition || entry.ResourceID != "pos-1" || entry.OrganismID != "org-1" {
		t.Errorf("unexpected entry %+v", entry)
	}
	if entry.Changes != `{"quantity":"10"}` || entry.RequestID != "req-1" {
		t.Errorf("unexpected changes %s / request %s", entry.Changes, entry.RequestID)
	}
}

func TestAuditList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAuditService(db)
	ctx := context.Background()

	svc.Log(ctx, AuditEntry{UserID: "u", OrganismID: "org-1", Action: AuditCreatePortfolio, ResourceType: "portfolio", ResourceID: "pf-1"})
	svc.Log(ctx, AuditEntry{UserID: "u", OrganismID: "org-1", Action: AuditUpsertPosition, ResourceType: "position", ResourceID: "pos-1"})
	svc.Log(ctx, AuditEntry{UserID: "u", OrganismID: "org-2", Action: AuditCreatePortfolio, ResourceType: "portfolio", ResourceID: "pf-2"})
	svc.Log(ctx, AuditEntry{UserID: "pipeline", Action: AuditManualSnapshot, ResourceType: "price_history", ResourceID: "2024-01-10"})

	t.Run("scoped to the organism", func(t *testing.T) {
		entries, err := svc.List(ctx, AuditFilter{OrganismID: "org-1"})
		testutil.AssertNoError(t, err)
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		for _, e := range entries {
			if e.OrganismID != "org-1" {
				t.Errorf("leaked entry %+v", e)
			}
		}
	})

	t.Run("resource filter and limit", func(t *testing.T) {
		entries, err := svc.List(ctx, AuditFilter{OrganismID: "org-1", ResourceType: "position"})
		testutil.AssertNoError(t, err)
		if len(entries) != 1 || entries[0].ResourceID != "pos-1" {
			t.Errorf("unexpected entries %+v", entries)
		}

		entries, err = svc.List(ctx, AuditFilter{OrganismID: "org-1", Limit: 1})
		testutil.AssertNoError(t, err)
		if len(entries) != 1 {
			t.Errorf("expected limit to apply, got %d", len(entries))
		}
	})

	t.Run("organism required", func(t *testing.T) {
		_, err := svc.List(ctx, AuditFilter{})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}
