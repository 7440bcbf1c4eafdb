package flockevent

import (
	"context"
	"testing"
	"time"

	"flockkeeper-backend/internal/models"
	"flockkeeper-backend/internal/testutil"
)

func TestListScopesOwnerAndRange(t *testing.T) {
	db := testutil.NewDB(t)
	day := func(m time.Month, d int) time.Time { return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC) }
	seed := []models.FlockEvent{
		{OwnerID: 1, Date: day(1, 5), Type: "broody", Description: "Brooding started in Reds batch"},
		{OwnerID: 1, Date: day(2, 5), Type: "hatching", Description: "Hatching in Reds batch"},
		{OwnerID: 1, Date: day(3, 5), Type: "other", Description: "Fence repaired"},
		{OwnerID: 2, Date: day(2, 6), Type: "other", Description: "someone else"},
	}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	all, err := List(context.Background(), db, 1, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all: want=3 got=%d", len(all))
	}
	if all[0].Description != "Fence repaired" {
		t.Fatalf("newest first: got=%q", all[0].Description)
	}

	ranged, err := List(context.Background(), db, 1, day(2, 1), day(2, 28))
	if err != nil {
		t.Fatalf("List ranged: %v", err)
	}
	if len(ranged) != 1 || ranged[0].Type != "hatching" {
		t.Fatalf("ranged: want one hatching event got=%+v", ranged)
	}
}
