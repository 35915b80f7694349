package repository

import (
	"context"
	"testing"
	"time"

	"github.com/metafam/metagame/internal/model"
)

func TestPostgresProfileSyncRepo_ListDueAndSave(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresProfileSyncRepo(db)
	ctx := context.Background()

	due := insertPlayer(t, db, "due", "0xdue")
	later := insertPlayer(t, db, "later", "0xlater")
	insertPlayer(t, db, "nowallet", "")

	now := time.Now().UTC()
	if err := repo.Save(ctx, &model.ProfileSyncState{PlayerID: later, NextSyncAt: now.Add(time.Hour), UpdatedAt: now}); err != nil {
		t.Fatalf("Saveに失敗: %v", err)
	}

	states, err := repo.ListDue(ctx, 10)
	if err != nil {
		t.Fatalf("ListDueに失敗: %v", err)
	}
	if len(states) != 1 {
		t.Fatalf("len(states) = %d, want 1", len(states))
	}
	if states[0].PlayerID != due || states[0].EthereumAddress != "0xdue" {
		t.Errorf("unexpected state: %+v", states[0])
	}

	affected, err := repo.MarkAllDue(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("MarkAllDueに失敗: %v", err)
	}
	if affected != 2 {
		t.Errorf("affected = %d, want 2", affected)
	}

	states, err = repo.ListDue(ctx, 10)
	if err != nil {
		t.Fatalf("ListDueに失敗: %v", err)
	}
	if len(states) != 2 {
		t.Errorf("len(states) = %d, want 2", len(states))
	}
}
