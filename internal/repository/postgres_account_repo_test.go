package repository

import (
	"context"
	"testing"

	"github.com/metafam/metagame/internal/model"
)

func TestNewPostgresAccountRepo_Initializes(t *testing.T) {
	if NewPostgresAccountRepo(nil) == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestPostgresAccountRepo_Upsert_DestructiveReassignment(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresAccountRepo(db)
	ctx := context.Background()

	p1 := insertPlayer(t, db, "p1", "0x1")
	p2 := insertPlayer(t, db, "p2", "0x2")

	tests := []struct {
		name     string
		playerID string
		want     int64
	}{
		{"新規作成", p1, 1},
		{"同一プレイヤーへの再連携は変更なし", p1, 0},
		{"別プレイヤーへ付け替え", p2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Upsert(ctx, model.LinkedAccount{PlayerID: tt.playerID, Type: "TWITTER", Identifier: "metafam"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("affected = %d, want %d", got, tt.want)
			}
		})
	}

	var owner string
	if err := db.QueryRow(`SELECT player_id FROM player_account WHERE type = 'TWITTER' AND identifier = 'metafam'`).Scan(&owner); err != nil {
		t.Fatalf("連携の取得に失敗: %v", err)
	}
	if owner != p2 {
		t.Errorf("owner = %q, want %q", owner, p2)
	}
}

func TestPostgresAccountRepo_Upsert_UnknownTypeFails(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresAccountRepo(db)
	p := insertPlayer(t, db, "p3", "0x3")

	if _, err := repo.Upsert(context.Background(), model.LinkedAccount{PlayerID: p, Type: "MYSPACE", Identifier: "x"}); err == nil {
		t.Error("expected error for unknown account type")
	}
}
