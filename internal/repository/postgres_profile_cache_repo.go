package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/metafam/metagame/internal/model"
)

// PostgresProfileCacheRepo はPostgreSQLを使用したprofile_cacheリポジトリ。
type PostgresProfileCacheRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresProfileCacheRepo はPostgresProfileCacheRepoを生成する。
func NewPostgresProfileCacheRepo(db *sql.DB) *PostgresProfileCacheRepo {
	return &PostgresProfileCacheRepo{db: db, now: time.Now}
}

var _ ProfileCacheRepository = (*PostgresProfileCacheRepo)(nil)

// Upsert はプレイヤー単位でキャッシュ行をUPSERTする。
// Resolvedに含まれるカラムのみ上書きし、それ以外のカラムは既存値を維持する。
func (r *PostgresProfileCacheRepo) Upsert(ctx context.Context, cache *model.ProfileCache) error {
	query, args := buildProfileCacheUpsert(cache, r.now().UTC())
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("プロフィールキャッシュの更新に失敗しました: %w", err)
	}
	return nil
}

// buildProfileCacheUpsert はUPSERT文と引数を組み立てる。
// カラム名はmodel.ProfileColumnの定数からのみ取るため、SQLに外部入力は埋め込まれない。
func buildProfileCacheUpsert(cache *model.ProfileCache, now time.Time) (string, []any) {
	cols := []string{"player_id", "updated_at"}
	args := []any{cache.PlayerID, now}
	sets := []string{"updated_at = EXCLUDED.updated_at"}

	for _, col := range cache.Resolved {
		if !knownProfileColumn(col) {
			continue
		}
		cols = append(cols, string(col))
		args = append(args, cache.Value(col))
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		`INSERT INTO profile_cache (%s) VALUES (%s)
		 ON CONFLICT (player_id) DO UPDATE SET %s`,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(sets, ", "),
	)
	return query, args
}

func knownProfileColumn(col model.ProfileColumn) bool {
	if col == model.ProfileColumnPronouns {
		return true
	}
	for _, c := range model.BasicProfileColumns {
		if c == col {
			return true
		}
	}
	return false
}
