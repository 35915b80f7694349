package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/metafam/metagame/internal/model"
)

// PostgresProfileSyncRepo はPostgreSQLを使用した再同期状態リポジトリ。
type PostgresProfileSyncRepo struct {
	db *sql.DB
}

// NewPostgresProfileSyncRepo はPostgresProfileSyncRepoを生成する。
func NewPostgresProfileSyncRepo(db *sql.DB) *PostgresProfileSyncRepo {
	return &PostgresProfileSyncRepo{db: db}
}

var _ ProfileSyncRepository = (*PostgresProfileSyncRepo)(nil)

// ListDue は再同期対象のプレイヤーを取得する。
// 状態未作成のプレイヤーを優先し、次いでnext_sync_atの古い順に返す。
func (r *PostgresProfileSyncRepo) ListDue(ctx context.Context, limit int) ([]*model.ProfileSyncState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.ethereum_address,
		        COALESCE(s.next_sync_at, now()),
		        COALESCE(s.consecutive_errors, 0),
		        COALESCE(s.last_error, ''),
		        COALESCE(s.updated_at, now())
		 FROM player p
		 LEFT JOIN profile_sync_state s ON s.player_id = p.id
		 WHERE p.ethereum_address IS NOT NULL
		   AND p.ethereum_address <> ''
		   AND (s.player_id IS NULL OR s.next_sync_at <= now())
		 ORDER BY s.next_sync_at ASC NULLS FIRST
		 LIMIT $1
		 FOR UPDATE OF p SKIP LOCKED`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("再同期対象プレイヤーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var states []*model.ProfileSyncState
	for rows.Next() {
		st := &model.ProfileSyncState{}
		if err := rows.Scan(
			&st.PlayerID, &st.EthereumAddress,
			&st.NextSyncAt, &st.ConsecutiveErrors, &st.LastError, &st.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("再同期対象プレイヤーの読み取りに失敗しました: %w", err)
		}
		states = append(states, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("再同期対象プレイヤーの走査に失敗しました: %w", err)
	}

	return states, nil
}

// Save は再同期状態をUPSERTする。
func (r *PostgresProfileSyncRepo) Save(ctx context.Context, state *model.ProfileSyncState) error {
	var lastError sql.NullString
	if state.LastError != "" {
		lastError = sql.NullString{String: state.LastError, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profile_sync_state (player_id, next_sync_at, consecutive_errors, last_error, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (player_id) DO UPDATE SET
		     next_sync_at = EXCLUDED.next_sync_at,
		     consecutive_errors = EXCLUDED.consecutive_errors,
		     last_error = EXCLUDED.last_error,
		     updated_at = EXCLUDED.updated_at`,
		state.PlayerID, state.NextSyncAt, state.ConsecutiveErrors, lastError, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("再同期状態の保存に失敗しました: %w", err)
	}
	return nil
}

// MarkAllDue はウォレットアドレスを持つ全プレイヤーを即時再同期対象にする。
func (r *PostgresProfileSyncRepo) MarkAllDue(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO profile_sync_state (player_id, next_sync_at, updated_at)
		 SELECT id, $1, $1 FROM player
		 WHERE ethereum_address IS NOT NULL AND ethereum_address <> ''
		 ON CONFLICT (player_id) DO UPDATE SET
		     next_sync_at = EXCLUDED.next_sync_at,
		     updated_at = EXCLUDED.updated_at`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("再同期予約に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("影響行数の取得に失敗しました: %w", err)
	}
	return affected, nil
}
