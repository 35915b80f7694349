package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/metafam/metagame/internal/model"
)

// PostgresAccountRepo はPostgreSQLを使用したplayer_accountリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

var _ AccountRepository = (*PostgresAccountRepo)(nil)

// Upsert は(type, identifier)をキーにアカウント連携をUPSERTする。
// 既に同じプレイヤーに紐付いている場合は更新せず0を返す。
// 別プレイヤーに紐付いていた場合はこのプレイヤーへ付け替える。
func (r *PostgresAccountRepo) Upsert(ctx context.Context, account model.LinkedAccount) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO player_account (player_id, type, identifier)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (type, identifier) DO UPDATE SET
		     player_id = EXCLUDED.player_id,
		     updated_at = now()
		 WHERE player_account.player_id IS DISTINCT FROM EXCLUDED.player_id`,
		account.PlayerID, string(account.Type), account.Identifier,
	)
	if err != nil {
		return 0, fmt.Errorf("アカウント連携の更新に失敗しました (%s): %w", account.Type, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("影響行数の取得に失敗しました: %w", err)
	}
	return affected, nil
}
