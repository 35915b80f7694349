package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/metafam/metagame/internal/model"
)

// PostgresSeedRepo はローカルDBシード用のリポジトリ。
type PostgresSeedRepo struct {
	db *sql.DB
}

// NewPostgresSeedRepo はPostgresSeedRepoを生成する。
func NewPostgresSeedRepo(db *sql.DB) *PostgresSeedRepo {
	return &PostgresSeedRepo{db: db}
}

var _ SeedRepository = (*PostgresSeedRepo)(nil)

// FindIDsByAddresses はウォレットアドレス（小文字）からプレイヤーIDへの対応を返す。
func (r *PostgresSeedRepo) FindIDsByAddresses(ctx context.Context, addresses []string) (map[string]string, error) {
	lowered := make([]string, len(addresses))
	for i, a := range addresses {
		lowered[i] = strings.ToLower(a)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, lower(ethereum_address) FROM player WHERE lower(ethereum_address) = ANY($1)`,
		pq.Array(lowered),
	)
	if err != nil {
		return nil, fmt.Errorf("プレイヤーIDの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]string, len(addresses))
	for rows.Next() {
		var id, address string
		if err := rows.Scan(&id, &address); err != nil {
			return nil, fmt.Errorf("プレイヤーIDの読み取りに失敗しました: %w", err)
		}
		ids[address] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("プレイヤーIDの走査に失敗しました: %w", err)
	}
	return ids, nil
}

// ListSkills は全スキルを返す。
func (r *PostgresSeedRepo) ListSkills(ctx context.Context) ([]model.Skill, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, category, name FROM skill`)
	if err != nil {
		return nil, fmt.Errorf("スキル一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var skills []model.Skill
	for rows.Next() {
		var s model.Skill
		if err := rows.Scan(&s.ID, &s.Category, &s.Name); err != nil {
			return nil, fmt.Errorf("スキルの読み取りに失敗しました: %w", err)
		}
		skills = append(skills, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("スキル一覧の走査に失敗しました: %w", err)
	}
	return skills, nil
}

// DeleteAllPlayerSkills はplayer_skillを全削除し、削除件数を返す。
func (r *PostgresSeedRepo) DeleteAllPlayerSkills(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM player_skill`)
	if err != nil {
		return 0, fmt.Errorf("player_skillの削除に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("影響行数の取得に失敗しました: %w", err)
	}
	return affected, nil
}

// UpdatePlayer はプレイヤー属性の更新とスキルの挿入を同一トランザクションで行う。
func (r *PostgresSeedRepo) UpdatePlayer(ctx context.Context, update model.PlayerSeedUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE player SET
		     username = $2,
		     availability_hours = $3,
		     timezone = $4,
		     player_type_id = $5,
		     color_mask = $6,
		     updated_at = $7
		 WHERE id = $1`,
		update.PlayerID, update.Username,
		update.AvailabilityHours, update.Timezone,
		update.PlayerTypeID, update.ColorMask,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("プレイヤーの更新に失敗しました: %w", err)
	}

	for _, skillID := range update.SkillIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO player_skill (player_id, skill_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			update.PlayerID, skillID,
		); err != nil {
			return fmt.Errorf("スキルの挿入に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
