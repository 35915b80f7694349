package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/metafam/metagame/internal/model"
)

// PostgresGuildRepo はPostgreSQLを使用したギルドリポジトリ。
type PostgresGuildRepo struct {
	db *sql.DB
}

// NewPostgresGuildRepo はPostgresGuildRepoを生成する。
func NewPostgresGuildRepo(db *sql.DB) *PostgresGuildRepo {
	return &PostgresGuildRepo{db: db}
}

var _ GuildRepository = (*PostgresGuildRepo)(nil)

// discordMetadata はguild.discord_metadataのうち参照する部分。
type discordMetadata struct {
	RankRoleIDs map[string]string `json:"rankRoleIds"`
}

// FindRankRoleMap はDiscordギルドIDに対応するランク→ロールIDの対応表を返す。
// ギルドが未登録の場合は空のマップを返す。
func (r *PostgresGuildRepo) FindRankRoleMap(ctx context.Context, discordGuildID string) (model.RankRoleMap, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT discord_metadata FROM guild WHERE discord_id = $1`,
		discordGuildID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RankRoleMap{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ギルドメタデータの取得に失敗しました: %w", err)
	}

	return parseRankRoleMap(raw)
}

// parseRankRoleMap はdiscord_metadataからランク→ロールIDを取り出す。
// 未知のランクと空のロールIDは読み飛ばす。
func parseRankRoleMap(raw []byte) (model.RankRoleMap, error) {
	roles := model.RankRoleMap{}
	if len(raw) == 0 {
		return roles, nil
	}

	var meta discordMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("discord_metadataの解析に失敗しました: %w", err)
	}

	for key, roleID := range meta.RankRoleIDs {
		rank := model.Rank(key)
		if !rank.Valid() || roleID == "" {
			continue
		}
		roles[rank] = roleID
	}
	return roles, nil
}
