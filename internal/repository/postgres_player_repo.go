package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/metafam/metagame/internal/model"
)

// PostgresPlayerRepo はPostgreSQLを使用したプレイヤーリポジトリ。
type PostgresPlayerRepo struct {
	db *sql.DB
}

// NewPostgresPlayerRepo はPostgresPlayerRepoを生成する。
func NewPostgresPlayerRepo(db *sql.DB) *PostgresPlayerRepo {
	return &PostgresPlayerRepo{db: db}
}

var _ PlayerRepository = (*PostgresPlayerRepo)(nil)

// FindByID は指定IDのプレイヤーを取得する。見つからない場合はnilを返す。
func (r *PostgresPlayerRepo) FindByID(ctx context.Context, id string) (*model.Player, error) {
	p := &model.Player{}
	var (
		username, address, discordID, rank, timezone sql.NullString
		availability, colorMask, playerTypeID        sql.NullInt64
	)

	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, ethereum_address, discord_id, rank,
		        availability_hours, timezone, color_mask, player_type_id,
		        created_at, updated_at
		 FROM player WHERE id = $1`,
		id,
	).Scan(
		&p.ID, &username, &address, &discordID, &rank,
		&availability, &timezone, &colorMask, &playerTypeID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プレイヤーの取得に失敗しました: %w", err)
	}

	p.Username = nullStringValue(username)
	p.EthereumAddress = nullStringValue(address)
	p.DiscordID = nullStringPtr(discordID)
	p.Timezone = nullStringPtr(timezone)
	p.AvailabilityHours = nullIntPtr(availability)
	p.ColorMask = nullIntPtr(colorMask)
	p.PlayerTypeID = nullIntPtr(playerTypeID)
	if rank.Valid {
		rk := model.Rank(rank.String)
		p.Rank = &rk
	}

	return p, nil
}

// FindWalletAddress はプレイヤーのウォレットアドレスを返す。
// プレイヤーが存在しない、またはアドレス未登録の場合は空文字列を返す。
func (r *PostgresPlayerRepo) FindWalletAddress(ctx context.Context, playerID string) (string, error) {
	var address sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT ethereum_address FROM player WHERE id = $1`,
		playerID,
	).Scan(&address)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("ウォレットアドレスの取得に失敗しました: %w", err)
	}
	return nullStringValue(address), nil
}

// FindDiscordID はプレイヤーのDiscord IDを返す。未登録の場合はnilを返す。
func (r *PostgresPlayerRepo) FindDiscordID(ctx context.Context, playerID string) (*string, error) {
	var discordID sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT discord_id FROM player WHERE id = $1`,
		playerID,
	).Scan(&discordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Discord IDの取得に失敗しました: %w", err)
	}
	if discordID.Valid && discordID.String == "" {
		return nil, nil
	}
	return nullStringPtr(discordID), nil
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullIntPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}
