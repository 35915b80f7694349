// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/metafam/metagame/internal/model"
)

// PlayerRepository はプレイヤーデータの永続化インターフェース。
type PlayerRepository interface {
	// FindByID は指定IDのプレイヤーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Player, error)

	// FindWalletAddress はプレイヤーのウォレットアドレスを返す。
	// プレイヤーが存在しない、またはアドレス未登録の場合は空文字列を返す。
	FindWalletAddress(ctx context.Context, playerID string) (string, error)

	// FindDiscordID はプレイヤーのDiscord IDを返す。未登録の場合はnilを返す。
	FindDiscordID(ctx context.Context, playerID string) (*string, error)
}

// ProfileCacheRepository はprofile_cacheの永続化インターフェース。
type ProfileCacheRepository interface {
	// Upsert はプレイヤー単位でキャッシュ行をUPSERTする。
	// Resolvedに含まれるカラムのみ更新し、それ以外は既存値を維持する。
	Upsert(ctx context.Context, cache *model.ProfileCache) error
}

// AccountRepository はplayer_accountの永続化インターフェース。
type AccountRepository interface {
	// Upsert は(type, identifier)をキーにアカウント連携をUPSERTする。
	// 既に別プレイヤーに紐付いていた場合は付け替える（破壊的再割り当て）。
	// 行が挿入または付け替えられた場合のみ1以上を返す。
	Upsert(ctx context.Context, account model.LinkedAccount) (int64, error)
}

// GuildRepository はギルド（Discordサーバー）メタデータの永続化インターフェース。
type GuildRepository interface {
	// FindRankRoleMap はDiscordギルドIDに対応するランク→ロールIDの対応表を返す。
	// ギルドが未登録の場合は空のマップを返す。
	FindRankRoleMap(ctx context.Context, discordGuildID string) (model.RankRoleMap, error)
}

// ProfileSyncRepository はプロフィール再同期の状態管理インターフェース。
type ProfileSyncRepository interface {
	// ListDue は再同期対象のプレイヤーを取得する。
	// ウォレットアドレスを持ち、next_sync_at <= now() または状態未作成のプレイヤーを
	// FOR UPDATE SKIP LOCKEDで取得する。
	ListDue(ctx context.Context, limit int) ([]*model.ProfileSyncState, error)

	// Save は再同期状態をUPSERTする。
	Save(ctx context.Context, state *model.ProfileSyncState) error

	// MarkAllDue はウォレットアドレスを持つ全プレイヤーを即時再同期対象にする。
	// 対象件数を返す。
	MarkAllDue(ctx context.Context, now time.Time) (int64, error)
}

// SeedRepository はローカルDBシード用の書き込みインターフェース。
type SeedRepository interface {
	// FindIDsByAddresses はウォレットアドレスからプレイヤーIDへの対応を返す。
	FindIDsByAddresses(ctx context.Context, addresses []string) (map[string]string, error)

	// ListSkills は全スキルを返す。
	ListSkills(ctx context.Context) ([]model.Skill, error)

	// DeleteAllPlayerSkills はplayer_skillを全削除する。
	DeleteAllPlayerSkills(ctx context.Context) (int64, error)

	// UpdatePlayer はプレイヤー属性を更新し、スキルを挿入する。
	UpdatePlayer(ctx context.Context, update model.PlayerSeedUpdate) error
}
