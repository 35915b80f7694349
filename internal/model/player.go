// Package model はドメインモデルを定義する。
package model

import "time"

// Rank はプレイヤーのランクを表す。player_rank列挙テーブルの値と一致する。
type Rank string

const (
	RankDiamond  Rank = "DIAMOND"
	RankPlatinum Rank = "PLATINUM"
	RankGold     Rank = "GOLD"
	RankSilver   Rank = "SILVER"
	RankBronze   Rank = "BRONZE"
)

// RankPriority はランクの固定順序（上位から）。
// ロール削除のフォールバックはこの順序で走査する。マップのキー順には依存しない。
var RankPriority = []Rank{
	RankDiamond,
	RankPlatinum,
	RankGold,
	RankSilver,
	RankBronze,
}

// Valid はランクが既知の値かを返す。
func (r Rank) Valid() bool {
	for _, known := range RankPriority {
		if r == known {
			return true
		}
	}
	return false
}

// Player はMetaGameのプレイヤーを表す。
type Player struct {
	ID                string
	Username          string
	EthereumAddress   string
	DiscordID         *string
	Rank              *Rank
	AvailabilityHours *int
	Timezone          *string
	ColorMask         *int
	PlayerTypeID      *int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RankRoleMap はランクからDiscordロールIDへの対応表。
// guild.discord_metadata.rankRoleIds から読み込む。読み取り専用。
type RankRoleMap map[Rank]string

// AccountType はplayer_account.typeの値（TWITTER, GITHUB等）。
type AccountType string

// LinkedAccount は検証済みの外部アカウント連携を表す。
// (Type, Identifier) は高々1人のプレイヤーに紐付く。
type LinkedAccount struct {
	PlayerID   string
	Type       AccountType
	Identifier string
}

// ProfileSyncState はプロフィールキャッシュ再同期の状態を表す。
type ProfileSyncState struct {
	PlayerID          string
	EthereumAddress   string
	NextSyncAt        time.Time
	ConsecutiveErrors int
	LastError         string
	UpdatedAt         time.Time
}

// ChatGuild はチャットプラットフォーム上のサーバー（Discordギルド）。
type ChatGuild struct {
	ID   string
	Name string
}

// ChatMember はギルドに所属するメンバーと現在のロール。
type ChatMember struct {
	UserID string
	Roles  []string
}

// HasRole はメンバーがロールを持つかを返す。
func (m *ChatMember) HasRole(roleID string) bool {
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// PlayerSnapshot はイベントトリガーで受け取るplayer行のスナップショット。
type PlayerSnapshot struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Rank     *Rank  `json:"rank"`
}
