// Package rankrole はプレイヤーのランク変更をDiscordのロールへ反映する。
package rankrole

import (
	"context"
	"log/slog"

	"github.com/metafam/metagame/internal/metrics"
	"github.com/metafam/metagame/internal/model"
	"github.com/metafam/metagame/internal/repository"
)

// ChatPlatform はギルド・メンバー・ロール操作を抽象化する。
// 存在しないギルドやメンバーはエラーではなくnilで返す。
type ChatPlatform interface {
	Guild(ctx context.Context, guildID string) (*model.ChatGuild, error)
	Member(ctx context.Context, guildID, userID string) (*model.ChatMember, error)
	// RemoveRole はロールを外し、実際に外れた場合のみtrueを返す。
	RemoveRole(ctx context.Context, guildID, userID, roleID string) (bool, error)
	AddRole(ctx context.Context, guildID, userID, roleID string) error
}

// Synchronizer はplayerRankUpdatedトリガーを処理する。
// 失敗はすべてログに記録し、呼び出し元へは返さない。
type Synchronizer struct {
	enabled   bool
	guildID   string
	players   repository.PlayerRepository
	guilds    repository.GuildRepository
	chat      ChatPlatform
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewSynchronizer はSynchronizerの新しいインスタンスを生成する。
// enabledがfalseの場合、リポジトリやDiscordには一切アクセスしない。
func NewSynchronizer(
	enabled bool,
	guildID string,
	players repository.PlayerRepository,
	guilds repository.GuildRepository,
	chat ChatPlatform,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Synchronizer {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Synchronizer{
		enabled:   enabled,
		guildID:   guildID,
		players:   players,
		guilds:    guilds,
		chat:      chat,
		collector: collector,
		logger:    logger,
	}
}

// PlayerRankUpdated は旧ランクのロールを外し、新ランクのロールを付与する。
func (s *Synchronizer) PlayerRankUpdated(ctx context.Context, oldPlayer, newPlayer *model.PlayerSnapshot) {
	if !s.enabled {
		return
	}
	if newPlayer == nil {
		return
	}

	log := s.logger.With(
		slog.String("player_id", newPlayer.ID),
		slog.String("username", newPlayer.Username),
	)
	log.Info("playerRankUpdated triggered")

	discordID, err := s.players.FindDiscordID(ctx, newPlayer.ID)
	if err != nil {
		log.Error("Discord IDの取得に失敗しました", slog.String("error", err.Error()))
		s.collector.RecordRankRoleSync(metrics.RoleResultFailed)
		return
	}
	if discordID == nil || newPlayer.Rank == nil {
		s.collector.RecordRankRoleSync(metrics.RoleResultSkipped)
		return
	}
	newRank := *newPlayer.Rank

	guild, err := s.chat.Guild(ctx, s.guildID)
	if err != nil {
		log.Error("ギルドの取得に失敗しました", slog.String("error", err.Error()))
		s.collector.RecordRankRoleSync(metrics.RoleResultFailed)
		return
	}
	if guild == nil {
		s.collector.RecordRankRoleSync(metrics.RoleResultSkipped)
		return
	}

	roles, err := s.guilds.FindRankRoleMap(ctx, s.guildID)
	if err != nil {
		log.Error("ランクロール対応表の取得に失敗しました", slog.String("error", err.Error()))
		s.collector.RecordRankRoleSync(metrics.RoleResultFailed)
		return
	}

	member, err := s.chat.Member(ctx, s.guildID, *discordID)
	if err != nil {
		log.Error("Discordメンバーの取得に失敗しました", slog.String("error", err.Error()))
		s.collector.RecordRankRoleSync(metrics.RoleResultFailed)
		return
	}
	if member == nil {
		log.Warn("Discordメンバーが見つかりません",
			slog.String("discord_id", *discordID),
			slog.String("guild", guild.Name),
		)
		s.collector.RecordRankRoleSync(metrics.RoleResultSkipped)
		return
	}

	var oldRank *model.Rank
	if oldPlayer != nil {
		oldRank = oldPlayer.Rank
	}

	if removed, ok := s.removeRankRole(ctx, log, *discordID, roles, oldRank, newRank); ok {
		log.Info("ランクロールを削除しました", slog.String("rank", string(removed)))
		s.collector.RecordRankRoleSync(metrics.RoleResultRemoved)
	}

	roleID, ok := roles[newRank]
	if !ok {
		log.Warn("ランクに対応するDiscordロールがありません", slog.String("rank", string(newRank)))
		s.collector.RecordRankRoleSync(metrics.RoleResultUnmapped)
		return
	}
	// memberは削除前に取得したものなので、新ランクのロールは削除対象から外してある
	if member.HasRole(roleID) {
		s.collector.RecordRankRoleSync(metrics.RoleResultSkipped)
		return
	}
	if err := s.chat.AddRole(ctx, s.guildID, *discordID, roleID); err != nil {
		log.Error("ランクロールの付与に失敗しました",
			slog.String("rank", string(newRank)),
			slog.String("error", err.Error()),
		)
		s.collector.RecordRankRoleSync(metrics.RoleResultFailed)
		return
	}
	log.Info("ランクロールを付与しました", slog.String("rank", string(newRank)))
	s.collector.RecordRankRoleSync(metrics.RoleResultAdded)
}

// removeRankRole は旧ランクのロールを外す。外せなかった場合はRankPriorityの順に
// 旧ランクと新ランク以外のロールを試し、最初に外れたところで止める。
// 新ランクのロールはフォールバックでも外さない（直後に付与し直すだけになるため）。
// 旧ランクと新ランクが同じ場合は旧ランクのロールも外さない。
func (s *Synchronizer) removeRankRole(
	ctx context.Context,
	log *slog.Logger,
	userID string,
	roles model.RankRoleMap,
	oldRank *model.Rank,
	newRank model.Rank,
) (model.Rank, bool) {
	if oldRank != nil && *oldRank != newRank {
		if s.tryRemove(ctx, log, userID, roles, *oldRank) {
			return *oldRank, true
		}
	}

	for _, rank := range model.RankPriority {
		if rank == newRank || (oldRank != nil && rank == *oldRank) {
			continue
		}
		if s.tryRemove(ctx, log, userID, roles, rank) {
			return rank, true
		}
	}
	return "", false
}

func (s *Synchronizer) tryRemove(ctx context.Context, log *slog.Logger, userID string, roles model.RankRoleMap, rank model.Rank) bool {
	roleID, ok := roles[rank]
	if !ok {
		return false
	}
	removed, err := s.chat.RemoveRole(ctx, s.guildID, userID, roleID)
	if err != nil {
		log.Error("ランクロールの削除に失敗しました",
			slog.String("rank", string(rank)),
			slog.String("error", err.Error()),
		)
		s.collector.RecordRankRoleSync(metrics.RoleResultFailed)
		return false
	}
	return removed
}
