// Package seed は本番環境の上位プレイヤーでローカルDBを初期化する。
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/metafam/metagame/internal/model"
	"github.com/metafam/metagame/internal/repository"
	"golang.org/x/sync/errgroup"
)

// defaultUpdateConcurrency はプレイヤー更新の同時実行数。
const defaultUpdateConcurrency = 8

// PlayerSource はシード元プレイヤーの取得元。
type PlayerSource interface {
	FetchTopPlayers(ctx context.Context, limit int) ([]SourcePlayer, error)
}

// Migrator はシード前のアカウント移行を行う。
type Migrator interface {
	ForceMigrate(ctx context.Context) error
}

// SkillIndex は(category, name)からスキルIDへの対応表。
// シード実行ごとに1回構築し、明示的に受け渡す。
type SkillIndex map[string]string

// NewSkillIndex はスキル一覧からSkillIndexを構築する。
func NewSkillIndex(skills []model.Skill) SkillIndex {
	idx := make(SkillIndex, len(skills))
	for _, s := range skills {
		idx[skillKey(s.Category, s.Name)] = s.ID
	}
	return idx
}

// Lookup はスキルIDを返す。
func (idx SkillIndex) Lookup(category, name string) (string, bool) {
	id, ok := idx[skillKey(category, name)]
	return id, ok
}

func skillKey(category, name string) string {
	return category + "\x00" + name
}

// Seeder はシード処理を統括する。
type Seeder struct {
	source   PlayerSource
	migrator Migrator
	repo     repository.SeedRepository
	logger   *slog.Logger
}

// NewSeeder はSeederを生成する。migratorがnilの場合はアカウント移行を行わない。
func NewSeeder(source PlayerSource, migrator Migrator, repo repository.SeedRepository, logger *slog.Logger) *Seeder {
	return &Seeder{source: source, migrator: migrator, repo: repo, logger: logger}
}

// Run は本番の上位numPlayers人の属性とスキルをローカルの同一アドレスのプレイヤーへ反映し、
// 更新したプレイヤー数を返す。
// フロー: アカウント移行 → 本番取得 → ローカルID照合・スキル索引構築 → player_skill全削除 → 並列更新
func (s *Seeder) Run(ctx context.Context, numPlayers int) (int, error) {
	if s.migrator != nil {
		s.logger.Info("アカウント移行を実行します")
		if err := s.migrator.ForceMigrate(ctx); err != nil {
			return 0, err
		}
	}

	s.logger.Info("本番DBからプレイヤーを取得します", slog.Int("limit", numPlayers))
	players, err := s.source.FetchTopPlayers(ctx, numPlayers)
	if err != nil {
		return 0, err
	}

	addresses := make([]string, 0, len(players))
	for _, p := range players {
		if p.EthereumAddress != "" {
			addresses = append(addresses, p.EthereumAddress)
		}
	}

	ids, err := s.repo.FindIDsByAddresses(ctx, addresses)
	if err != nil {
		return 0, err
	}
	skills, err := s.repo.ListSkills(ctx)
	if err != nil {
		return 0, err
	}

	updates := BuildUpdates(players, ids, NewSkillIndex(skills), s.logger)

	s.logger.Info("ローカルDBのプレイヤー情報を更新します", slog.Int("count", len(updates)))
	deleted, err := s.repo.DeleteAllPlayerSkills(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("player_skillを削除しました", slog.Int64("deleted", deleted))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultUpdateConcurrency)
	for _, u := range updates {
		g.Go(func() error {
			if err := s.repo.UpdatePlayer(gctx, u); err != nil {
				return fmt.Errorf("プレイヤー%sの更新に失敗しました: %w", u.Username, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	s.logger.Info("ローカルDBのシードが完了しました", slog.Int("players", len(updates)))
	return len(updates), nil
}

// BuildUpdates は本番プレイヤーをローカルIDに対応付けて更新内容に変換する。
// ローカルに存在しないプレイヤーと、索引にないスキルは除外する。
func BuildUpdates(players []SourcePlayer, ids map[string]string, skills SkillIndex, logger *slog.Logger) []model.PlayerSeedUpdate {
	updates := make([]model.PlayerSeedUpdate, 0, len(players))
	for _, p := range players {
		id, ok := ids[strings.ToLower(p.EthereumAddress)]
		if !ok {
			continue
		}

		u := model.PlayerSeedUpdate{
			PlayerID:          id,
			Username:          p.Username,
			AvailabilityHours: p.AvailableHours,
			Timezone:          p.Timezone,
			ColorMask:         p.ColorMask,
		}
		if p.Type != nil {
			typeID := p.Type.ID
			u.PlayerTypeID = &typeID
		}

		for _, ps := range p.Skills {
			skillID, ok := skills.Lookup(ps.Skill.Category, ps.Skill.Name)
			if !ok {
				logger.Warn("ローカルに存在しないスキルをスキップします",
					slog.String("username", p.Username),
					slog.String("category", ps.Skill.Category),
					slog.String("name", ps.Skill.Name),
				)
				continue
			}
			u.SkillIDs = append(u.SkillIDs, skillID)
		}

		updates = append(updates, u)
	}
	return updates
}
