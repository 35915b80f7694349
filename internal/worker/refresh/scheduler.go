// Package refresh はプロフィールキャッシュのバックグラウンド再同期を提供する。
// スケジューラとリトライ/バックオフ戦略を含む。
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/metafam/metagame/internal/model"
	"github.com/metafam/metagame/internal/repository"
)

// ProfileSyncer はプレイヤー1人のプロフィール同期を実行するインターフェース。
type ProfileSyncer interface {
	UpdateSingle(ctx context.Context, playerID string) (*model.UpdateSingleResult, error)
}

// Config はスケジューラの設定。
type Config struct {
	MaxConcurrency int
	BatchSize      int
	ProfileTTL     time.Duration
}

// Scheduler はプロフィール再同期のスケジューリングと並列制御を行う。
// ティッカーで再同期対象プレイヤーを取得し、
// semaphoreパターンで最大並列数を制御しながら同期を実行する。
type Scheduler struct {
	syncRepo repository.ProfileSyncRepository
	syncer   ProfileSyncer
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// 0以下の設定値はデフォルト値（並列4、バッチ100、TTL24時間）で補う。
func NewScheduler(
	syncRepo repository.ProfileSyncRepository,
	syncer ProfileSyncer,
	logger *slog.Logger,
	cfg Config,
) *Scheduler {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ProfileTTL <= 0 {
		cfg.ProfileTTL = 24 * time.Hour
	}
	return &Scheduler{
		syncRepo: syncRepo,
		syncer:   syncer,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("再同期スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.cfg.MaxConcurrency),
		slog.Int("batch_size", s.cfg.BatchSize),
	)

	// 起動直後に1回実行
	s.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("再同期スケジューラを停止しました")
			return
		case <-ticker.C:
			s.runAndLog(ctx)
		}
	}
}

func (s *Scheduler) runAndLog(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("再同期サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は再同期対象プレイヤーを1回取得し、並列で同期を実行する。
// 個々のプレイヤーの失敗はバックオフとして記録し、サイクル自体は失敗させない。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	states, err := s.syncRepo.ListDue(ctx, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	if len(states) == 0 {
		s.logger.Debug("再同期対象のプレイヤーはありません")
		return nil
	}

	s.logger.Info("再同期サイクルを開始します",
		slog.Int("player_count", len(states)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.cfg.MaxConcurrency)
	var wg sync.WaitGroup

	for _, state := range states {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(st *model.ProfileSyncState) {
			defer wg.Done()
			defer func() { <-sem }()

			s.syncPlayer(ctx, st)
		}(state)
	}

	wg.Wait()

	s.logger.Info("再同期サイクルが完了しました",
		slog.Int("player_count", len(states)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// syncPlayer は1人分の同期を実行し、結果を再同期状態に保存する。
func (s *Scheduler) syncPlayer(ctx context.Context, st *model.ProfileSyncState) {
	result, err := s.syncer.UpdateSingle(ctx, st.PlayerID)
	if err != nil {
		ApplyBackoff(st, err.Error(), s.now())
		s.logger.Warn("プロフィール同期に失敗しました",
			slog.String("player_id", st.PlayerID),
			slog.Int("consecutive_errors", st.ConsecutiveErrors),
			slog.Time("next_sync_at", st.NextSyncAt),
			slog.String("error", err.Error()),
		)
	} else {
		ApplySuccess(st, s.cfg.ProfileTTL, s.now())
		if len(result.UpdatedProfiles) > 0 {
			s.logger.Info("アカウント連携を更新しました",
				slog.String("player_id", st.PlayerID),
				slog.Any("updated_profiles", result.UpdatedProfiles),
			)
		}
	}

	if err := s.syncRepo.Save(ctx, st); err != nil {
		s.logger.Error("再同期状態の保存に失敗しました",
			slog.String("player_id", st.PlayerID),
			slog.String("error", err.Error()),
		)
	}
}
