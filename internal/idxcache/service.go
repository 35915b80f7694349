// Package idxcache はプレイヤーの分散IDプロフィールを解決し、キャッシュへ書き込む。
package idxcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/metafam/metagame/internal/ceramic"
	"github.com/metafam/metagame/internal/metrics"
	"github.com/metafam/metagame/internal/model"
	"github.com/metafam/metagame/internal/repository"
	"github.com/metafam/metagame/internal/security"
	"golang.org/x/sync/errgroup"
)

// defaultAccountConcurrency はアカウントUPSERTの同時実行数の既定値。
const defaultAccountConcurrency = 4

// IdentityNetwork はCeramicノードへのアクセスを抽象化する。
type IdentityNetwork interface {
	ResolveLink(ctx context.Context, address string) (string, error)
	GetDocument(ctx context.Context, did string, kind ceramic.DocumentKind, out any) (bool, error)
}

// LegacyProfileSource は3Boxレガシープロフィールの取得元。
type LegacyProfileSource interface {
	GetProfile(ctx context.Context, address string) (*model.BasicProfile, error)
}

// Service はupdateSingleアクションを処理する。
// ウォレット → CAIP-10リンク → IDXドキュメント（またはレガシー） → profile_cache / player_account の順に同期する。
type Service struct {
	players     repository.PlayerRepository
	caches      repository.ProfileCacheRepository
	accounts    repository.AccountRepository
	network     IdentityNetwork
	legacy      LegacyProfileSource
	sanitizer   security.ContentSanitizerService
	policy      LinkPolicy
	collector   metrics.MetricsCollector
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// Option はServiceの任意設定。
type Option func(*Service)

// WithLinkPolicy はアカウント連携ポリシーを設定する。
func WithLinkPolicy(p LinkPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithMetrics はメトリクスコレクタを設定する。
func WithMetrics(c metrics.MetricsCollector) Option {
	return func(s *Service) { s.collector = c }
}

// WithAccountConcurrency はアカウントUPSERTの同時実行数を設定する。
func WithAccountConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	players repository.PlayerRepository,
	caches repository.ProfileCacheRepository,
	accounts repository.AccountRepository,
	network IdentityNetwork,
	legacy LegacyProfileSource,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		players:     players,
		caches:      caches,
		accounts:    accounts,
		network:     network,
		legacy:      legacy,
		sanitizer:   sanitizer,
		policy:      DestructiveReassignment{},
		collector:   metrics.Nop{},
		logger:      logger,
		concurrency: defaultAccountConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateSingle はプレイヤー1人のプロフィールキャッシュとアカウント連携を更新する。
// ウォレットアドレスが未登録の場合はPLAYER_NOT_FOUNDを返す。
func (s *Service) UpdateSingle(ctx context.Context, playerID string) (*model.UpdateSingleResult, error) {
	start := s.now()
	result, err := s.updateSingle(ctx, playerID)
	s.collector.RecordProfileSyncLatency(s.now().Sub(start))

	var apiErr *model.APIError
	switch {
	case err == nil:
		s.collector.RecordProfileSync(metrics.SyncResultSuccess)
	case errors.As(err, &apiErr) && apiErr.Code == model.ErrCodePlayerNotFound:
		s.collector.RecordProfileSync(metrics.SyncResultNotFound)
	default:
		s.collector.RecordProfileSync(metrics.SyncResultError)
	}
	return result, err
}

func (s *Service) updateSingle(ctx context.Context, playerID string) (*model.UpdateSingleResult, error) {
	address, err := s.players.FindWalletAddress(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("ウォレットアドレスの取得に失敗しました: %w", err)
	}
	if address == "" {
		return nil, model.NewPlayerNotFoundError(playerID)
	}

	did, err := s.network.ResolveLink(ctx, address)
	if err != nil {
		return nil, err
	}
	if did == "" {
		s.logger.Debug("CAIP-10リンクがありません", slog.String("address", address))
	}

	if err := s.syncProfile(ctx, playerID, address, did); err != nil {
		if !errors.Is(err, ceramic.ErrNoDID) {
			return nil, err
		}
		s.logger.Debug("DIDが存在しないためプロフィールの同期をスキップしました",
			slog.String("player_id", playerID),
		)
	}

	updated := []string{}
	if did != "" {
		updated = s.syncAccounts(ctx, playerID, did)
	}

	return &model.UpdateSingleResult{Success: true, UpdatedProfiles: updated}, nil
}

// syncProfile はbasicProfile/extendedProfileを取得しprofile_cacheへUPSERTする。
// basicProfileが無い場合はレガシープロフィールで代替する。
func (s *Service) syncProfile(ctx context.Context, playerID, address, did string) error {
	var basic *model.BasicProfile
	var extended *model.ExtendedProfile

	if did != "" {
		var bp model.BasicProfile
		found, err := s.network.GetDocument(ctx, did, ceramic.BasicProfile, &bp)
		if err != nil {
			return err
		}
		if found {
			basic = &bp
		}

		var ep model.ExtendedProfile
		found, err = s.network.GetDocument(ctx, did, ceramic.ExtendedProfile, &ep)
		if err != nil {
			return err
		}
		if found {
			extended = &ep
		}
	}

	if basic == nil {
		lp, err := s.legacy.GetProfile(ctx, address)
		if err != nil {
			return fmt.Errorf("レガシープロフィールの取得に失敗しました: %w", err)
		}
		basic = lp
	}

	if basic == nil {
		s.logger.Debug("プロフィールがありません", slog.String("address", address))
		return nil
	}

	if err := s.caches.Upsert(ctx, s.buildCache(playerID, basic, extended)); err != nil {
		return fmt.Errorf("プロフィールキャッシュの更新に失敗しました: %w", err)
	}
	return nil
}

// buildCache はプロフィールドキュメントからキャッシュ行を組み立てる。
// basicProfileは全基本カラムを、extendedProfileはpronounsのみを解決済みにする。
func (s *Service) buildCache(playerID string, basic *model.BasicProfile, extended *model.ExtendedProfile) *model.ProfileCache {
	text := func(v *string) *string { return security.SanitizePtr(s.sanitizer, v) }

	cache := &model.ProfileCache{
		PlayerID:           playerID,
		Name:               text(basic.Name),
		Description:        text(basic.Description),
		Emoji:              text(basic.Emoji),
		ImageURL:           imageSrc(basic.Image),
		BackgroundImageURL: imageSrc(basic.Background),
		Gender:             text(basic.Gender),
		Location:           text(basic.HomeLocation),
		CountryCode:        text(basic.ResidenceCountry),
		Website:            basic.URL,
	}
	cache.Resolve(model.BasicProfileColumns...)

	if extended != nil {
		cache.Pronouns = text(extended.Pronouns)
		cache.Resolve(model.ProfileColumnPronouns)
	}
	return cache
}

func imageSrc(img *model.ImageSources) *string {
	if img == nil || img.Original.Src == "" {
		return nil
	}
	src := img.Original.Src
	return &src
}

// syncAccounts はalsoKnownAsのアカウントをplayer_accountへUPSERTし、
// 挿入または付け替えが発生したアカウント種別をドキュメント順に返す。
// 取得や個別のUPSERTの失敗はログに残し、呼び出し元へは伝播しない。
func (s *Service) syncAccounts(ctx context.Context, playerID, did string) []string {
	updated := []string{}

	var aka model.AlsoKnownAs
	found, err := s.network.GetDocument(ctx, did, ceramic.AlsoKnownAs, &aka)
	if err != nil {
		s.logger.Error("alsoKnownAsの取得に失敗しました",
			slog.String("player_id", playerID),
			slog.String("error", err.Error()),
		)
		return updated
	}
	if !found {
		return updated
	}

	linked := make([]model.AccountType, len(aka.Accounts))

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, acc := range aka.Accounts {
		accountType := NormalizeAccountType(acc.Host)
		if accountType == "" {
			s.logger.Error("alsoKnownAsのホスト名がありません",
				slog.String("player_id", playerID),
				slog.String("account_id", acc.ID),
			)
			continue
		}
		if acc.ID == "" {
			s.logger.Warn("alsoKnownAsのアカウントIDがありません",
				slog.String("player_id", playerID),
				slog.String("type", string(accountType)),
			)
			continue
		}

		g.Go(func() error {
			if s.linkAccount(ctx, LinkClaim{
				PlayerID:     playerID,
				DID:          did,
				Type:         accountType,
				Identifier:   acc.ID,
				Attestations: acc.Attestations,
			}) {
				linked[i] = accountType
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, t := range linked {
		if t != "" {
			updated = append(updated, string(t))
		}
	}
	return updated
}

// linkAccount は1件のアカウント連携を書き込み、行が変化したかを返す。
func (s *Service) linkAccount(ctx context.Context, claim LinkClaim) bool {
	logAttrs := []any{
		slog.String("player_id", claim.PlayerID),
		slog.String("type", string(claim.Type)),
		slog.String("identifier", claim.Identifier),
	}

	if err := s.policy.Authorize(ctx, claim); err != nil {
		s.logger.Warn("アカウント連携を拒否しました", append(logAttrs, slog.String("error", err.Error()))...)
		return false
	}

	affected, err := s.accounts.Upsert(ctx, model.LinkedAccount{
		PlayerID:   claim.PlayerID,
		Type:       claim.Type,
		Identifier: claim.Identifier,
	})
	if err != nil {
		s.logger.Warn("アカウント連携の書き込みに失敗しました", append(logAttrs, slog.String("error", err.Error()))...)
		return false
	}
	if affected == 0 {
		return false
	}

	s.collector.RecordAccountLinked(string(claim.Type))
	s.logger.Info("アカウント連携を更新しました", logAttrs...)
	return true
}
