// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// プロフィール同期結果のラベル値
const (
	SyncResultSuccess  = "success"
	SyncResultNotFound = "not_found"
	SyncResultError    = "error"
)

// ロール同期結果のラベル値
const (
	RoleResultAdded    = "added"
	RoleResultRemoved  = "removed"
	RoleResultSkipped  = "skipped"
	RoleResultFailed   = "failed"
	RoleResultUnmapped = "unmapped"
)

// MetricsCollector はメトリクス収集のインターフェース。
// アクション、トリガー、ワーカーから利用する。
type MetricsCollector interface {
	RecordProfileSync(result string)
	RecordProfileSyncLatency(duration time.Duration)
	RecordAccountLinked(accountType string)
	RecordRankRoleSync(result string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	profileSync        *prometheus.CounterVec
	profileSyncLatency prometheus.Histogram
	accountsLinked     *prometheus.CounterVec
	rankRoleSync       *prometheus.CounterVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		profileSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metagame_profile_sync_total",
			Help: "プロフィールキャッシュ同期の結果別件数",
		}, []string{"result"}),
		profileSyncLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "metagame_profile_sync_latency_seconds",
			Help:    "プロフィールキャッシュ同期1件あたりの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		accountsLinked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metagame_accounts_linked_total",
			Help: "新規作成または付け替えられたアカウント連携数",
		}, []string{"type"}),
		rankRoleSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metagame_rank_role_sync_total",
			Help: "Discordランクロール操作の結果別件数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.profileSync,
		c.profileSyncLatency,
		c.accountsLinked,
		c.rankRoleSync,
	)

	return c
}

// RecordProfileSync はプロフィール同期の結果を記録する。
func (c *Collector) RecordProfileSync(result string) {
	c.profileSync.WithLabelValues(result).Inc()
}

// RecordProfileSyncLatency は同期の所要時間を記録する。
func (c *Collector) RecordProfileSyncLatency(duration time.Duration) {
	c.profileSyncLatency.Observe(duration.Seconds())
}

// RecordAccountLinked はアカウント連携の変更を記録する。
func (c *Collector) RecordAccountLinked(accountType string) {
	c.accountsLinked.WithLabelValues(accountType).Inc()
}

// RecordRankRoleSync はロール操作の結果を記録する。
func (c *Collector) RecordRankRoleSync(result string) {
	c.rankRoleSync.WithLabelValues(result).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordProfileSync(string)               {}
func (Nop) RecordProfileSyncLatency(time.Duration) {}
func (Nop) RecordAccountLinked(string)             {}
func (Nop) RecordRankRoleSync(string)              {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
