package refresh

import (
	"time"

	"github.com/metafam/metagame/internal/model"
)

const (
	// initialBackoff は指数バックオフの初回遅延（30分）。
	initialBackoff = 30 * time.Minute
	// maxBackoff は指数バックオフの最大遅延（12時間）。
	maxBackoff = 12 * time.Hour
	// maxErrorLength はlast_errorに保存するエラーメッセージの最大長。
	maxErrorLength = 500
)

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回30分、2倍ずつ増加、最大12時間。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// ApplySuccess は同期成功時に状態をリセットし、ttl後に次回同期を設定する。
func ApplySuccess(state *model.ProfileSyncState, ttl time.Duration, now time.Time) {
	state.ConsecutiveErrors = 0
	state.LastError = ""
	state.NextSyncAt = now.Add(ttl)
	state.UpdatedAt = now
}

// ApplyBackoff は同期失敗時に連続エラー回数をインクリメントし、
// 指数バックオフでnext_sync_atを設定する。
func ApplyBackoff(state *model.ProfileSyncState, reason string, now time.Time) {
	state.ConsecutiveErrors++
	if len(reason) > maxErrorLength {
		reason = reason[:maxErrorLength]
	}
	state.LastError = reason
	state.NextSyncAt = now.Add(CalculateBackoff(state.ConsecutiveErrors - 1))
	state.UpdatedAt = now
}
