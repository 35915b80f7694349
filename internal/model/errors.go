// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Hasuraのアクション応答にも載せるため、原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, player, system
	Action   string // 呼び出し元向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodePlayerNotFound  = "PLAYER_NOT_FOUND"
	ErrCodeInvalidPlayerID = "INVALID_PLAYER_ID"
	ErrCodeInvalidPayload  = "INVALID_PAYLOAD"
	ErrCodeUnknownTrigger  = "UNKNOWN_TRIGGER"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewPlayerNotFoundError はプレイヤー未検出エラーを生成する。
// ウォレットアドレスが未登録のプレイヤーも同じ扱いとする。
func NewPlayerNotFoundError(playerID string) *APIError {
	return &APIError{
		Code:     ErrCodePlayerNotFound,
		Message:  fmt.Sprintf("プレイヤーが見つかりません: %s", playerID),
		Category: "player",
		Action:   "プレイヤーIDとウォレットアドレスの登録状況を確認してください。",
	}
}

// NewInvalidPlayerIDError はプレイヤーIDの形式エラーを生成する。
func NewInvalidPlayerIDError(playerID string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPlayerID,
		Message:  fmt.Sprintf("無効なプレイヤーIDです: %q", playerID),
		Category: "validation",
		Action:   "プレイヤーIDにはUUIDを指定してください。",
	}
}

// NewInvalidPayloadError はリクエストボディの解析エラーを生成する。
func NewInvalidPayloadError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPayload,
		Message:  fmt.Sprintf("リクエストボディが不正です: %s", reason),
		Category: "validation",
		Action:   "Hasuraのアクション/イベントペイロード形式を確認してください。",
	}
}

// NewUnknownTriggerError は未登録のイベントトリガーを受け取った場合のエラーを生成する。
func NewUnknownTriggerError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownTrigger,
		Message:  fmt.Sprintf("未登録のトリガーです: %s", name),
		Category: "validation",
		Action:   "Hasuraのイベントトリガー名とバックエンドの登録を確認してください。",
	}
}

// NewUnauthorizedError はWebhookシークレット不一致エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証に失敗しました。",
		Category: "auth",
		Action:   "Hasuraに設定したWebhookシークレットを確認してください。",
	}
}

// NewRateLimitedError は呼び出し元ごとのレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
