package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/metafam/metagame/internal/middleware"
	"github.com/metafam/metagame/internal/model"
)

// maxPayloadBytes はHasuraペイロードの最大サイズ。
const maxPayloadBytes = 1 << 20

// ProfileServiceInterface はアクションハンドラーが必要とするプロフィール同期サービス。
type ProfileServiceInterface interface {
	// UpdateSingle はプレイヤー1人のプロフィールキャッシュとアカウント連携を更新する。
	UpdateSingle(ctx context.Context, playerID string) (*model.UpdateSingleResult, error)
}

// ProfileSyncQueue は全プレイヤーの再同期を予約するインターフェース。
// repository.ProfileSyncRepositoryの部分集合。
type ProfileSyncQueue interface {
	MarkAllDue(ctx context.Context, now time.Time) (int64, error)
}

// ActionHandler はHasuraアクションのHTTPハンドラー。
type ActionHandler struct {
	profiles ProfileServiceInterface
	queue    ProfileSyncQueue
}

// NewActionHandler はActionHandlerを生成する。
func NewActionHandler(profiles ProfileServiceInterface, queue ProfileSyncQueue) *ActionHandler {
	return &ActionHandler{profiles: profiles, queue: queue}
}

// actionPayload はHasuraアクションのリクエストボディ。
type actionPayload struct {
	Action struct {
		Name string `json:"name"`
	} `json:"action"`
	Input struct {
		PlayerID string `json:"playerId"`
	} `json:"input"`
	SessionVariables map[string]string `json:"session_variables"`
}

// updateAllResponse は全件再同期予約の応答。
type updateAllResponse struct {
	Success bool  `json:"success"`
	Queued  int64 `json:"queued"`
}

// UpdateSingle はPOST /actions/idxCache を処理する。
// 対象プレイヤーはinput.playerId、無ければセッション変数x-hasura-user-idから決定する。
func (h *ActionHandler) UpdateSingle(w http.ResponseWriter, r *http.Request) {
	var payload actionPayload
	if err := decodePayload(w, r, &payload); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidPayloadError(err.Error()))
		return
	}

	playerID := resolvePlayerID(r, payload)
	if _, err := uuid.Parse(playerID); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidPlayerIDError(playerID))
		return
	}

	result, err := h.profiles.UpdateSingle(r.Context(), playerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// UpdateAll はPOST /actions/idxCache/all を処理する。
// 同期自体はワーカーが行い、ここでは全プレイヤーを即時同期対象にするだけ。
func (h *ActionHandler) UpdateAll(w http.ResponseWriter, r *http.Request) {
	queued, err := h.queue.MarkAllDue(r.Context(), time.Now())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("profile refresh queued for all players", slog.Int64("queued", queued))
	middleware.WriteJSON(w, http.StatusOK, updateAllResponse{Success: true, Queued: queued})
}

func resolvePlayerID(r *http.Request, payload actionPayload) string {
	if id := strings.TrimSpace(payload.Input.PlayerID); id != "" {
		return id
	}
	for k, v := range payload.SessionVariables {
		if strings.EqualFold(k, middleware.HasuraUserIDHeader) && v != "" {
			return v
		}
	}
	if id, err := middleware.PlayerIDFromContext(r.Context()); err == nil {
		return id
	}
	return ""
}

func decodePayload(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodePlayerNotFound, model.ErrCodeUnknownTrigger:
		return http.StatusNotFound
	case model.ErrCodeInvalidPlayerID, model.ErrCodeInvalidPayload:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
