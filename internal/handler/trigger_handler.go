package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/metafam/metagame/internal/middleware"
	"github.com/metafam/metagame/internal/model"
)

// TriggerPlayerRankUpdated はランク変更イベントトリガーの名前。
const TriggerPlayerRankUpdated = "playerRankUpdated"

// RankRoleSyncInterface はランク変更トリガーの処理を行うインターフェース。
type RankRoleSyncInterface interface {
	PlayerRankUpdated(ctx context.Context, oldPlayer, newPlayer *model.PlayerSnapshot)
}

// triggerPayload はHasuraイベントトリガーのリクエストボディ。
type triggerPayload struct {
	ID    string `json:"id"`
	Event struct {
		Op   string `json:"op"`
		Data struct {
			Old json.RawMessage `json:"old"`
			New json.RawMessage `json:"new"`
		} `json:"data"`
	} `json:"event"`
	Trigger struct {
		Name string `json:"name"`
	} `json:"trigger"`
}

// TriggerHandler はHasuraイベントトリガーをトリガー名で振り分ける。
type TriggerHandler struct {
	handlers map[string]func(ctx context.Context, p *triggerPayload) error
}

// NewTriggerHandler はTriggerHandlerを生成する。
func NewTriggerHandler(rankSync RankRoleSyncInterface) *TriggerHandler {
	return &TriggerHandler{
		handlers: map[string]func(ctx context.Context, p *triggerPayload) error{
			TriggerPlayerRankUpdated: func(ctx context.Context, p *triggerPayload) error {
				oldPlayer, err := decodeSnapshot(p.Event.Data.Old)
				if err != nil {
					return err
				}
				newPlayer, err := decodeSnapshot(p.Event.Data.New)
				if err != nil {
					return err
				}
				rankSync.PlayerRankUpdated(ctx, oldPlayer, newPlayer)
				return nil
			},
		},
	}
}

// Handle はPOST /triggers を処理する。
// 登録済みトリガーは処理結果にかかわらず200を返す。
func (h *TriggerHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var payload triggerPayload
	if err := decodePayload(w, r, &payload); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidPayloadError(err.Error()))
		return
	}

	fn, ok := h.handlers[payload.Trigger.Name]
	if !ok {
		handleServiceError(w, model.NewUnknownTriggerError(payload.Trigger.Name))
		return
	}

	if err := fn(r.Context(), &payload); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidPayloadError(err.Error()))
		return
	}

	slog.Info("trigger handled",
		slog.String("trigger", payload.Trigger.Name),
		slog.String("event_id", payload.ID),
		slog.String("op", payload.Event.Op),
	)
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// decodeSnapshot はイベントデータのold/newをデコードする。nullや欠落はnilを返す。
func decodeSnapshot(raw json.RawMessage) (*model.PlayerSnapshot, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s model.PlayerSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
