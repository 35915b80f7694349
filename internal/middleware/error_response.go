package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/metafam/metagame/internal/model"
)

// ErrorResponseBody はHasuraアクションのエラー応答形式。
// Hasuraはmessageをクライアントへのエラーメッセージとして使い、
// extensionsをそのままGraphQLエラーのextensionsに載せる。
type ErrorResponseBody struct {
	Message    string              `json:"message"`
	Extensions ErrorResponseDetail `json:"extensions"`
}

// ErrorResponseDetail はextensionsに載せるエラーの分類情報。
type ErrorResponseDetail struct {
	Code     string `json:"code"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// NewErrorResponseBody はAPIErrorからエラー応答を組み立てる。
func NewErrorResponseBody(apiErr *model.APIError) ErrorResponseBody {
	return ErrorResponseBody{
		Message: apiErr.Message,
		Extensions: ErrorResponseDetail{
			Code:     apiErr.Code,
			Category: apiErr.Category,
			Action:   apiErr.Action,
		},
	}
}

// WriteErrorResponse はHasuraアクション形式のエラー応答を書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	WriteJSON(w, statusCode, NewErrorResponseBody(apiErr))
}

// WriteInternalServerError は内部エラーの応答を書き込む。原因は呼び出し元でログに残す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// WriteJSON は任意のステータスでJSON応答を書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
