// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/duelman/internal/model"
)

// apiErrorResponse は統一エラーフォーマットのレスポンスボディ。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeNotAPlayer:
		return http.StatusForbidden
	case model.ErrCodeAlreadyQueued, model.ErrCodeAlreadyInGame:
		return http.StatusConflict
	case model.ErrCodeGameNotFound, model.ErrCodeDeckNotFound, model.ErrCodeCardNotFound:
		return http.StatusNotFound
	case model.ErrCodeSessionNotActive,
		model.ErrCodeNotYourTurn,
		model.ErrCodeInvalidPhase,
		model.ErrCodeCardNotInHand,
		model.ErrCodeNotAMonster,
		model.ErrCodeWrongTributeCount,
		model.ErrCodeAlreadySummoned,
		model.ErrCodeNoZoneAvailable,
		model.ErrCodeInvalidTribute:
		return http.StatusUnprocessableEntity
	case model.ErrCodeInsufficientDeckSize:
		return http.StatusBadRequest
	case model.ErrCodeDataInconsistency:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
