package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/duelman/internal/game"
	"github.com/hitoshi/duelman/internal/middleware"
	"github.com/hitoshi/duelman/internal/model"
)

// GameServiceInterface はゲームハンドラーが必要とするサービスインターフェース。
type GameServiceInterface interface {
	// AdvancePhase は手番プレイヤーのフェーズを1段進める。
	AdvancePhase(ctx context.Context, gameID, callerID string) (*game.PhaseResult, error)
	// DrawCard は呼び出しユーザー自身のドローを実行する。
	DrawCard(ctx context.Context, gameID, callerID string) (*game.DrawResult, error)
	// NormalSummonOrSet はモンスターの通常召喚またはセットを実行する。
	NormalSummonOrSet(ctx context.Context, gameID, callerID, cardID string, action game.SummonAction, tributeCardIDs []string, targetZoneIndex *int) (*model.GameSession, error)
	// MyActiveGame はユーザーが参加中のセッションのスナップショットを返す。
	MyActiveGame(ctx context.Context, userID string) (*game.View, error)
}

// GameHandler はゲームセッション操作のHTTPハンドラー。
type GameHandler struct {
	service GameServiceInterface
}

// NewGameHandler はGameHandlerを生成する。
func NewGameHandler(service GameServiceInterface) *GameHandler {
	return &GameHandler{
		service: service,
	}
}

// summonRequest は召喚・セットリクエストのボディ。
type summonRequest struct {
	CardID          string   `json:"card_id"`
	Action          string   `json:"action"`
	TributeCardIDs  []string `json:"tribute_card_ids"`
	TargetZoneIndex *int     `json:"target_zone_index"`
}

// summonResponse は召喚・セット結果のAPIレスポンス。
type summonResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MyActiveGame はユーザーが参加中の対戦のスナップショットを取得する。
// GET /api/games/active
func (h *GameHandler) MyActiveGame(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	view, err := h.service.MyActiveGame(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if view == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

// AdvancePhase は手番プレイヤーのフェーズを1段進める。
// POST /api/games/:id/phase
func (h *GameHandler) AdvancePhase(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	gameID := chi.URLParam(r, "id")

	result, err := h.service.AdvancePhase(r.Context(), gameID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// DrawCard は呼び出しユーザー自身のドローを実行する。
// POST /api/games/:id/draw
func (h *GameHandler) DrawCard(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	gameID := chi.URLParam(r, "id")

	result, err := h.service.DrawCard(r.Context(), gameID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// Summon はモンスターの通常召喚またはセットを実行する。
// POST /api/games/:id/summon
func (h *GameHandler) Summon(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	gameID := chi.URLParam(r, "id")

	var req summonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	action := game.SummonAction(req.Action)
	if !action.Valid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "未知の召喚アクションです。",
			Category: "validation",
			Action:   "normalSummon または set を指定してください。",
		})
		return
	}

	_, err = h.service.NormalSummonOrSet(r.Context(), gameID, userID, req.CardID, action, req.TributeCardIDs, req.TargetZoneIndex)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summonResponse{
		Success: true,
		Message: "ok",
	})
}
