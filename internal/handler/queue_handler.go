package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/duelman/internal/metrics"
	"github.com/hitoshi/duelman/internal/middleware"
	"github.com/hitoshi/duelman/internal/model"
)

// QueueServiceInterface はキューハンドラーが必要とするサービスインターフェース。
type QueueServiceInterface interface {
	// Enqueue はユーザーをマッチングキューに登録する。
	Enqueue(ctx context.Context, userID, deckID string, mode model.QueueMode) (*model.QueueEntry, error)
	// Cancel はユーザー自身のwaiting/matchedエントリを削除する。
	Cancel(ctx context.Context, userID string) (bool, error)
	// MyEntry はユーザー自身のアクティブなエントリを返す。
	MyEntry(ctx context.Context, userID string) (*model.QueueEntry, error)
}

// QueueHandler はマッチングキューのHTTPハンドラー。
type QueueHandler struct {
	service   QueueServiceInterface
	collector metrics.MetricsCollector
}

// NewQueueHandler はQueueHandlerを生成する。
// collectorはnilでもよい（メトリクスを記録しない）。
func NewQueueHandler(service QueueServiceInterface, collector metrics.MetricsCollector) *QueueHandler {
	return &QueueHandler{
		service:   service,
		collector: collector,
	}
}

// enqueueRequest はキュー参加リクエストのボディ。
type enqueueRequest struct {
	DeckID string `json:"deck_id"`
	Mode   string `json:"mode"`
}

// queueEntryResponse はキューエントリのAPIレスポンス。
type queueEntryResponse struct {
	ID       string    `json:"id"`
	Status   string    `json:"status"`
	Mode     string    `json:"mode"`
	JoinedAt time.Time `json:"joined_at"`
}

// cancelResponse はキャンセル結果のAPIレスポンス。
type cancelResponse struct {
	Found bool `json:"found"`
}

// toQueueEntryResponse はmodel.QueueEntryからAPIレスポンスに変換する。
func toQueueEntryResponse(entry *model.QueueEntry) queueEntryResponse {
	return queueEntryResponse{
		ID:       entry.ID,
		Status:   string(entry.Status),
		Mode:     string(entry.Mode),
		JoinedAt: entry.JoinedAt,
	}
}

// Enqueue はユーザーをマッチングキューに登録する。
// POST /api/queue
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	mode := model.QueueMode(req.Mode)
	if mode == "" {
		mode = model.QueueModeUnranked
	}
	if mode != model.QueueModeRanked && mode != model.QueueModeUnranked {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "未知の対戦モードです。",
			Category: "validation",
			Action:   "ranked または unranked を指定してください。",
		})
		return
	}

	entry, err := h.service.Enqueue(r.Context(), userID, req.DeckID, mode)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordEnqueue(string(mode))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toQueueEntryResponse(entry))
}

// Cancel はユーザー自身のキューエントリをキャンセルする。
// DELETE /api/queue
func (h *QueueHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	found, err := h.service.Cancel(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cancelResponse{Found: found})
}

// MyEntry はユーザー自身のキューエントリを取得する。
// GET /api/queue
func (h *QueueHandler) MyEntry(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	entry, err := h.service.MyEntry(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if entry == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toQueueEntryResponse(entry))
}
