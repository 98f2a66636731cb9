// Package queue はマッチングキューのドメインロジックを提供する。
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/duelman/internal/model"
	"github.com/hitoshi/duelman/internal/repository"
)

// Service はマッチングキューのサービス層。
// キュー参加、キャンセル、自エントリ照会のビジネスロジックを提供する。
type Service struct {
	queueRepo repository.QueueRepository
	gameRepo  repository.GameRepository
	deckRepo  repository.DeckRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	queueRepo repository.QueueRepository,
	gameRepo repository.GameRepository,
	deckRepo repository.DeckRepository,
) *Service {
	return &Service{
		queueRepo: queueRepo,
		gameRepo:  gameRepo,
		deckRepo:  deckRepo,
	}
}

// Enqueue はユーザーをマッチングキューに登録する。
// 以下の順で検証し、最初に失敗した条件のエラーを返す:
//  1. waiting/matchedの既存エントリがないこと（ALREADY_QUEUED）
//  2. 進行中の対戦がないこと（ALREADY_IN_GAME）
//  3. 指定デッキが存在し、呼び出しユーザーの所有であること（DECK_NOT_FOUND）
//
// 進行中の対戦が複数見つかった場合は不変条件の破れであり、
// 自動修復はせずDATA_INCONSISTENCYとして失敗させる。
func (s *Service) Enqueue(ctx context.Context, userID, deckID string, mode model.QueueMode) (*model.QueueEntry, error) {
	existing, err := s.queueRepo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("既存エントリの確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewAlreadyQueuedError()
	}

	games, err := s.gameRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("進行中対戦の確認に失敗しました: %w", err)
	}
	if len(games) > 1 {
		slog.Error("同一ユーザーが複数のアクティブな対戦に存在します",
			slog.String("userID", userID),
			slog.Int("activeGames", len(games)),
		)
		return nil, model.NewDataInconsistencyError(
			fmt.Sprintf("ユーザー%sに%d件のアクティブな対戦があります", userID, len(games)))
	}
	if len(games) == 1 {
		return nil, model.NewAlreadyInGameError()
	}

	deck, err := s.deckRepo.FindByID(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("デッキの確認に失敗しました: %w", err)
	}
	if deck == nil || deck.UserID != userID {
		return nil, model.NewDeckNotFoundError(deckID)
	}

	entry := &model.QueueEntry{
		ID:       uuid.New().String(),
		UserID:   userID,
		DeckID:   deckID,
		Status:   model.QueueStatusWaiting,
		Mode:     mode,
		JoinedAt: time.Now(),
	}
	// 同一ユーザーの並行Enqueueは事前チェックをすり抜けることがあるため、
	// 部分一意インデックスの違反（リポジトリがAPIErrorに変換する）を
	// そのまま呼び出し元へ返す。
	if err := s.queueRepo.Create(ctx, entry); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, err
		}
		return nil, fmt.Errorf("キューへの登録に失敗しました: %w", err)
	}

	return entry, nil
}

// Cancel はユーザー自身のwaiting/matchedエントリを削除する。
// 戻り値は削除が行われたかどうか。エントリがない場合は
// 何もせずfalseを返す（エラーにはしない）。
// matchedのエントリも削除対象になる。マッチ成立処理がエントリを
// 参照するのはステータス遷移の瞬間だけなので、遷移後の削除は安全。
func (s *Service) Cancel(ctx context.Context, userID string) (bool, error) {
	entry, err := s.queueRepo.FindActiveByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("エントリの確認に失敗しました: %w", err)
	}
	if entry == nil {
		return false, nil
	}

	if err := s.queueRepo.DeleteByID(ctx, entry.ID); err != nil {
		return false, fmt.Errorf("エントリの削除に失敗しました: %w", err)
	}
	return true, nil
}

// MyEntry はユーザー自身のアクティブなエントリを返す。
// 見つからない場合はnilを返す。
func (s *Service) MyEntry(ctx context.Context, userID string) (*model.QueueEntry, error) {
	entry, err := s.queueRepo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("エントリの取得に失敗しました: %w", err)
	}
	return entry, nil
}
