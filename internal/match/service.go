// Package match はペアリング済みエントリからの対戦生成ロジックを提供する。
package match

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/duelman/internal/dealer"
	"github.com/hitoshi/duelman/internal/model"
	"github.com/hitoshi/duelman/internal/repository"
)

// DefaultOpeningHandSize は対戦開始時に配る手札の既定枚数。
// デッキはこの枚数以上でなければマッチできない。
const DefaultOpeningHandSize = 5

// Service はマッチ成立のサービス層。
// 待機中エントリのペアリングとゲームセッションの生成を行う。
type Service struct {
	queueRepo repository.QueueRepository
	gameRepo  repository.GameRepository
	deckRepo  repository.DeckRepository
	dealer    *dealer.Dealer

	// OpeningHandSize は初期手札の枚数（既定: 5）。
	OpeningHandSize int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	queueRepo repository.QueueRepository,
	gameRepo repository.GameRepository,
	deckRepo repository.DeckRepository,
	d *dealer.Dealer,
) *Service {
	return &Service{
		queueRepo:       queueRepo,
		gameRepo:        gameRepo,
		deckRepo:        deckRepo,
		dealer:          d,
		OpeningHandSize: DefaultOpeningHandSize,
	}
}

// TryMatch は待機中エントリの最古2件をペアリングし、対戦を1件生成する。
// 成立しなかった場合はnilを返す（待機者が2人未満の場合など。エラーではない）。
//
// 手順: 最古の2エントリを取得 → 両者のデッキを展開・検証 →
// 両エントリをwaitingからmatchedへ条件付きで遷移 → セッションを生成。
// 遷移できた行数が2未満の場合は並走するスキャンに先を越されたとみなし、
// 今回のスキャンは何もせず終了する。
// matched遷移後にセッション生成が失敗した場合、エントリはmatchedのまま残るが、
// ジャニターの掃除（10分）により回収される。
func (s *Service) TryMatch(ctx context.Context) (*model.GameSession, error) {
	entries, err := s.queueRepo.ListOldestWaiting(ctx, 2)
	if err != nil {
		return nil, fmt.Errorf("待機中エントリの取得に失敗しました: %w", err)
	}
	if len(entries) < 2 {
		return nil, nil
	}

	first, second := entries[0], entries[1]

	sides := [2]model.PlayerSide{}
	for i, entry := range []*model.QueueEntry{first, second} {
		state, err := s.buildPlayerState(ctx, entry.DeckID)
		if err != nil {
			// デッキ不正のエントリはキューの先頭に居座り続けるため、
			// ここで取り除いてから失敗を報告する。
			if delErr := s.queueRepo.DeleteByID(ctx, entry.ID); delErr != nil {
				slog.Error("不正デッキエントリの削除に失敗しました",
					slog.String("entryID", entry.ID),
					slog.String("error", delErr.Error()),
				)
			}
			return nil, err
		}
		sides[i] = model.PlayerSide{
			UserID: entry.UserID,
			DeckID: entry.DeckID,
			State:  state,
		}
	}

	affected, err := s.queueRepo.MarkMatched(ctx, []string{first.ID, second.ID})
	if err != nil {
		return nil, fmt.Errorf("エントリのペアリングに失敗しました: %w", err)
	}
	if affected != 2 {
		// 並走するスキャンが先にペアリングした。次回のスキャンに任せる。
		slog.Info("ペアリング競合を検出したためスキャンをスキップします",
			slog.Int64("affected", affected),
		)
		return nil, nil
	}

	now := time.Now()
	game := &model.GameSession{
		ID:          uuid.New().String(),
		Status:      model.GameStatusActive,
		StartedAt:   now,
		CurrentTurn: model.SlotA,
		TurnNumber:  1,
		Phase:       model.PhaseDraw,
		Sides:       sides,
		ActionsLog: []model.ActionLogEntry{
			{
				Timestamp:   now,
				TurnNumber:  0,
				Player:      model.SlotA,
				ActionType:  model.ActionGameStart,
				Description: fmt.Sprintf("対戦開始: %s vs %s", sides[model.SlotA].UserID, sides[model.SlotB].UserID),
			},
		},
	}

	if err := s.gameRepo.Create(ctx, game); err != nil {
		return nil, fmt.Errorf("ゲームセッションの生成に失敗しました: %w", err)
	}

	return game, nil
}

// buildPlayerState はデッキ定義を展開・シャッフルし、
// 初期手札5枚を配った状態のPlayerStateを生成する。
func (s *Service) buildPlayerState(ctx context.Context, deckID string) (*model.PlayerState, error) {
	entries, err := s.deckRepo.ListEntriesByDeckID(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("デッキエントリの取得に失敗しました: %w", err)
	}

	// {cardId, quantity}をフラットなカード列に展開する
	var cardIDs []string
	for _, entry := range entries {
		for i := 0; i < entry.Quantity; i++ {
			cardIDs = append(cardIDs, entry.CardID)
		}
	}

	if len(cardIDs) < s.OpeningHandSize {
		return nil, model.NewInsufficientDeckSizeError(deckID, len(cardIDs), s.OpeningHandSize)
	}

	hand, deck, err := s.dealer.Draw(cardIDs, s.OpeningHandSize)
	if err != nil {
		return nil, fmt.Errorf("初期手札の配布に失敗しました: %w", err)
	}

	state := model.NewPlayerState()
	state.Hand = hand
	state.Deck = deck
	state.SyncDeckSize()
	return state, nil
}
