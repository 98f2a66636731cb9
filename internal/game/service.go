// Package game はゲームセッションのステートマシンと召喚解決を提供する。
package game

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/duelman/internal/metrics"
	"github.com/hitoshi/duelman/internal/model"
	"github.com/hitoshi/duelman/internal/repository"
)

// SummonAction は通常召喚かセットかを表す。
type SummonAction string

const (
	// SummonActionNormalSummon は表側攻撃表示での通常召喚。
	SummonActionNormalSummon SummonAction = "normalSummon"
	// SummonActionSet は裏側守備表示でのセット。
	SummonActionSet SummonAction = "set"
)

// Valid は既知の召喚アクションであるかを返す。
func (a SummonAction) Valid() bool {
	return a == SummonActionNormalSummon || a == SummonActionSet
}

// PhaseResult はフェーズ進行の結果を表す。
type PhaseResult struct {
	Phase      model.Phase `json:"phase"`
	TurnNumber int         `json:"turn_number"`
	TurnEnded  bool        `json:"turn_ended"`
}

// DrawOutcome はドローの結果種別を表す。
type DrawOutcome string

const (
	// DrawOutcomeSuccess は通常のドロー成功。
	DrawOutcomeSuccess DrawOutcome = "success"
	// DrawOutcomeDeckOut はデッキ切れによる敗北。対戦はここで終了する。
	DrawOutcomeDeckOut DrawOutcome = "deckOut"
)

// DrawResult はドローの結果を表す。
type DrawResult struct {
	Outcome  DrawOutcome `json:"outcome"`
	WinnerID string      `json:"winner_id,omitempty"`
	HandSize int         `json:"hand_size"`
	DeckSize int         `json:"deck_size"`
}

// Service はゲームセッションのサービス層。
// すべての状態変更はGameRepository.Mutateを介した
// 1回のアトミックなトランザクションとして適用される。
type Service struct {
	gameRepo  repository.GameRepository
	cardRepo  repository.CardRepository
	collector metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorはnilでもよい（メトリクスを記録しない）。
func NewService(
	gameRepo repository.GameRepository,
	cardRepo repository.CardRepository,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		gameRepo:  gameRepo,
		cardRepo:  cardRepo,
		collector: collector,
	}
}

// authorize はセッションが対戦中であり、呼び出しユーザーが手番プレイヤーで
// あることを検証し、そのスロットを返す。検証順序は
// SessionNotActive → NotAPlayer → NotYourTurn で固定。
func authorize(game *model.GameSession, callerID string) (model.PlayerSlot, error) {
	if !game.IsActive() {
		return model.SlotA, model.NewSessionNotActiveError()
	}
	slot, ok := game.SlotOf(callerID)
	if !ok {
		return model.SlotA, model.NewNotAPlayerError()
	}
	if slot != game.CurrentTurn {
		return model.SlotA, model.NewNotYourTurnError()
	}
	return slot, nil
}

// AdvancePhase は手番プレイヤーのフェーズを1段進める。
// 現在フェーズがendの場合はターン交代を行う: 手番の交代、ターン番号の加算、
// フェーズのdrawへのリセット、新手番プレイヤーの召喚権の回復。
// drawフェーズへの突入時は、コミット後に新手番プレイヤーのドローを
// 2回目のトランザクションとして実行する（第1ターンの先攻のみドローしない）。
func (s *Service) AdvancePhase(ctx context.Context, gameID, callerID string) (*PhaseResult, error) {
	var turnEnded bool
	var drawSlot model.PlayerSlot
	var needDraw bool

	game, err := s.gameRepo.Mutate(ctx, gameID, func(game *model.GameSession) error {
		slot, err := authorize(game, callerID)
		if err != nil {
			return err
		}
		if !game.Phase.Valid() {
			return model.NewInvalidPhaseError(string(game.Phase))
		}

		now := time.Now()
		next, hasNext := game.Phase.Next()
		if !hasNext {
			// endフェーズ: ターン交代
			endingTurn := game.TurnNumber
			game.CurrentTurn = slot.Other()
			game.TurnNumber++
			game.Phase = model.PhaseDraw
			game.Side(game.CurrentTurn).State.HasNormalSummonedThisTurn = false
			game.AppendLog(model.ActionLogEntry{
				Timestamp:   now,
				TurnNumber:  endingTurn,
				Player:      slot,
				ActionType:  model.ActionEndTurn,
				Description: fmt.Sprintf("ターン%d終了", endingTurn),
			})
			turnEnded = true
		} else {
			game.Phase = next
			game.AppendLog(model.ActionLogEntry{
				Timestamp:   now,
				TurnNumber:  game.TurnNumber,
				Player:      slot,
				ActionType:  model.ActionAdvancePhase,
				Description: fmt.Sprintf("%sフェーズへ移行", next),
			})
		}

		// drawフェーズ突入時の処理。対戦全体で最初のドロー
		// （第1ターンの先攻）のみスキップする。両者は初期手札を持っている。
		if game.Phase == model.PhaseDraw {
			firstDrawOfGame := game.TurnNumber == 1 && game.CurrentTurn == model.SlotA
			if !firstDrawOfGame {
				drawSlot = game.CurrentTurn
				needDraw = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// ドローはフェーズ遷移のコミット後に、同じ機構の2回目の
	// トランザクションとして順序付けて実行する。
	if needDraw {
		if _, err := s.drawForSlot(ctx, gameID, drawSlot); err != nil {
			return nil, err
		}
	}

	return &PhaseResult{
		Phase:      game.Phase,
		TurnNumber: game.TurnNumber,
		TurnEnded:  turnEnded,
	}, nil
}

// DrawCard は呼び出しユーザー自身のドローを実行する。
// デッキが空の場合はデッキ切れとなり、対戦はfinishedへ遷移して
// 相手が勝者になる（再試行不能な終端イベント）。
func (s *Service) DrawCard(ctx context.Context, gameID, callerID string) (*DrawResult, error) {
	var slot model.PlayerSlot

	// スロット解決と検証のみ先に行い、実際の変更はdrawForSlotに委ねる
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("ゲームセッションの取得に失敗しました: %w", err)
	}
	if game == nil {
		return nil, model.NewGameNotFoundError(gameID)
	}
	if !game.IsActive() {
		return nil, model.NewSessionNotActiveError()
	}
	slot, ok := game.SlotOf(callerID)
	if !ok {
		return nil, model.NewNotAPlayerError()
	}

	return s.drawForSlot(ctx, gameID, slot)
}

// drawForSlot は指定スロットのプレイヤーのドローを1回のトランザクションで実行する。
func (s *Service) drawForSlot(ctx context.Context, gameID string, slot model.PlayerSlot) (*DrawResult, error) {
	result := &DrawResult{}

	_, err := s.gameRepo.Mutate(ctx, gameID, func(game *model.GameSession) error {
		if !game.IsActive() {
			return model.NewSessionNotActiveError()
		}

		state := game.Side(slot).State
		now := time.Now()

		if len(state.Deck) == 0 {
			// デッキ切れ: 引けなかったプレイヤーの敗北で対戦を終了する
			winnerID := game.Side(slot.Other()).UserID
			game.Status = model.GameStatusFinished
			game.WinnerID = winnerID
			game.FinishedAt = &now
			state.LifePoints = 0

			result.Outcome = DrawOutcomeDeckOut
			result.WinnerID = winnerID
			result.HandSize = len(state.Hand)
			result.DeckSize = 0
			return nil
		}

		drawn := state.Deck[0]
		state.Deck = state.Deck[1:]
		state.Hand = append(state.Hand, drawn)
		state.SyncDeckSize()

		// ログにカードの同一性は一切残さない（相手に手札が漏れるため）
		game.AppendLog(model.ActionLogEntry{
			Timestamp:   now,
			TurnNumber:  game.TurnNumber,
			Player:      slot,
			ActionType:  model.ActionDraw,
			FromZone:    "deck",
			ToZone:      "hand",
			Description: "1枚ドロー",
		})

		result.Outcome = DrawOutcomeSuccess
		result.HandSize = len(state.Hand)
		result.DeckSize = state.DeckSize
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.collector != nil {
		switch result.Outcome {
		case DrawOutcomeSuccess:
			s.collector.RecordDraw()
		case DrawOutcomeDeckOut:
			s.collector.RecordDeckOut()
		}
	}

	return result, nil
}

// NormalSummonOrSet はモンスターの通常召喚またはセットを実行する。
// 検証はすべて変更の前に行い、1つでも失敗した場合は
// 手札・ゾーン・墓地のいずれにも部分的な変更を残さない。
// targetZoneIndexはnilの場合、最初の空きモンスターゾーンが使用される。
// 明示的に指定されたゾーンが使用中の場合はNoZoneAvailableで拒否する
// （上書きは決して行わない）。
func (s *Service) NormalSummonOrSet(
	ctx context.Context,
	gameID, callerID, cardID string,
	action SummonAction,
	tributeCardIDs []string,
	targetZoneIndex *int,
) (*model.GameSession, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("未知の召喚アクションです: %q", action)
	}

	game, err := s.gameRepo.Mutate(ctx, gameID, func(game *model.GameSession) error {
		slot, err := authorize(game, callerID)
		if err != nil {
			return err
		}
		if game.Phase != model.PhaseMain1 && game.Phase != model.PhaseMain2 {
			return model.NewSummonPhaseError(game.Phase)
		}

		state := game.Side(slot).State
		if !state.HandContains(cardID) {
			return model.NewCardNotInHandError(cardID)
		}

		cards, err := s.cardRepo.FindByIDs(ctx, []string{cardID})
		if err != nil {
			return fmt.Errorf("カード情報の取得に失敗しました: %w", err)
		}
		card, ok := cards[cardID]
		if !ok {
			return model.NewCardNotFoundError(cardID)
		}
		if !card.IsMonster() {
			return model.NewNotAMonsterError()
		}

		required := card.RequiredTributes()
		if len(tributeCardIDs) != required {
			return model.NewWrongTributeCountError(card.Level, required, len(tributeCardIDs))
		}

		if state.HasNormalSummonedThisTurn {
			return model.NewAlreadySummonedError()
		}

		zoneIndex, err := resolveTargetZone(&state.Zones, targetZoneIndex)
		if err != nil {
			return err
		}

		tributeZones, err := resolveTributeZones(&state.Zones, tributeCardIDs)
		if err != nil {
			return err
		}

		// ここまでで全検証が完了。以降の変更はまとめて1回の書き込みになる
		state.RemoveFromHand(cardID)

		position := model.PositionAttack
		actionType := model.ActionNormalSummon
		if action == SummonActionSet {
			position = model.PositionFaceDownDefense
			actionType = model.ActionSet
		}
		state.Zones.Monsters[zoneIndex] = &model.MonsterSlot{
			CardID:   cardID,
			Position: position,
		}

		for _, ti := range tributeZones {
			state.Graveyard = append(state.Graveyard, state.Zones.Monsters[ti].CardID)
			state.Zones.Monsters[ti] = nil
		}

		state.HasNormalSummonedThisTurn = true

		game.AppendLog(model.ActionLogEntry{
			Timestamp:   time.Now(),
			TurnNumber:  game.TurnNumber,
			Player:      slot,
			ActionType:  actionType,
			CardID:      cardID,
			FromZone:    "hand",
			ToZone:      fmt.Sprintf("monsterZone%d", zoneIndex+1),
			Description: fmt.Sprintf("%sを%s", card.Name, summonVerb(action)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.collector != nil {
		s.collector.RecordSummon(string(action))
	}

	return game, nil
}

// summonVerb はログ文言用の動詞を返す。
func summonVerb(action SummonAction) string {
	if action == SummonActionSet {
		return "セット"
	}
	return "通常召喚"
}

// resolveTargetZone は召喚先のモンスターゾーンを決定する。
// 明示的な指定がある場合は範囲内かつ空きであることを検証し、
// 指定がない場合は最初の空きゾーンを選ぶ。
func resolveTargetZone(zones *model.Zones, targetZoneIndex *int) (int, error) {
	if targetZoneIndex != nil {
		idx := *targetZoneIndex
		if idx < 0 || idx >= model.MonsterZoneCount {
			return 0, model.NewNoZoneAvailableError()
		}
		if zones.Monsters[idx] != nil {
			return 0, model.NewNoZoneAvailableError()
		}
		return idx, nil
	}

	idx := zones.FirstEmptyMonsterZone()
	if idx == -1 {
		return 0, model.NewNoZoneAvailableError()
	}
	return idx, nil
}

// resolveTributeZones はリリース対象カードが占めるゾーンを決定する。
// 同名カードを複数リリースする場合も、1枚につき別のゾーンを割り当てる。
// いずれかが自分のモンスターゾーンに存在しない場合はInvalidTributeを返す。
func resolveTributeZones(zones *model.Zones, tributeCardIDs []string) ([]int, error) {
	taken := make(map[int]bool, len(tributeCardIDs))
	result := make([]int, 0, len(tributeCardIDs))

	for _, tid := range tributeCardIDs {
		found := -1
		for i, slot := range zones.Monsters {
			if slot != nil && slot.CardID == tid && !taken[i] {
				found = i
				break
			}
		}
		if found == -1 {
			return nil, model.NewInvalidTributeError(tid)
		}
		taken[found] = true
		result = append(result, found)
	}

	return result, nil
}
