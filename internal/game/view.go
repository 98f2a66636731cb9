package game

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/duelman/internal/model"
)

// SelfView は自分側の対戦状態のスナップショット。手札の中身を含む。
type SelfView struct {
	UserID                    string      `json:"user_id"`
	LifePoints                int         `json:"life_points"`
	Hand                      []string    `json:"hand"`
	DeckSize                  int         `json:"deck_size"`
	Zones                     model.Zones `json:"zones"`
	Graveyard                 []string    `json:"graveyard"`
	HasNormalSummonedThisTurn bool        `json:"has_normal_summoned_this_turn"`
}

// OpponentView は相手側の対戦状態のスナップショット。
// 手札とデッキは枚数のみに落とし、裏側守備表示のカードIDも伏せる。
// 相手の非公開情報をAPI越しに漏らさないための射影。
type OpponentView struct {
	UserID     string      `json:"user_id"`
	LifePoints int         `json:"life_points"`
	HandSize   int         `json:"hand_size"`
	DeckSize   int         `json:"deck_size"`
	Zones      model.Zones `json:"zones"`
	Graveyard  []string    `json:"graveyard"`
}

// View はレンダリング用の読み取り専用セッションスナップショット。
type View struct {
	GameID     string                 `json:"game_id"`
	Status     model.GameStatus       `json:"status"`
	Phase      model.Phase            `json:"phase"`
	TurnNumber int                    `json:"turn_number"`
	IsMyTurn   bool                   `json:"is_my_turn"`
	WinnerID   string                 `json:"winner_id,omitempty"`
	Me         SelfView               `json:"me"`
	Opponent   OpponentView           `json:"opponent"`
	ActionsLog []model.ActionLogEntry `json:"actions_log"`
}

// MyActiveGame はユーザーが参加中のアクティブなセッションのスナップショットを返す。
// 参加中のセッションがない場合はnilを返す。
// 複数見つかった場合は不整合として警告を残し、最古の1件を返す。
func (s *Service) MyActiveGame(ctx context.Context, userID string) (*View, error) {
	games, err := s.gameRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("アクティブセッションの取得に失敗しました: %w", err)
	}
	if len(games) == 0 {
		return nil, nil
	}
	if len(games) > 1 {
		slog.Warn("同一ユーザーが複数のアクティブな対戦に存在します",
			slog.String("userID", userID),
			slog.Int("activeGames", len(games)),
		)
	}

	game := games[0]
	slot, ok := game.SlotOf(userID)
	if !ok {
		return nil, model.NewNotAPlayerError()
	}

	return buildView(game, slot), nil
}

// buildView はセッションを指定スロット視点のスナップショットに射影する。
func buildView(game *model.GameSession, slot model.PlayerSlot) *View {
	me := game.Side(slot)
	opp := game.Side(slot.Other())

	return &View{
		GameID:     game.ID,
		Status:     game.Status,
		Phase:      game.Phase,
		TurnNumber: game.TurnNumber,
		IsMyTurn:   game.CurrentTurn == slot,
		WinnerID:   game.WinnerID,
		Me: SelfView{
			UserID:                    me.UserID,
			LifePoints:                me.State.LifePoints,
			Hand:                      me.State.Hand,
			DeckSize:                  me.State.DeckSize,
			Zones:                     me.State.Zones,
			Graveyard:                 me.State.Graveyard,
			HasNormalSummonedThisTurn: me.State.HasNormalSummonedThisTurn,
		},
		Opponent: OpponentView{
			UserID:     opp.UserID,
			LifePoints: opp.State.LifePoints,
			HandSize:   len(opp.State.Hand),
			DeckSize:   opp.State.DeckSize,
			Zones:      redactZones(opp.State.Zones),
			Graveyard:  opp.State.Graveyard,
		},
		ActionsLog: game.ActionsLog,
	}
}

// redactZones は相手フィールドの裏側カードのIDを伏せたコピーを返す。
func redactZones(zones model.Zones) model.Zones {
	redacted := zones
	for i, slot := range zones.Monsters {
		if slot != nil && slot.Position == model.PositionFaceDownDefense {
			redacted.Monsters[i] = &model.MonsterSlot{Position: model.PositionFaceDownDefense}
		}
	}
	for i, slot := range zones.SpellsAndTraps {
		if slot != nil && slot.FaceDown {
			redacted.SpellsAndTraps[i] = &model.SpellTrapSlot{FaceDown: true}
		}
	}
	return redacted
}
