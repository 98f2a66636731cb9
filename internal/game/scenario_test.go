package game

import (
	"context"
	"testing"

	"github.com/hitoshi/duelman/internal/model"
)

// advanceToPhase は指定フェーズに到達するまで手番プレイヤーのフェーズを進める。
func advanceToPhase(t *testing.T, svc *Service, callerID string, target model.Phase) {
	t.Helper()
	for i := 0; i < 12; i++ {
		result, err := svc.AdvancePhase(context.Background(), "game-1", callerID)
		if err != nil {
			t.Fatalf("AdvancePhase: %v", err)
		}
		if result.Phase == target {
			return
		}
	}
	t.Fatalf("did not reach phase %s", target)
}

// TestScenario_TwoTurnDuel は2ターンの対戦シナリオを通しで確認する:
// 先攻が召喚してターンを渡し、後攻がドローから召喚まで行い、
// 両者の状態とログが一貫していること。
func TestScenario_TwoTurnDuel(t *testing.T) {
	game := newActiveGame(model.PhaseDraw)
	repo := newFakeGameRepo(game)
	svc := NewService(repo, defaultCatalog(), nil)
	ctx := context.Background()

	// ターン1（先攻 user-a）: メインフェーズまで進めて召喚
	advanceToPhase(t, svc, "user-a", model.PhaseMain1)
	if _, err := svc.NormalSummonOrSet(ctx, "game-1", "user-a", "m4", SummonActionNormalSummon, nil, nil); err != nil {
		t.Fatalf("turn 1 summon: %v", err)
	}

	// 同一ターン内の2度目の召喚は拒否される
	_, err := svc.NormalSummonOrSet(ctx, "game-1", "user-a", "m5", SummonActionNormalSummon, []string{"m4"}, nil)
	assertCode(t, err, model.ErrCodeAlreadySummoned)

	// エンドフェーズまで進めてターンを渡す
	advanceToPhase(t, svc, "user-a", model.PhaseEnd)
	result, err := svc.AdvancePhase(ctx, "game-1", "user-a")
	if err != nil {
		t.Fatalf("end turn 1: %v", err)
	}
	if !result.TurnEnded || result.TurnNumber != 2 {
		t.Fatalf("rollover result = %+v, want TurnEnded=true TurnNumber=2", result)
	}

	// ターン2（後攻 user-b）: ロールオーバーで自動ドロー済み
	stored, _ := repo.FindByID(ctx, "game-1")
	if stored.CurrentTurn != model.SlotB {
		t.Fatalf("CurrentTurn = %v, want SlotB", stored.CurrentTurn)
	}
	stateB := stored.Sides[model.SlotB].State
	if len(stateB.Hand) != 2 {
		t.Errorf("user-b hand = %d, want 2 after start-of-turn draw", len(stateB.Hand))
	}

	// 先攻はもう操作できない
	_, err = svc.AdvancePhase(ctx, "game-1", "user-a")
	assertCode(t, err, model.ErrCodeNotYourTurn)

	// 後攻がメインフェーズで召喚
	advanceToPhase(t, svc, "user-b", model.PhaseMain1)
	if _, err := svc.NormalSummonOrSet(ctx, "game-1", "user-b", "m4", SummonActionSet, nil, nil); err != nil {
		t.Fatalf("turn 2 set: %v", err)
	}

	// 最終状態の検証
	stored, _ = repo.FindByID(ctx, "game-1")
	if stored.Sides[model.SlotA].State.Zones.FindMonsterByCard("m4") == -1 {
		t.Error("user-a's summoned monster should remain on the field")
	}
	slotB := stored.Sides[model.SlotB].State.Zones.Monsters[0]
	if slotB == nil || slotB.Position != model.PositionFaceDownDefense {
		t.Errorf("user-b's set monster should be face-down-defense, got %+v", slotB)
	}

	// ログは追記順: 召喚・フェーズ移行・endTurn・ドローがすべて残っている
	var sawSummon, sawEndTurn, sawDraw, sawSet bool
	for _, e := range stored.ActionsLog {
		switch e.ActionType {
		case model.ActionNormalSummon:
			sawSummon = true
		case model.ActionEndTurn:
			sawEndTurn = true
		case model.ActionDraw:
			sawDraw = true
		case model.ActionSet:
			sawSet = true
		}
	}
	if !sawSummon || !sawEndTurn || !sawDraw || !sawSet {
		t.Errorf("log should contain summon/endTurn/draw/set entries: summon=%v endTurn=%v draw=%v set=%v",
			sawSummon, sawEndTurn, sawDraw, sawSet)
	}
}

// TestScenario_DeckOutEndsTheDuel はデッキが尽きるまでターンを回し、
// デッキ切れで対戦が終了し以後の操作が拒否されることを確認する。
func TestScenario_DeckOutEndsTheDuel(t *testing.T) {
	game := newActiveGame(model.PhaseDraw)
	// 後攻のデッキを1枚にして、ターン4開始時のドローで尽きるようにする
	game.Sides[model.SlotB].State.Deck = []string{"last"}
	game.Sides[model.SlotB].State.SyncDeckSize()
	repo := newFakeGameRepo(game)
	svc := NewService(repo, defaultCatalog(), nil)
	ctx := context.Background()

	endTurn := func(callerID string) *PhaseResult {
		t.Helper()
		advanceToPhase(t, svc, callerID, model.PhaseEnd)
		result, err := svc.AdvancePhase(ctx, "game-1", callerID)
		if err != nil {
			t.Fatalf("end turn by %s: %v", callerID, err)
		}
		return result
	}

	endTurn("user-a") // ターン2へ: user-bが最後の1枚をドロー
	endTurn("user-b") // ターン3へ: user-aがドロー

	// ターン3を終えるとuser-bのドローでデッキ切れになる
	advanceToPhase(t, svc, "user-a", model.PhaseEnd)
	_, err := svc.AdvancePhase(ctx, "game-1", "user-a")
	if err != nil {
		t.Fatalf("rollover into deck-out should not error: %v", err)
	}

	stored, _ := repo.FindByID(ctx, "game-1")
	if stored.Status != model.GameStatusFinished {
		t.Fatalf("Status = %q, want finished", stored.Status)
	}
	if stored.WinnerID != "user-a" {
		t.Errorf("WinnerID = %q, want user-a", stored.WinnerID)
	}
	if stored.Sides[model.SlotB].State.LifePoints != 0 {
		t.Errorf("loser LifePoints = %d, want 0", stored.Sides[model.SlotB].State.LifePoints)
	}
	if stored.FinishedAt == nil {
		t.Error("FinishedAt should be stamped")
	}

	// 終了後の操作はすべて拒否される
	_, err = svc.AdvancePhase(ctx, "game-1", "user-b")
	assertCode(t, err, model.ErrCodeSessionNotActive)
	_, err = svc.DrawCard(ctx, "game-1", "user-a")
	assertCode(t, err, model.ErrCodeSessionNotActive)
}
