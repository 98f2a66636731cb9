package game

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hitoshi/duelman/internal/model"
)

// fakeGameRepo はGameRepositoryのインメモリ実装。
// Mutateはコピーに対してfnを適用し、成功時のみ保存することで
// 本物のトランザクションのロールバック挙動を再現する。
type fakeGameRepo struct {
	games map[string]*model.GameSession
}

func newFakeGameRepo(games ...*model.GameSession) *fakeGameRepo {
	repo := &fakeGameRepo{games: make(map[string]*model.GameSession)}
	for _, g := range games {
		repo.games[g.ID] = g
	}
	return repo
}

func cloneGame(g *model.GameSession) *model.GameSession {
	data, err := json.Marshal(g)
	if err != nil {
		panic(err)
	}
	var c model.GameSession
	if err := json.Unmarshal(data, &c); err != nil {
		panic(err)
	}
	return &c
}

func (r *fakeGameRepo) Create(ctx context.Context, game *model.GameSession) error {
	r.games[game.ID] = cloneGame(game)
	return nil
}

func (r *fakeGameRepo) FindByID(ctx context.Context, id string) (*model.GameSession, error) {
	g, ok := r.games[id]
	if !ok {
		return nil, nil
	}
	return cloneGame(g), nil
}

func (r *fakeGameRepo) ListActiveByUser(ctx context.Context, userID string) ([]*model.GameSession, error) {
	var result []*model.GameSession
	for _, g := range r.games {
		if !g.IsActive() {
			continue
		}
		if _, ok := g.SlotOf(userID); ok {
			result = append(result, cloneGame(g))
		}
	}
	return result, nil
}

func (r *fakeGameRepo) Mutate(ctx context.Context, gameID string, fn func(game *model.GameSession) error) (*model.GameSession, error) {
	g, ok := r.games[gameID]
	if !ok {
		return nil, model.NewGameNotFoundError(gameID)
	}
	working := cloneGame(g)
	if err := fn(working); err != nil {
		return nil, err
	}
	r.games[gameID] = working
	return cloneGame(working), nil
}

// mockCardRepo はCardRepositoryのモック実装。
type mockCardRepo struct {
	findByIDsFn func(ctx context.Context, ids []string) (map[string]*model.Card, error)
}

func (m *mockCardRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*model.Card, error) {
	return m.findByIDsFn(ctx, ids)
}

// cardCatalog は固定カタログを返すmockCardRepoを生成する。
func cardCatalog(cards ...*model.Card) *mockCardRepo {
	index := make(map[string]*model.Card, len(cards))
	for _, c := range cards {
		index[c.ID] = c
	}
	return &mockCardRepo{
		findByIDsFn: func(ctx context.Context, ids []string) (map[string]*model.Card, error) {
			result := make(map[string]*model.Card)
			for _, id := range ids {
				if c, ok := index[id]; ok {
					result[id] = c
				}
			}
			return result, nil
		},
	}
}

func monsterCard(id string, level int) *model.Card {
	return &model.Card{ID: id, Name: id, Level: level, CardType: model.CardTypeNormal, Attack: 1000, Defense: 1000}
}

func spellCard(id string) *model.Card {
	return &model.Card{ID: id, Name: id, CardType: model.CardTypeSpell}
}

// newActiveGame は対戦中のセッションを生成するテストヘルパー。
// user-aが先攻（SlotA）、user-bが後攻（SlotB）。
func newActiveGame(phase model.Phase) *model.GameSession {
	stateA := model.NewPlayerState()
	stateA.Hand = []string{"m4", "m5", "m7", "s1"}
	stateA.Deck = []string{"d1", "d2", "d3"}
	stateA.SyncDeckSize()

	stateB := model.NewPlayerState()
	stateB.Hand = []string{"m4"}
	stateB.Deck = []string{"d4", "d5"}
	stateB.SyncDeckSize()

	return &model.GameSession{
		ID:          "game-1",
		Status:      model.GameStatusActive,
		CurrentTurn: model.SlotA,
		TurnNumber:  1,
		Phase:       phase,
		Sides: [2]model.PlayerSide{
			{UserID: "user-a", DeckID: "deck-a", State: stateA},
			{UserID: "user-b", DeckID: "deck-b", State: stateB},
		},
	}
}

func defaultCatalog() *mockCardRepo {
	return cardCatalog(
		monsterCard("m4", 4),
		monsterCard("m5", 5),
		monsterCard("m7", 7),
		spellCard("s1"),
	)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError with code %s, got %T: %v", code, err, err)
	}
	if apiErr.Code != code {
		t.Errorf("error code = %q, want %q", apiErr.Code, code)
	}
}

// --- フェーズ進行 ---

// TestAdvancePhase_CyclesThroughPhases はフェーズが定義順に進むことを確認する。
func TestAdvancePhase_CyclesThroughPhases(t *testing.T) {
	repo := newFakeGameRepo(newActiveGame(model.PhaseDraw))
	svc := NewService(repo, defaultCatalog(), nil)

	want := []model.Phase{model.PhaseStandby, model.PhaseMain1, model.PhaseBattle, model.PhaseMain2, model.PhaseEnd}
	for _, phase := range want {
		result, err := svc.AdvancePhase(context.Background(), "game-1", "user-a")
		if err != nil {
			t.Fatalf("AdvancePhase to %s: %v", phase, err)
		}
		if result.Phase != phase {
			t.Errorf("Phase = %q, want %q", result.Phase, phase)
		}
		if result.TurnEnded {
			t.Errorf("TurnEnded should be false before end phase rollover")
		}
		if result.TurnNumber != 1 {
			t.Errorf("TurnNumber = %d, want 1", result.TurnNumber)
		}
	}
}

// TestAdvancePhase_EndRollsOverTurn はendフェーズからのターン交代を確認する:
// 手番の交代、ターン番号の加算、drawへのリセット、召喚権の回復、新手番のドロー。
func TestAdvancePhase_EndRollsOverTurn(t *testing.T) {
	game := newActiveGame(model.PhaseEnd)
	game.Sides[model.SlotB].State.HasNormalSummonedThisTurn = true
	repo := newFakeGameRepo(game)
	svc := NewService(repo, defaultCatalog(), nil)

	result, err := svc.AdvancePhase(context.Background(), "game-1", "user-a")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !result.TurnEnded {
		t.Error("TurnEnded should be true")
	}
	if result.TurnNumber != 2 {
		t.Errorf("TurnNumber = %d, want 2", result.TurnNumber)
	}
	if result.Phase != model.PhaseDraw {
		t.Errorf("Phase = %q, want draw", result.Phase)
	}

	stored, _ := repo.FindByID(context.Background(), "game-1")
	if stored.CurrentTurn != model.SlotB {
		t.Errorf("CurrentTurn = %v, want SlotB", stored.CurrentTurn)
	}
	if stored.Sides[model.SlotB].State.HasNormalSummonedThisTurn {
		t.Error("new turn player's summon flag should be reset")
	}

	// ターン2の開始時に新手番（SlotB）がドローしている
	stateB := stored.Sides[model.SlotB].State
	if len(stateB.Hand) != 2 {
		t.Errorf("SlotB hand size = %d, want 2 (drew at start of turn)", len(stateB.Hand))
	}
	if stateB.DeckSize != 1 {
		t.Errorf("SlotB deck size = %d, want 1", stateB.DeckSize)
	}
}

// TestAdvancePhase_LogsEndTurnWithEndingTurnNumber はendTurnログが
// 終了したターンの番号で記録されることを確認する。
func TestAdvancePhase_LogsEndTurnWithEndingTurnNumber(t *testing.T) {
	game := newActiveGame(model.PhaseEnd)
	game.TurnNumber = 3
	game.CurrentTurn = model.SlotA
	repo := newFakeGameRepo(game)
	svc := NewService(repo, defaultCatalog(), nil)

	if _, err := svc.AdvancePhase(context.Background(), "game-1", "user-a"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), "game-1")
	var endTurnEntry *model.ActionLogEntry
	for i := range stored.ActionsLog {
		if stored.ActionsLog[i].ActionType == model.ActionEndTurn {
			endTurnEntry = &stored.ActionsLog[i]
		}
	}
	if endTurnEntry == nil {
		t.Fatal("expected endTurn log entry")
	}
	if endTurnEntry.TurnNumber != 3 {
		t.Errorf("endTurn log TurnNumber = %d, want 3 (the ending turn)", endTurnEntry.TurnNumber)
	}
	if endTurnEntry.Player != model.SlotA {
		t.Errorf("endTurn log Player = %v, want SlotA", endTurnEntry.Player)
	}
}

// TestAdvancePhase_NotYourTurn は非手番プレイヤーの操作が拒否されることを確認する。
func TestAdvancePhase_NotYourTurn(t *testing.T) {
	repo := newFakeGameRepo(newActiveGame(model.PhaseDraw))
	svc := NewService(repo, defaultCatalog(), nil)

	_, err := svc.AdvancePhase(context.Background(), "game-1", "user-b")
	assertCode(t, err, model.ErrCodeNotYourTurn)
}

// TestAdvancePhase_NotAPlayer は非参加者の操作が拒否されることを確認する。
func TestAdvancePhase_NotAPlayer(t *testing.T) {
	repo := newFakeGameRepo(newActiveGame(model.PhaseDraw))
	svc := NewService(repo, defaultCatalog(), nil)

	_, err := svc.AdvancePhase(context.Background(), "game-1", "user-x")
	assertCode(t, err, model.ErrCodeNotAPlayer)
}

// TestAdvancePhase_FinishedGame は終了済みセッションへの操作が拒否されることを確認する。
// 非参加者による操作でもSessionNotActiveが先に報告される。
func TestAdvancePhase_FinishedGame(t *testing.T) {
	game := newActiveGame(model.PhaseDraw)
	game.Status = model.GameStatusFinished
	repo := newFakeGameRepo(game)
	svc := NewService(repo, defaultCatalog(), nil)

	_, err := svc.AdvancePhase(context.Background(), "game-1", "user-x")
	assertCode(t, err, model.ErrCodeSessionNotActive)
}

// TestAdvancePhase_GameNotFound は存在しないセッションへの操作を確認する。
func TestAdvancePhase_GameNotFound(t *testing.T) {
	repo := newFakeGameRepo()
	svc := NewService(repo, defaultCatalog(), nil)

	_, err := svc.AdvancePhase(context.Background(), "no-such-game", "user-a")
	assertCode(t, err, model.ErrCodeGameNotFound)
}

// --- ドロー ---

// TestDrawCard_Success はドローで手札が1枚増えデッキが1枚減ることを確認する。
func TestDrawCard_Success(t *testing.T) {
	repo := newFakeGameRepo(newActiveGame(model.PhaseDraw))
	svc := NewService(repo, defaultCatalog(), nil)

	result, err := svc.DrawCard(context.Background(), "game-1", "user-a")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if result.Outcome != DrawOutcomeSuccess {
		t.Errorf("Outcome = %q, want success", result.Outcome)
	}
	if result.HandSize != 5 {
		t.Errorf("HandSize = %d, want 5", result.HandSize)
	}
	if result.DeckSize != 2 {
		t.Errorf("DeckSize = %d, want 2", result.DeckSize)
	}

	stored, _ := repo.FindByID(context.Background(), "game-1")
	stateA := stored.Sides[model.SlotA].State
	if stateA.Hand[len(stateA.Hand)-1] != "d1" {
		t.Errorf("drawn card = %q, want d1 (top of deck)", stateA.Hand[len(stateA.Hand)-1])
	}
}

// TestDrawCard_LogOmitsCardIdentity はドローログにカードの同一性が
// 一切含まれないことを確認する（相手に手札が漏れるため）。
func TestDrawCard_LogOmitsCardIdentity(t *testing.T) {
	repo := newFakeGameRepo(newActiveGame(model.PhaseDraw))
	svc := NewService(repo, defaultCatalog(), nil)

	if _, err := svc.DrawCard(context.Background(), "game-1", "user-a"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), "game-1")
	if len(stored.ActionsLog) != 1 {
		t.Fatalf("ActionsLog length = %d, want 1", len(stored.ActionsLog))
	}
	entry := stored.ActionsLog[0]
	if entry.ActionType != model.ActionDraw {
		t.Errorf("ActionType = %q, want draw", entry.ActionType)
	}
	if entry.CardID != "" {
		t.Errorf("draw log must not contain CardID, got %q", entry.CardID)
	}
	if entry.FromZone != "deck" || entry.ToZone != "hand" {
		t.Errorf("FromZone/ToZone = %q/%q, want deck/hand", entry.FromZone, entry.ToZone)
	}
}

// TestDrawCard_DeckOut はデッキ切れで対戦が終了し、
// 相手が勝者になり、敗者のライフが0になることを確認する。
func TestDrawCard_DeckOut(t *testing.T) {
	game := newActiveGame(model.PhaseDraw)
	game.Sides[model.SlotA].State.Deck = []string{}
	game.Sides[model.SlotA].State.SyncDeckSize()
	repo := newFakeGameRepo(game)
	svc := NewService(repo, defaultCatalog(), nil)

	result, err := svc.DrawCard(context.Background(), "game-1", "user-a")
	if err != nil {
		t.Fatalf("deck-out is a result, not an error: %v", err)
	}

	if result.Outcome != DrawOutcomeDeckOut {
		t.Errorf("Outcome = %q, want deckOut", result.Outcome)
	}
	if result.WinnerID != "user-b" {
		t.Errorf("WinnerID = %q, want user-b (opponent)", result.WinnerID)
	}

	stored, _ := repo.FindByID(context.Background(), "game-1")
	if stored.Status != model.GameStatusFinished {
		t.Errorf("Status = %q, want finished", stored.Status)
	}
	if stored.WinnerID != "user-b" {
		t.Errorf("stored WinnerID = %q, want user-b", stored.WinnerID)
	}
	if stored.FinishedAt == nil {
		t.Error("FinishedAt should be stamped")
	}
	if stored.Sides[model.SlotA].State.LifePoints != 0 {
		t.Errorf("loser LifePoints = %d, want 0", stored.Sides[model.SlotA].State.LifePoints)
	}
}

// TestDrawCard_AfterFinish は終了済みセッションでのドローが拒否されることを確認する。
func TestDrawCard_AfterFinish(t *testing.T) {
	game := newActiveGame(model.PhaseDraw)
	game.Status = model.GameStatusFinished
	repo := newFakeGameRepo(game)
	svc := NewService(repo, defaultCatalog(), nil)

	_, err := svc.DrawCard(context.Background(), "game-1", "user-a")
	assertCode(t, err, model.ErrCodeSessionNotActive)
}

// TestDrawCard_GameNotFound は存在しないセッションでのドローを確認する。
func TestDrawCard_GameNotFound(t *testing.T) {
	repo := newFakeGameRepo()
	svc := NewService(repo, defaultCatalog(), nil)

	_, err := svc.DrawCard(context.Background(), "no-such-game", "user-a")
	assertCode(t, err, model.ErrCodeGameNotFound)
}

// --- 通常召喚・セット ---

func summon(svc *Service, cardID string, action SummonAction, tributes []string, zone *int) error {
	_, err := svc.NormalSummonOrSet(context.Background(), "game-1", "user-a", cardID, action, tributes, zone)
	return err
}

// TestSummon_NormalSummonLevel4 はレベル4モンスターのリリースなし召喚を確認する。
func TestSummon_NormalSummonLevel4(t *testing.T) {
	repo := newFakeGameRepo(newActiveGame(model.PhaseMain1))
	svc := NewService(repo, defaultCatalog(), nil)

	if err := summon(svc, "m4", SummonActionNormalSummon, nil, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), "game-1")
	state := stored.Sides[model.SlotA].State

	slot := state.Zones.Monsters[0]
	if slot == nil {
		t.Fatal("expected monster in zone 0")
	}
	if slot.CardID != "m4" {
		t.Errorf("zone 0 CardID = %q, want m4", slot.CardID)
	}
	if slot.Position != model.PositionAttack {
		t.Errorf("Position = %q, want attack", slot.Position)
	}
	if state.HandContains("m4") {
		t.Error("summoned card should be removed from hand")
	}
	if !state.HasNormalSummonedThisTurn {
		t.Error("summon flag should be set")
	}
}

// TestSummon_SetIsFaceDownDefense はセットが裏側守備表示になることを確認する。
func TestSummon_SetIsFaceDownDefense(t *testing.T) {
	repo := newFakeGameRepo(newActiveGame(model.PhaseMain2))
	svc := NewService(repo, defaultCatalog(), nil)

	if err := summon(svc, "m4", SummonActionSet, nil, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), "game-1")
	slot := stored.Sides[model.SlotA].State.Zones.Monsters[0]
	if slot == nil || slot.Position != model.PositionFaceDownDefense {
		t.Errorf("set monster should be face-down-defense, got %+v", slot)
	}
}

// TestSummon_LogsSummon は召喚ログにカードIDと移動先ゾーンが記録されることを確認する。
func TestSummon_LogsSummon(t *testing.T) {
	repo := newFakeGameRepo(newActiveGame(model.PhaseMain1))
	svc := NewService(repo, defaultCatalog(), nil)

	zone := 2
	if err := summon(svc, "m4", SummonActionNormalSummon, nil, &zone); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), "game-1")
	if len(stored.ActionsLog) != 1 {
		t.Fatalf("ActionsLog length = %d, want 1", len(stored.ActionsLog))
	}
	entry := stored.ActionsLog[0]
	if entry.ActionType != model.ActionNormalSummon {
		t.Errorf("ActionType = %q, want normalSummon", entry.ActionType)
	}
	if entry.CardID != "m4" {
		t.Errorf("CardID = %q, want m4", entry.CardID)
	}
	if entry.ToZone != "monsterZone3" {
		t.Errorf("ToZone = %q, want monsterZone3 (1-origin)", entry.ToZone)
	}
}

// TestSummon_OutsideMainPhase はメインフェーズ以外での召喚が拒否されることを確認する。
func TestSummon_OutsideMainPhase(t *testing.T) {
	for _, phase := range []model.Phase{model.PhaseDraw, model.PhaseStandby, model.PhaseBattle, model.PhaseEnd} {
		repo := newFakeGameRepo(newActiveGame(phase))
		svc := NewService(repo, defaultCatalog(), nil)

		err := summon(svc, "m4", SummonActionNormalSummon, nil, nil)
		assertCode(t, err, model.ErrCodeInvalidPhase)
	}
}

// TestSummon_CardNotInHand は手札にないカードの召喚が拒否されることを確認する。
func TestSummon_CardNotInHand(t *testing.T) {
	repo := newFakeGameRepo(newActiveGame(model.PhaseMain1))
	svc := NewService(repo, defaultCatalog(), nil)

	err := summon(svc, "not-in-hand", SummonActionNormalSummon, nil, nil)
	assertCode(t, err, model.ErrCodeCardNotInHand)
}

// TestSummon_CardNotFound はカタログ未登録カードの召喚が拒否されることを確認する。
func TestSummon_CardNotFound(t *testing.T) {
	game := newActiveGame(model.PhaseMain1)
	game.Sides[model.SlotA].State.Hand = append(game.Sides[model.SlotA].State.Hand, "ghost")
	repo := newFakeGameRepo(game)
	svc := NewService(repo, defaultCatalog(), nil)

	err := summon(svc, "ghost", SummonActionNormalSummon, nil, nil)
	assertCode(t, err, model.ErrCodeCardNotFound)
}

// TestSummon_NotAMonster は魔法カードの召喚が拒否されることを確認する。
func TestSummon_NotAMonster(t *testing.T) {
	repo := newFakeGameRepo(newActiveGame(model.PhaseMain1))
	svc := NewService(repo, defaultCatalog(), nil)

	err := summon(svc, "s1", SummonActionNormalSummon, nil, nil)
	assertCode(t, err, model.ErrCodeNotAMonster)
}

// TestSummon_TributeCountByLevel はレベルに応じたリリース数の検証を確認する:
// レベル7以上は2体、レベル5-6は1体、それ未満は0体。過不足はいずれも拒否。
func TestSummon_TributeCountByLevel(t *testing.T) {
	tests := []struct {
		name     string
		cardID   string
		tributes []string
	}{
		{"level4_with_tribute", "m4", []string{"t1"}},
		{"level5_without_tribute", "m5", nil},
		{"level5_with_two_tributes", "m5", []string{"t1", "t2"}},
		{"level7_with_one_tribute", "m7", []string{"t1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			game := newActiveGame(model.PhaseMain1)
			// フィールドにリリース候補を2体置いておく
			game.Sides[model.SlotA].State.Zones.Monsters[0] = &model.MonsterSlot{CardID: "t1", Position: model.PositionAttack}
			game.Sides[model.SlotA].State.Zones.Monsters[1] = &model.MonsterSlot{CardID: "t2", Position: model.PositionAttack}
			repo := newFakeGameRepo(game)
			svc := NewService(repo, defaultCatalog(), nil)

			err := summon(svc, tt.cardID, SummonActionNormalSummon, tt.tributes, nil)
			assertCode(t, err, model.ErrCodeWrongTributeCount)
		})
	}
}

// TestSummon_TributeSummon はリリース付き召喚でリリースされたモンスターが
// 墓地へ移動し、ゾーンが空くことを確認する。
func TestSummon_TributeSummon(t *testing.T) {
	game := newActiveGame(model.PhaseMain1)
	game.Sides[model.SlotA].State.Zones.Monsters[0] = &model.MonsterSlot{CardID: "t1", Position: model.PositionAttack}
	game.Sides[model.SlotA].State.Zones.Monsters[1] = &model.MonsterSlot{CardID: "t2", Position: model.PositionDefense}
	repo := newFakeGameRepo(game)
	svc := NewService(repo, defaultCatalog(), nil)

	if err := summon(svc, "m7", SummonActionNormalSummon, []string{"t1", "t2"}, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), "game-1")
	state := stored.Sides[model.SlotA].State

	if state.Zones.FindMonsterByCard("m7") == -1 {
		t.Error("summoned monster should be on the field")
	}
	if state.Zones.FindMonsterByCard("t1") != -1 || state.Zones.FindMonsterByCard("t2") != -1 {
		t.Error("tributed monsters should be removed from the field")
	}
	if len(state.Graveyard) != 2 {
		t.Errorf("graveyard size = %d, want 2", len(state.Graveyard))
	}
}

// TestSummon_DuplicateTributeIDs は同名カード2枚のリリースが
// 別々のゾーンに割り当てられることを確認する。
func TestSummon_DuplicateTributeIDs(t *testing.T) {
	game := newActiveGame(model.PhaseMain1)
	game.Sides[model.SlotA].State.Zones.Monsters[0] = &model.MonsterSlot{CardID: "twin", Position: model.PositionAttack}
	game.Sides[model.SlotA].State.Zones.Monsters[3] = &model.MonsterSlot{CardID: "twin", Position: model.PositionAttack}
	repo := newFakeGameRepo(game)
	svc := NewService(repo, defaultCatalog(), nil)

	if err := summon(svc, "m7", SummonActionNormalSummon, []string{"twin", "twin"}, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), "game-1")
	state := stored.Sides[model.SlotA].State
	if state.Zones.FindMonsterByCard("twin") != -1 {
		t.Error("both copies should be tributed")
	}
	if len(state.Graveyard) != 2 {
		t.Errorf("graveyard size = %d, want 2", len(state.Graveyard))
	}
}

// TestSummon_DuplicateTributeWithSingleCopy は同名2枚指定に対して
// フィールドに1枚しかない場合にInvalidTributeになることを確認する。
func TestSummon_DuplicateTributeWithSingleCopy(t *testing.T) {
	game := newActiveGame(model.PhaseMain1)
	game.Sides[model.SlotA].State.Zones.Monsters[0] = &model.MonsterSlot{CardID: "twin", Position: model.PositionAttack}
	repo := newFakeGameRepo(game)
	svc := NewService(repo, defaultCatalog(), nil)

	err := summon(svc, "m7", SummonActionNormalSummon, []string{"twin", "twin"}, nil)
	assertCode(t, err, model.ErrCodeInvalidTribute)
}

// TestSummon_InvalidTribute はフィールドにいないモンスターのリリース指定が
// 拒否されることを確認する。
func TestSummon_InvalidTribute(t *testing.T) {
	game := newActiveGame(model.PhaseMain1)
	game.Sides[model.SlotA].State.Zones.Monsters[0] = &model.MonsterSlot{CardID: "t1", Position: model.PositionAttack}
	repo := newFakeGameRepo(game)
	svc := NewService(repo, defaultCatalog(), nil)

	err := summon(svc, "m5", SummonActionNormalSummon, []string{"not-on-field"}, nil)
	assertCode(t, err, model.ErrCodeInvalidTribute)
}

// TestSummon_AlreadySummoned はターン内2度目の召喚が拒否されることを確認する。
func TestSummon_AlreadySummoned(t *testing.T) {
	game := newActiveGame(model.PhaseMain1)
	game.Sides[model.SlotA].State.HasNormalSummonedThisTurn = true
	repo := newFakeGameRepo(game)
	svc := NewService(repo, defaultCatalog(), nil)

	err := summon(svc, "m4", SummonActionNormalSummon, nil, nil)
	assertCode(t, err, model.ErrCodeAlreadySummoned)
}

// TestSummon_ExplicitOccupiedZone は使用中ゾーンの明示指定が
// 上書きせず拒否されることを確認する。
func TestSummon_ExplicitOccupiedZone(t *testing.T) {
	game := newActiveGame(model.PhaseMain1)
	game.Sides[model.SlotA].State.Zones.Monsters[2] = &model.MonsterSlot{CardID: "occupant", Position: model.PositionAttack}
	repo := newFakeGameRepo(game)
	svc := NewService(repo, defaultCatalog(), nil)

	zone := 2
	err := summon(svc, "m4", SummonActionNormalSummon, nil, &zone)
	assertCode(t, err, model.ErrCodeNoZoneAvailable)

	// 占有カードが上書きされていないこと
	stored, _ := repo.FindByID(context.Background(), "game-1")
	if stored.Sides[model.SlotA].State.Zones.Monsters[2].CardID != "occupant" {
		t.Error("occupied zone must not be overwritten")
	}
}

// TestSummon_ZoneIndexOutOfRange は範囲外のゾーン指定が拒否されることを確認する。
func TestSummon_ZoneIndexOutOfRange(t *testing.T) {
	repo := newFakeGameRepo(newActiveGame(model.PhaseMain1))
	svc := NewService(repo, defaultCatalog(), nil)

	for _, idx := range []int{-1, 5, 100} {
		zone := idx
		err := summon(svc, "m4", SummonActionNormalSummon, nil, &zone)
		assertCode(t, err, model.ErrCodeNoZoneAvailable)
	}
}

// TestSummon_AllZonesFull は全ゾーン使用中で自動選択が失敗することを確認する。
func TestSummon_AllZonesFull(t *testing.T) {
	game := newActiveGame(model.PhaseMain1)
	for i := 0; i < model.MonsterZoneCount; i++ {
		game.Sides[model.SlotA].State.Zones.Monsters[i] = &model.MonsterSlot{
			CardID: "filler", Position: model.PositionAttack,
		}
	}
	repo := newFakeGameRepo(game)
	svc := NewService(repo, defaultCatalog(), nil)

	err := summon(svc, "m4", SummonActionNormalSummon, nil, nil)
	assertCode(t, err, model.ErrCodeNoZoneAvailable)
}

// TestSummon_FailureLeavesStateUnchanged は検証失敗時に
// 手札・ゾーン・墓地・召喚権のいずれも変更されないことを確認する。
func TestSummon_FailureLeavesStateUnchanged(t *testing.T) {
	game := newActiveGame(model.PhaseMain1)
	game.Sides[model.SlotA].State.Zones.Monsters[0] = &model.MonsterSlot{CardID: "t1", Position: model.PositionAttack}
	repo := newFakeGameRepo(game)
	svc := NewService(repo, defaultCatalog(), nil)

	// リリース指定が不正なため、検証の最終段で失敗する
	err := summon(svc, "m5", SummonActionNormalSummon, []string{"phantom"}, nil)
	assertCode(t, err, model.ErrCodeInvalidTribute)

	stored, _ := repo.FindByID(context.Background(), "game-1")
	state := stored.Sides[model.SlotA].State
	if !state.HandContains("m5") {
		t.Error("hand should be unchanged after failed summon")
	}
	if state.HasNormalSummonedThisTurn {
		t.Error("summon flag should be unchanged after failed summon")
	}
	if len(state.Graveyard) != 0 {
		t.Error("graveyard should be unchanged after failed summon")
	}
	if state.Zones.Monsters[0] == nil || state.Zones.Monsters[0].CardID != "t1" {
		t.Error("field should be unchanged after failed summon")
	}
	if len(stored.ActionsLog) != 0 {
		t.Error("no log entry should be written for a failed summon")
	}
}

// TestSummon_InvalidAction は未知のアクション種別が拒否されることを確認する。
func TestSummon_InvalidAction(t *testing.T) {
	repo := newFakeGameRepo(newActiveGame(model.PhaseMain1))
	svc := NewService(repo, defaultCatalog(), nil)

	err := summon(svc, "m4", SummonAction("specialSummon"), nil, nil)
	if err == nil {
		t.Fatal("expected error for unknown action, got nil")
	}
}

// TestSummon_NotYourTurn は非手番プレイヤーの召喚が拒否されることを確認する。
func TestSummon_NotYourTurn(t *testing.T) {
	repo := newFakeGameRepo(newActiveGame(model.PhaseMain1))
	svc := NewService(repo, defaultCatalog(), nil)

	_, err := svc.NormalSummonOrSet(context.Background(), "game-1", "user-b", "m4", SummonActionNormalSummon, nil, nil)
	assertCode(t, err, model.ErrCodeNotYourTurn)
}
