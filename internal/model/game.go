package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// GameStatus はゲームセッションの外側の状態を表す。
// finished / aborted は終端状態であり、以後の変更を一切受け付けない。
type GameStatus string

const (
	// GameStatusWaitingForOpponent は対戦相手の参加待ち状態。
	GameStatusWaitingForOpponent GameStatus = "waiting_for_player_2"
	// GameStatusActive は対戦中の状態。
	GameStatusActive GameStatus = "active"
	// GameStatusFinished は決着済みの状態。
	GameStatusFinished GameStatus = "finished"
	// GameStatusAborted は中断された状態。
	GameStatusAborted GameStatus = "aborted"
)

// Phase は1ターン内のフェーズを表す。
type Phase string

const (
	PhaseDraw    Phase = "draw"
	PhaseStandby Phase = "standby"
	PhaseMain1   Phase = "main1"
	PhaseBattle  Phase = "battle"
	PhaseMain2   Phase = "main2"
	PhaseEnd     Phase = "end"
)

// phaseOrder はフェーズの進行順序。endの次は相手のdrawへロールオーバーする。
var phaseOrder = []Phase{PhaseDraw, PhaseStandby, PhaseMain1, PhaseBattle, PhaseMain2, PhaseEnd}

// Valid は既知の6フェーズのいずれかであるかを返す。
func (p Phase) Valid() bool {
	for _, q := range phaseOrder {
		if p == q {
			return true
		}
	}
	return false
}

// Next は次のフェーズを返す。endの場合は第2戻り値がfalseになり、
// ターンのロールオーバー処理が必要であることを示す。
// 未知のフェーズに対して呼び出してはならない（事前にValidで検証すること）。
func (p Phase) Next() (Phase, bool) {
	for i, q := range phaseOrder {
		if p == q {
			if i == len(phaseOrder)-1 {
				return PhaseDraw, false
			}
			return phaseOrder[i+1], true
		}
	}
	return PhaseDraw, false
}

// PlayerSlot はセッション内の2プレイヤー枠を型安全に識別する。
// 文字列キーによる動的なフィールド参照を排除し、
// 全ロジックを「手番スロット」と「相手スロット」について対称に書くための列挙。
type PlayerSlot int

const (
	// SlotA は先攻プレイヤーの枠。
	SlotA PlayerSlot = iota
	// SlotB は後攻プレイヤーの枠。
	SlotB
)

// Other は相手側のスロットを返す。
func (s PlayerSlot) Other() PlayerSlot {
	if s == SlotA {
		return SlotB
	}
	return SlotA
}

// String はスロットのログ・API表現を返す。
func (s PlayerSlot) String() string {
	if s == SlotA {
		return "a"
	}
	return "b"
}

// MarshalJSON はスロットを"a"/"b"としてシリアライズする。
func (s PlayerSlot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON は"a"/"b"からスロットを復元する。
func (s *PlayerSlot) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	slot, err := ParsePlayerSlot(v)
	if err != nil {
		return err
	}
	*s = slot
	return nil
}

// ParsePlayerSlot は文字列表現からスロットを復元する。
func ParsePlayerSlot(v string) (PlayerSlot, error) {
	switch v {
	case "a":
		return SlotA, nil
	case "b":
		return SlotB, nil
	default:
		return SlotA, fmt.Errorf("未知のプレイヤースロットです: %q", v)
	}
}

// MonsterPosition はモンスターゾーン上のカードの表示形式を表す。
type MonsterPosition string

const (
	// PositionAttack は表側攻撃表示。通常召喚時の形式。
	PositionAttack MonsterPosition = "attack"
	// PositionDefense は表側守備表示。
	PositionDefense MonsterPosition = "defense"
	// PositionFaceDownDefense は裏側守備表示。セット時の形式。
	PositionFaceDownDefense MonsterPosition = "face-down-defense"
)

// MonsterZoneCount はモンスターゾーンの固定枠数。
const MonsterZoneCount = 5

// SpellTrapZoneCount は魔法・罠ゾーンの固定枠数。
const SpellTrapZoneCount = 5

// MonsterSlot はモンスターゾーン1枠の内容を表す。nilは空き枠を意味する。
// 配列インデックスがゾーンの同一性そのもの。
type MonsterSlot struct {
	CardID   string          `json:"card_id"`
	Position MonsterPosition `json:"position"`
}

// SpellTrapSlot は魔法・罠ゾーン1枠の内容を表す。nilは空き枠を意味する。
type SpellTrapSlot struct {
	CardID   string `json:"card_id"`
	FaceDown bool   `json:"face_down"`
}

// Zones はプレイヤーのフィールド全体を表す。
type Zones struct {
	Monsters       [MonsterZoneCount]*MonsterSlot    `json:"monsters"`
	SpellsAndTraps [SpellTrapZoneCount]*SpellTrapSlot `json:"spells_and_traps"`
	FieldSpell     *SpellTrapSlot                    `json:"field_spell"`
}

// FindMonsterByCard は指定カードが置かれているモンスターゾーンのインデックスを返す。
// 見つからない場合は-1を返す。
func (z *Zones) FindMonsterByCard(cardID string) int {
	for i, slot := range z.Monsters {
		if slot != nil && slot.CardID == cardID {
			return i
		}
	}
	return -1
}

// FirstEmptyMonsterZone は最初の空きモンスターゾーンのインデックスを返す。
// 空きがない場合は-1を返す。
func (z *Zones) FirstEmptyMonsterZone() int {
	for i, slot := range z.Monsters {
		if slot == nil {
			return i
		}
	}
	return -1
}

// InitialLifePoints は対戦開始時のライフポイント。
const InitialLifePoints = 8000

// PlayerState は1プレイヤー分の対戦中リソースを表す。
// 不変条件: DeckSizeは常にlen(Deck)と等しい。独立に設定してはならず、
// Deckを変更したら必ずSyncDeckSizeで再計算する。
type PlayerState struct {
	LifePoints                int      `json:"life_points"`
	Hand                      []string `json:"hand"`
	Zones                     Zones    `json:"zones"`
	HasNormalSummonedThisTurn bool     `json:"has_normal_summoned_this_turn"`
	Deck                      []string `json:"deck"`
	DeckSize                  int      `json:"deck_size"`
	Graveyard                 []string `json:"graveyard"`
	Banished                  []string `json:"banished"`
	ExtraDeck                 []string `json:"extra_deck"`
}

// NewPlayerState は初期状態のPlayerStateを生成する。
// ライフ8000、手札・デッキ・墓地は空、全ゾーン空き。
func NewPlayerState() *PlayerState {
	return &PlayerState{
		LifePoints: InitialLifePoints,
		Hand:       []string{},
		Deck:       []string{},
		Graveyard:  []string{},
		Banished:   []string{},
		ExtraDeck:  []string{},
	}
}

// SyncDeckSize はDeckSizeをデッキ列の実際の長さから再計算する。
func (s *PlayerState) SyncDeckSize() {
	s.DeckSize = len(s.Deck)
}

// HandContains は指定カードが手札にあるかを返す。
func (s *PlayerState) HandContains(cardID string) bool {
	for _, id := range s.Hand {
		if id == cardID {
			return true
		}
	}
	return false
}

// RemoveFromHand は手札から指定カードを1枚取り除く。
// 同名カードが複数ある場合は最初の1枚のみ取り除く。
// 見つからない場合はfalseを返し、手札は変更しない。
func (s *PlayerState) RemoveFromHand(cardID string) bool {
	for i, id := range s.Hand {
		if id == cardID {
			s.Hand = append(s.Hand[:i], s.Hand[i+1:]...)
			return true
		}
	}
	return false
}

// ActionType はアクションログのイベント種別を表す。
type ActionType string

const (
	ActionDraw          ActionType = "draw"
	ActionNormalSummon  ActionType = "normalSummon"
	ActionSpecialSummon ActionType = "specialSummon"
	ActionSet           ActionType = "set"
	ActionActivated     ActionType = "activated"
	ActionAttacked      ActionType = "attacked"
	ActionAdvancePhase  ActionType = "advancePhase"
	ActionEndTurn       ActionType = "endTurn"
	ActionGameStart     ActionType = "gameStart"
)

// ActionLogEntry はゲームに付随する監査・リプレイ用の構造化イベント。
// 追記専用であり、挿入後の変更・並べ替えは行わない。
// ドローのDescriptionにはカードの同一性を含めない（相手に手札が漏れるため）。
type ActionLogEntry struct {
	Timestamp   time.Time  `json:"timestamp"`
	TurnNumber  int        `json:"turn_number"`
	Player      PlayerSlot `json:"player"`
	ActionType  ActionType `json:"action_type"`
	CardID      string     `json:"card_id,omitempty"`
	FromZone    string     `json:"from_zone,omitempty"`
	ToZone      string     `json:"to_zone,omitempty"`
	Description string     `json:"description,omitempty"`
}

// PlayerSide はセッション内の1プレイヤー枠（ユーザー・デッキ・対戦状態）を表す。
type PlayerSide struct {
	UserID string
	DeckID string
	State  *PlayerState
}

// GameSession は1対戦の全状態を表す。
// 全フィールドはセッションステートマシンのみが変更し、
// 1操作につき1回のアトミックなパッチとして書き込まれる。
// セッションは削除されず、finished/abortedへの遷移のみ行う（監査のため保持）。
type GameSession struct {
	ID          string
	Status      GameStatus
	WinnerID    string
	StartedAt   time.Time
	FinishedAt  *time.Time
	CurrentTurn PlayerSlot
	TurnNumber  int
	Phase       Phase
	Sides       [2]PlayerSide
	ActionsLog  []ActionLogEntry
}

// Side は指定スロットのプレイヤー枠を返す。
func (g *GameSession) Side(slot PlayerSlot) *PlayerSide {
	return &g.Sides[slot]
}

// SlotOf は指定ユーザーが占めるスロットを返す。
// どちらのプレイヤーでもない場合は第2戻り値がfalseになる。
func (g *GameSession) SlotOf(userID string) (PlayerSlot, bool) {
	if g.Sides[SlotA].UserID == userID {
		return SlotA, true
	}
	if g.Sides[SlotB].UserID == userID {
		return SlotB, true
	}
	return SlotA, false
}

// IsActive は対戦中かを返す。
func (g *GameSession) IsActive() bool {
	return g.Status == GameStatusActive
}

// AppendLog はアクションログにイベントを追記する。
func (g *GameSession) AppendLog(e ActionLogEntry) {
	g.ActionsLog = append(g.ActionsLog, e)
}
