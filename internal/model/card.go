// Package model はドメインモデルを定義する。
package model

// CardType はカードの種別を表す。
// "normal" はモンスターカードを意味する（通常召喚・セットの対象）。
type CardType string

const (
	// CardTypeNormal はモンスターカード。
	CardTypeNormal CardType = "normal"
	// CardTypeSpell は魔法カード。
	CardTypeSpell CardType = "spell"
	// CardTypeTrap は罠カード。
	CardTypeTrap CardType = "trap"
)

// Rarity はカードのレアリティを表す。
type Rarity string

const (
	RarityN  Rarity = "n"
	RarityR  Rarity = "r"
	RaritySR Rarity = "sr"
	RarityUR Rarity = "ur"
)

// Card はカードカタログの1枚を表す。
// カタログは外部コラボレータが管理し、本エンジンからは読み取り専用。
// ルール判定に使用するのはLevelとCardTypeのみ。
type Card struct {
	ID          string
	Name        string
	Level       int
	CardType    CardType
	Attack      int
	Defense     int
	MonsterType string
	SpellType   string
	TrapType    string
	Archetype   string
	Effect      string
	Rarity      Rarity
}

// RequiredTributes はカードレベルから必要なリリース（生け贄）数を返す。
// レベル7以上は2体、レベル5-6は1体、それ未満は0体。
func (c *Card) RequiredTributes() int {
	switch {
	case c.Level >= 7:
		return 2
	case c.Level >= 5:
		return 1
	default:
		return 0
	}
}

// IsMonster は通常召喚・セットの対象になれるカードかを返す。
func (c *Card) IsMonster() bool {
	return c.CardType == CardTypeNormal
}
