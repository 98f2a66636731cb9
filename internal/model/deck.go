package model

import "time"

// Deck はユーザーが構築したデッキを表す。
// デッキビルダーは外部コラボレータであり、本エンジンは読み取りのみ行う。
type Deck struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// DeckCardEntry はデッキ内の1カード種と枚数を表す。
// マッチ開始時にquantity分だけ展開されてフラットなデッキ列になる。
type DeckCardEntry struct {
	DeckID   string
	CardID   string
	Quantity int
}
