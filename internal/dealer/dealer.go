// Package dealer はデッキのシャッフルとドロー分割を提供する。
// 副作用や共有状態を持たない純粋なロジックのみを置く。
package dealer

import (
	"fmt"
	"math/rand/v2"
)

// Dealer はカード列の一様ランダムな並べ替えを行う。
// 乱数源を注入できるため、テストでは決定的な結果を得られる。
type Dealer struct {
	rng *rand.Rand
}

// New はグローバル乱数源を使用するDealerを生成する。
func New() *Dealer {
	return &Dealer{}
}

// NewWithSource は指定した乱数源を使用するDealerを生成する。
// 再現性が必要なテストで使用する。
func NewWithSource(src rand.Source) *Dealer {
	return &Dealer{rng: rand.New(src)}
}

// Shuffle はカード列の一様ランダムな順列を新しいスライスとして返す。
// Fisher–Yatesによる並べ替えで、すべての順列が等確率に現れる。
// 入力スライスは変更しない。
func (d *Dealer) Shuffle(cardIDs []string) []string {
	shuffled := make([]string, len(cardIDs))
	copy(shuffled, cardIDs)

	swap := func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	if d.rng != nil {
		d.rng.Shuffle(len(shuffled), swap)
	} else {
		rand.Shuffle(len(shuffled), swap)
	}
	return shuffled
}

// Draw はカード列をシャッフルし、先頭count枚のdrawnと残りのremainingに分割して返す。
// drawnとremainingは交わらず、多重集合として合わせると入力と一致する。
// 枚数が不足している場合はエラーを返す。
func (d *Dealer) Draw(cardIDs []string, count int) (drawn, remaining []string, err error) {
	if count < 0 {
		return nil, nil, fmt.Errorf("ドロー枚数が負です: %d", count)
	}
	if len(cardIDs) < count {
		return nil, nil, fmt.Errorf("デッキの枚数が不足しています: %d枚中%d枚は引けません", len(cardIDs), count)
	}

	shuffled := d.Shuffle(cardIDs)
	return shuffled[:count], shuffled[count:], nil
}
