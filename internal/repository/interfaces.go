// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/duelman/internal/model"
)

// QueueRepository はマッチングキューエントリの永続化インターフェース。
type QueueRepository interface {
	// FindActiveByUser は指定ユーザーのwaitingまたはmatchedのエントリを取得する。
	// 見つからない場合はnilを返す。
	FindActiveByUser(ctx context.Context, userID string) (*model.QueueEntry, error)

	// Create はキューエントリを作成する。
	Create(ctx context.Context, entry *model.QueueEntry) error

	// DeleteByID は指定IDのエントリを削除する。
	DeleteByID(ctx context.Context, id string) error

	// ListOldestWaiting はwaitingエントリをjoinedAt昇順でlimit件まで取得する。
	// 並走するマッチングスキャンとの競合はMarkMatchedの条件付き更新で解決する。
	ListOldestWaiting(ctx context.Context, limit int) ([]*model.QueueEntry, error)

	// MarkMatched は指定エントリ群をwaitingからmatchedへ遷移させる。
	// すでにwaitingでないエントリは更新されない。更新された行数を返す。
	MarkMatched(ctx context.Context, ids []string) (int64, error)

	// DeleteWaitingOlderThan はjoinedAtがcutoffより古いwaitingエントリを削除し、
	// 削除件数を返す。冪等であり、対象がなくてもエラーにならない。
	DeleteWaitingOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// ListMatchedOlderThan はjoinedAtがcutoffより古いmatchedエントリを取得する。
	ListMatchedOlderThan(ctx context.Context, cutoff time.Time) ([]*model.QueueEntry, error)
}

// GameRepository はゲームセッションの永続化インターフェース。
type GameRepository interface {
	// Create はゲームセッションを作成する。
	Create(ctx context.Context, game *model.GameSession) error

	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.GameSession, error)

	// ListActiveByUser は指定ユーザーがいずれかのスロットを占める
	// activeなセッションをすべて取得する。不変条件上は高々1件だが、
	// 不整合検出のため複数件返せる形にしている。
	ListActiveByUser(ctx context.Context, userID string) ([]*model.GameSession, error)

	// Mutate は指定セッションを行ロック付きトランザクション内で読み出し、
	// fnを適用してから1回の書き込みでコミットする。
	// fnがエラーを返した場合はロールバックし、部分的な変更は一切観測されない。
	// 同一セッションへの並行呼び出しは行ロックにより直列化される。
	// セッションが存在しない場合はGameNotFoundを返す。
	Mutate(ctx context.Context, gameID string, fn func(game *model.GameSession) error) (*model.GameSession, error)
}

// CardRepository はカードカタログの読み取りインターフェース。
// カタログの管理は外部コラボレータが行うため、書き込み操作は持たない。
type CardRepository interface {
	// FindByIDs は指定ID群のカードをID→Cardのマップで返す。
	// 存在しないIDはマップに含まれない。
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.Card, error)
}

// DeckRepository はデッキ定義の読み取りインターフェース。
// デッキの編集はデッキビルダー（外部）が行う。
type DeckRepository interface {
	// FindByID は指定IDのデッキを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Deck, error)

	// ListEntriesByDeckID はデッキの{カードID, 枚数}エントリ一覧を返す。
	ListEntriesByDeckID(ctx context.Context, deckID string) ([]model.DeckCardEntry, error)
}

// SessionRepository はログインセッションの検証用インターフェース。
// セッションの発行・失効は外部のアイデンティティサービスが行う。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
}
