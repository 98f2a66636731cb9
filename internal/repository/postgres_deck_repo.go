package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/duelman/internal/model"
)

// PostgresDeckRepo はPostgreSQLを使用したデッキ定義リポジトリ。
// デッキの編集はデッキビルダー（外部）が行うため、読み取り専用。
type PostgresDeckRepo struct {
	db *sql.DB
}

// NewPostgresDeckRepo はPostgresDeckRepoを生成する。
func NewPostgresDeckRepo(db *sql.DB) *PostgresDeckRepo {
	return &PostgresDeckRepo{db: db}
}

// FindByID は指定IDのデッキを取得する。見つからない場合はnilを返す。
func (r *PostgresDeckRepo) FindByID(ctx context.Context, id string) (*model.Deck, error) {
	deck := &model.Deck{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, created_at FROM decks WHERE id = $1`,
		id,
	).Scan(&deck.ID, &deck.UserID, &deck.Name, &deck.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("デッキの取得に失敗しました: %w", err)
	}

	return deck, nil
}

// ListEntriesByDeckID はデッキの{カードID, 枚数}エントリ一覧を返す。
func (r *PostgresDeckRepo) ListEntriesByDeckID(ctx context.Context, deckID string) ([]model.DeckCardEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT deck_id, card_id, quantity
		 FROM deck_card_entries
		 WHERE deck_id = $1
		 ORDER BY card_id ASC`,
		deckID,
	)
	if err != nil {
		return nil, fmt.Errorf("デッキエントリの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entries []model.DeckCardEntry
	for rows.Next() {
		var entry model.DeckCardEntry
		if err := rows.Scan(&entry.DeckID, &entry.CardID, &entry.Quantity); err != nil {
			return nil, fmt.Errorf("デッキエントリの読み取りに失敗しました: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("デッキエントリの走査に失敗しました: %w", err)
	}

	return entries, nil
}

// compile-time interface check
var _ DeckRepository = (*PostgresDeckRepo)(nil)
