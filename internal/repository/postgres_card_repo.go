package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/duelman/internal/model"
)

// PostgresCardRepo はPostgreSQLを使用したカードカタログリポジトリ。
// カタログの更新は外部コラボレータが行うため、読み取り専用。
type PostgresCardRepo struct {
	db *sql.DB
}

// NewPostgresCardRepo はPostgresCardRepoを生成する。
func NewPostgresCardRepo(db *sql.DB) *PostgresCardRepo {
	return &PostgresCardRepo{db: db}
}

// FindByIDs は指定ID群のカードをID→Cardのマップで返す。
// 存在しないIDはマップに含まれない。
func (r *PostgresCardRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*model.Card, error) {
	if len(ids) == 0 {
		return map[string]*model.Card{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, level, card_type, attack, defense,
		        monster_type, spell_type, trap_type, archetype, effect, rarity
		 FROM cards WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("カードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	cards := make(map[string]*model.Card, len(ids))
	for rows.Next() {
		card := &model.Card{}
		var attack, defense sql.NullInt64
		var monsterType, spellType, trapType, archetype, effect sql.NullString

		if err := rows.Scan(
			&card.ID, &card.Name, &card.Level, &card.CardType, &attack, &defense,
			&monsterType, &spellType, &trapType, &archetype, &effect, &card.Rarity,
		); err != nil {
			return nil, fmt.Errorf("カードの読み取りに失敗しました: %w", err)
		}

		card.Attack = int(attack.Int64)
		card.Defense = int(defense.Int64)
		card.MonsterType = nullStringValue(monsterType)
		card.SpellType = nullStringValue(spellType)
		card.TrapType = nullStringValue(trapType)
		card.Archetype = nullStringValue(archetype)
		card.Effect = nullStringValue(effect)

		cards[card.ID] = card
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("カードの走査に失敗しました: %w", err)
	}

	return cards, nil
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ CardRepository = (*PostgresCardRepo)(nil)
