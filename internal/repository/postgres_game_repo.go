package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/duelman/internal/model"
)

// PostgresGameRepo はPostgreSQLを使用したゲームセッションリポジトリ。
// プレイヤー状態とアクションログはJSONB列として保持し、
// 1操作につき1回のUPDATEでまとめて書き込む。
type PostgresGameRepo struct {
	db *sql.DB
}

// NewPostgresGameRepo はPostgresGameRepoを生成する。
func NewPostgresGameRepo(db *sql.DB) *PostgresGameRepo {
	return &PostgresGameRepo{db: db}
}

const gameColumns = `id, status, winner_id, started_at, finished_at,
	        current_turn, turn_number, phase,
	        user_a_id, deck_a_id, state_a,
	        user_b_id, deck_b_id, state_b,
	        actions_log`

// rowScanner は*sql.Rowと*sql.Rowsを共通に扱うためのインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanGame は1行分のゲームセッションを読み出す。
func scanGame(row rowScanner) (*model.GameSession, error) {
	game := &model.GameSession{}
	var winnerID sql.NullString
	var finishedAt sql.NullTime
	var currentTurn string
	var stateA, stateB, actionsLog []byte

	err := row.Scan(
		&game.ID, &game.Status, &winnerID, &game.StartedAt, &finishedAt,
		&currentTurn, &game.TurnNumber, &game.Phase,
		&game.Sides[model.SlotA].UserID, &game.Sides[model.SlotA].DeckID, &stateA,
		&game.Sides[model.SlotB].UserID, &game.Sides[model.SlotB].DeckID, &stateB,
		&actionsLog,
	)
	if err != nil {
		return nil, err
	}

	if winnerID.Valid {
		game.WinnerID = winnerID.String
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		game.FinishedAt = &t
	}

	slot, err := model.ParsePlayerSlot(currentTurn)
	if err != nil {
		return nil, fmt.Errorf("current_turnの復元に失敗しました: %w", err)
	}
	game.CurrentTurn = slot

	game.Sides[model.SlotA].State = &model.PlayerState{}
	if err := json.Unmarshal(stateA, game.Sides[model.SlotA].State); err != nil {
		return nil, fmt.Errorf("プレイヤー状態(A)の復元に失敗しました: %w", err)
	}
	game.Sides[model.SlotB].State = &model.PlayerState{}
	if err := json.Unmarshal(stateB, game.Sides[model.SlotB].State); err != nil {
		return nil, fmt.Errorf("プレイヤー状態(B)の復元に失敗しました: %w", err)
	}
	if err := json.Unmarshal(actionsLog, &game.ActionsLog); err != nil {
		return nil, fmt.Errorf("アクションログの復元に失敗しました: %w", err)
	}

	return game, nil
}

// marshalGameState はJSONB列に書き込む3つの状態をシリアライズする。
func marshalGameState(game *model.GameSession) (stateA, stateB, actionsLog []byte, err error) {
	stateA, err = json.Marshal(game.Sides[model.SlotA].State)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("プレイヤー状態(A)のシリアライズに失敗しました: %w", err)
	}
	stateB, err = json.Marshal(game.Sides[model.SlotB].State)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("プレイヤー状態(B)のシリアライズに失敗しました: %w", err)
	}
	actionsLog, err = json.Marshal(game.ActionsLog)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("アクションログのシリアライズに失敗しました: %w", err)
	}
	return stateA, stateB, actionsLog, nil
}

// Create はゲームセッションを作成する。
func (r *PostgresGameRepo) Create(ctx context.Context, game *model.GameSession) error {
	stateA, stateB, actionsLog, err := marshalGameState(game)
	if err != nil {
		return err
	}

	var winnerID sql.NullString
	if game.WinnerID != "" {
		winnerID = sql.NullString{String: game.WinnerID, Valid: true}
	}
	var finishedAt sql.NullTime
	if game.FinishedAt != nil {
		finishedAt = sql.NullTime{Time: *game.FinishedAt, Valid: true}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO games (id, status, winner_id, started_at, finished_at,
		                    current_turn, turn_number, phase,
		                    user_a_id, deck_a_id, state_a,
		                    user_b_id, deck_b_id, state_b,
		                    actions_log)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		game.ID, game.Status, winnerID, game.StartedAt, finishedAt,
		game.CurrentTurn.String(), game.TurnNumber, game.Phase,
		game.Sides[model.SlotA].UserID, game.Sides[model.SlotA].DeckID, stateA,
		game.Sides[model.SlotB].UserID, game.Sides[model.SlotB].DeckID, stateB,
		actionsLog,
	)
	if err != nil {
		return fmt.Errorf("ゲームセッションの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresGameRepo) FindByID(ctx context.Context, id string) (*model.GameSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = $1`, id,
	)

	game, err := scanGame(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ゲームセッションの取得に失敗しました: %w", err)
	}
	return game, nil
}

// ListActiveByUser は指定ユーザーがいずれかのスロットを占めるactiveなセッションを取得する。
func (r *PostgresGameRepo) ListActiveByUser(ctx context.Context, userID string) ([]*model.GameSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+gameColumns+`
		 FROM games
		 WHERE status = 'active' AND (user_a_id = $1 OR user_b_id = $1)
		 ORDER BY started_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("アクティブセッションの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var games []*model.GameSession
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("アクティブセッションの読み取りに失敗しました: %w", err)
		}
		games = append(games, game)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アクティブセッションの走査に失敗しました: %w", err)
	}

	return games, nil
}

// Mutate は指定セッションを行ロック付きトランザクション内で読み出し、
// fnを適用してから1回の書き込みでコミットする。
// 同一セッションへの並行呼び出しはFOR UPDATEの行ロックにより直列化され、
// 後続の呼び出しは必ずコミット済みの最新状態を読む。
// fnがエラーを返した場合はロールバックし、部分的な変更は一切観測されない。
func (r *PostgresGameRepo) Mutate(ctx context.Context, gameID string, fn func(game *model.GameSession) error) (*model.GameSession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = $1 FOR UPDATE`, gameID,
	)

	game, err := scanGame(row)
	if err == sql.ErrNoRows {
		return nil, model.NewGameNotFoundError(gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("ゲームセッションの読み出しに失敗しました: %w", err)
	}

	if err := fn(game); err != nil {
		return nil, err
	}

	stateA, stateB, actionsLog, err := marshalGameState(game)
	if err != nil {
		return nil, err
	}

	var winnerID sql.NullString
	if game.WinnerID != "" {
		winnerID = sql.NullString{String: game.WinnerID, Valid: true}
	}
	var finishedAt sql.NullTime
	if game.FinishedAt != nil {
		finishedAt = sql.NullTime{Time: *game.FinishedAt, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE games SET
		    status = $2, winner_id = $3, finished_at = $4,
		    current_turn = $5, turn_number = $6, phase = $7,
		    state_a = $8, state_b = $9, actions_log = $10
		 WHERE id = $1`,
		game.ID, game.Status, winnerID, finishedAt,
		game.CurrentTurn.String(), game.TurnNumber, game.Phase,
		stateA, stateB, actionsLog,
	)
	if err != nil {
		return nil, fmt.Errorf("ゲームセッションの更新に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return game, nil
}

// compile-time interface check
var _ GameRepository = (*PostgresGameRepo)(nil)
