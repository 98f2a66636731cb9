package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/duelman/internal/model"
)

// activeEntryConstraint はユーザーごとに高々1件のwaiting/matchedエントリを
// 保証する部分一意インデックスの名前。
const activeEntryConstraint = "idx_queue_user_active"

// isUniqueViolation は指定した制約の一意性違反かを判定する。
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505" && pqErr.Constraint == constraint
}

// PostgresQueueRepo はPostgreSQLを使用したマッチングキューリポジトリ。
type PostgresQueueRepo struct {
	db *sql.DB
}

// NewPostgresQueueRepo はPostgresQueueRepoを生成する。
func NewPostgresQueueRepo(db *sql.DB) *PostgresQueueRepo {
	return &PostgresQueueRepo{db: db}
}

// FindActiveByUser は指定ユーザーのwaitingまたはmatchedのエントリを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresQueueRepo) FindActiveByUser(ctx context.Context, userID string) (*model.QueueEntry, error) {
	entry := &model.QueueEntry{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, deck_id, status, mode, joined_at
		 FROM matchmaking_queue
		 WHERE user_id = $1 AND status IN ('waiting', 'matched')
		 LIMIT 1`,
		userID,
	).Scan(&entry.ID, &entry.UserID, &entry.DeckID, &entry.Status, &entry.Mode, &entry.JoinedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("キューエントリの検索に失敗しました: %w", err)
	}

	return entry, nil
}

// Create はキューエントリを作成する。
// 同一ユーザーのアクティブエントリがすでに存在する場合
// （並行Enqueueが事前チェックをすり抜けたケース）はAlreadyQueuedを返す。
func (r *PostgresQueueRepo) Create(ctx context.Context, entry *model.QueueEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO matchmaking_queue (id, user_id, deck_id, status, mode, joined_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.UserID, entry.DeckID, entry.Status, entry.Mode, entry.JoinedAt,
	)
	if isUniqueViolation(err, activeEntryConstraint) {
		return model.NewAlreadyQueuedError()
	}
	if err != nil {
		return fmt.Errorf("キューエントリの作成に失敗しました: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのエントリを削除する。
func (r *PostgresQueueRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM matchmaking_queue WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("キューエントリの削除に失敗しました: %w", err)
	}
	return nil
}

// ListOldestWaiting はwaitingエントリをjoinedAt昇順でlimit件まで取得する。
// 並行スキャンとの競合はMarkMatchedの条件付き更新で解決する。
func (r *PostgresQueueRepo) ListOldestWaiting(ctx context.Context, limit int) ([]*model.QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, deck_id, status, mode, joined_at
		 FROM matchmaking_queue
		 WHERE status = 'waiting'
		 ORDER BY joined_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("待機中エントリの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entries []*model.QueueEntry
	for rows.Next() {
		entry := &model.QueueEntry{}
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.DeckID, &entry.Status, &entry.Mode, &entry.JoinedAt); err != nil {
			return nil, fmt.Errorf("待機中エントリの読み取りに失敗しました: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("待機中エントリの走査に失敗しました: %w", err)
	}

	return entries, nil
}

// MarkMatched は指定エントリ群をwaitingからmatchedへ遷移させる。
// すでにwaitingでないエントリは更新されない。更新された行数を返す。
func (r *PostgresQueueRepo) MarkMatched(ctx context.Context, ids []string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE matchmaking_queue SET status = 'matched'
		 WHERE id = ANY($1) AND status = 'waiting'`,
		pq.Array(ids),
	)
	if err != nil {
		return 0, fmt.Errorf("エントリのmatched遷移に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	return affected, nil
}

// DeleteWaitingOlderThan はjoinedAtがcutoffより古いwaitingエントリを削除し、
// 削除件数を返す。
func (r *PostgresQueueRepo) DeleteWaitingOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM matchmaking_queue
		 WHERE status = 'waiting' AND joined_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("古い待機エントリの削除に失敗しました: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// ListMatchedOlderThan はjoinedAtがcutoffより古いmatchedエントリを取得する。
func (r *PostgresQueueRepo) ListMatchedOlderThan(ctx context.Context, cutoff time.Time) ([]*model.QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, deck_id, status, mode, joined_at
		 FROM matchmaking_queue
		 WHERE status = 'matched' AND joined_at < $1
		 ORDER BY joined_at ASC`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("古いmatchedエントリの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entries []*model.QueueEntry
	for rows.Next() {
		entry := &model.QueueEntry{}
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.DeckID, &entry.Status, &entry.Mode, &entry.JoinedAt); err != nil {
			return nil, fmt.Errorf("古いmatchedエントリの読み取りに失敗しました: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("古いmatchedエントリの走査に失敗しました: %w", err)
	}

	return entries, nil
}

// compile-time interface check
var _ QueueRepository = (*PostgresQueueRepo)(nil)
