package model

import "time"

// QueueStatus はマッチングキューエントリの状態を表す。
type QueueStatus string

const (
	// QueueStatusWaiting は対戦相手を待っている状態。
	QueueStatusWaiting QueueStatus = "waiting"
	// QueueStatusMatched はペアリング済みの状態。
	QueueStatusMatched QueueStatus = "matched"
)

// QueueMode は対戦モードを表す。
type QueueMode string

const (
	// QueueModeRanked はランクマッチ。
	QueueModeRanked QueueMode = "ranked"
	// QueueModeUnranked はカジュアルマッチ。
	QueueModeUnranked QueueMode = "unranked"
)

// QueueEntry はマッチング待ちのエントリを表す。
// 1ユーザーにつきwaitingまたはmatchedのエントリは常に高々1件。
// キャンセルまたはジャニターの掃除で物理削除される。
type QueueEntry struct {
	ID       string
	UserID   string
	DeckID   string
	Status   QueueStatus
	Mode     QueueMode
	JoinedAt time.Time
}

// Age は現在時刻からのエントリの経過時間を返す。
func (e *QueueEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.JoinedAt)
}
