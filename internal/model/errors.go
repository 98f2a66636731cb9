package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, rule, queue, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeAlreadyQueued        = "ALREADY_QUEUED"
	ErrCodeAlreadyInGame        = "ALREADY_IN_GAME"
	ErrCodeDataInconsistency    = "DATA_INCONSISTENCY"
	ErrCodeGameNotFound         = "GAME_NOT_FOUND"
	ErrCodeSessionNotActive     = "SESSION_NOT_ACTIVE"
	ErrCodeNotAPlayer           = "NOT_A_PLAYER"
	ErrCodeNotYourTurn          = "NOT_YOUR_TURN"
	ErrCodeInvalidPhase         = "INVALID_PHASE"
	ErrCodeCardNotInHand        = "CARD_NOT_IN_HAND"
	ErrCodeCardNotFound         = "CARD_NOT_FOUND"
	ErrCodeNotAMonster          = "NOT_A_MONSTER"
	ErrCodeWrongTributeCount    = "WRONG_TRIBUTE_COUNT"
	ErrCodeAlreadySummoned      = "ALREADY_SUMMONED"
	ErrCodeNoZoneAvailable      = "NO_ZONE_AVAILABLE"
	ErrCodeInvalidTribute       = "INVALID_TRIBUTE"
	ErrCodeInsufficientDeckSize = "INSUFFICIENT_DECK_SIZE"
	ErrCodeDeckNotFound         = "DECK_NOT_FOUND"
)

// NewAlreadyQueuedError は二重エントリエラーを生成する。
func NewAlreadyQueuedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyQueued,
		Message:  "すでにマッチングキューに参加しています。",
		Category: "queue",
		Action:   "現在のエントリをキャンセルしてから再度お試しください。",
	}
}

// NewAlreadyInGameError は対戦中の二重参加エラーを生成する。
func NewAlreadyInGameError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyInGame,
		Message:  "すでに進行中の対戦があります。",
		Category: "queue",
		Action:   "進行中の対戦を終了してからキューに参加してください。",
	}
}

// NewDataInconsistencyError はデータ不整合エラーを生成する。
// 同一ユーザーが複数のアクティブな対戦に存在する場合など、
// 理論上起こり得ない状態を検出した際に使用する。自動修復はしない。
func NewDataInconsistencyError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeDataInconsistency,
		Message:  fmt.Sprintf("データ不整合を検出しました: %s", detail),
		Category: "system",
		Action:   "運営にお問い合わせください。",
	}
}

// NewGameNotFoundError はゲーム未検出エラーを生成する。
func NewGameNotFoundError(gameID string) *APIError {
	return &APIError{
		Code:     ErrCodeGameNotFound,
		Message:  fmt.Sprintf("指定された対戦が見つかりません: %s", gameID),
		Category: "validation",
		Action:   "対戦IDを確認してください。",
	}
}

// NewSessionNotActiveError は終端状態セッションへの操作エラーを生成する。
func NewSessionNotActiveError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotActive,
		Message:  "この対戦はすでに終了しています。",
		Category: "rule",
		Action:   "新しい対戦を開始してください。",
	}
}

// NewNotAPlayerError は非参加者による操作エラーを生成する。
func NewNotAPlayerError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAPlayer,
		Message:  "この対戦のプレイヤーではありません。",
		Category: "auth",
		Action:   "自分が参加している対戦に対して操作してください。",
	}
}

// NewNotYourTurnError は非手番プレイヤーによる操作エラーを生成する。
func NewNotYourTurnError() *APIError {
	return &APIError{
		Code:     ErrCodeNotYourTurn,
		Message:  "あなたのターンではありません。",
		Category: "rule",
		Action:   "相手のターンが終了するまでお待ちください。",
	}
}

// NewInvalidPhaseError は未知または不正なフェーズエラーを生成する。
func NewInvalidPhaseError(phase string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPhase,
		Message:  fmt.Sprintf("不正なフェーズです: %s", phase),
		Category: "rule",
		Action:   "対戦状態を再読み込みしてください。",
	}
}

// NewSummonPhaseError はメインフェーズ外の召喚エラーを生成する。
func NewSummonPhaseError(phase Phase) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPhase,
		Message:  fmt.Sprintf("召喚・セットはメインフェーズ1または2でのみ行えます（現在: %s）。", phase),
		Category: "rule",
		Action:   "メインフェーズまでフェーズを進めてください。",
	}
}

// NewCardNotInHandError は手札未所持エラーを生成する。
func NewCardNotInHandError(cardID string) *APIError {
	return &APIError{
		Code:     ErrCodeCardNotInHand,
		Message:  fmt.Sprintf("指定されたカードは手札にありません: %s", cardID),
		Category: "rule",
		Action:   "手札にあるカードを指定してください。",
	}
}

// NewCardNotFoundError はカタログ未登録カードエラーを生成する。
func NewCardNotFoundError(cardID string) *APIError {
	return &APIError{
		Code:     ErrCodeCardNotFound,
		Message:  fmt.Sprintf("カードが見つかりません: %s", cardID),
		Category: "validation",
		Action:   "カードIDを確認してください。",
	}
}

// NewNotAMonsterError はモンスター以外の召喚エラーを生成する。
func NewNotAMonsterError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAMonster,
		Message:  "通常召喚・セットできるのはモンスターカードのみです。",
		Category: "rule",
		Action:   "モンスターカードを指定してください。",
	}
}

// NewWrongTributeCountError はリリース数不一致エラーを生成する。
func NewWrongTributeCountError(level, required, supplied int) *APIError {
	return &APIError{
		Code:     ErrCodeWrongTributeCount,
		Message:  fmt.Sprintf("レベル%dのモンスターにはリリースがちょうど%d体必要です（指定: %d体）。", level, required, supplied),
		Category: "rule",
		Action:   "リリースするモンスターの数を確認してください。",
	}
}

// NewAlreadySummonedError はターン内二度目の通常召喚エラーを生成する。
func NewAlreadySummonedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadySummoned,
		Message:  "このターンはすでに通常召喚またはセットを行っています。",
		Category: "rule",
		Action:   "次のターンまでお待ちください。",
	}
}

// NewNoZoneAvailableError はモンスターゾーン不足エラーを生成する。
func NewNoZoneAvailableError() *APIError {
	return &APIError{
		Code:     ErrCodeNoZoneAvailable,
		Message:  "使用できるモンスターゾーンがありません。",
		Category: "rule",
		Action:   "空いているゾーンを指定するか、指定を省略してください。",
	}
}

// NewInvalidTributeError はフィールドに存在しないリリース指定エラーを生成する。
func NewInvalidTributeError(cardID string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTribute,
		Message:  fmt.Sprintf("リリース対象のモンスターがフィールドにいません: %s", cardID),
		Category: "rule",
		Action:   "自分のモンスターゾーンにあるカードを指定してください。",
	}
}

// NewInsufficientDeckSizeError はデッキ枚数不足エラーを生成する。
func NewInsufficientDeckSizeError(deckID string, size, required int) *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientDeckSize,
		Message:  fmt.Sprintf("デッキ%sの枚数が不足しています（%d枚、最低%d枚必要）。", deckID, size, required),
		Category: "validation",
		Action:   "デッキビルダーでカードを追加してください。",
	}
}

// NewDeckNotFoundError はデッキ未検出エラーを生成する。
func NewDeckNotFoundError(deckID string) *APIError {
	return &APIError{
		Code:     ErrCodeDeckNotFound,
		Message:  fmt.Sprintf("指定されたデッキが見つかりません: %s", deckID),
		Category: "validation",
		Action:   "デッキIDを確認してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}
