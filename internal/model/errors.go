// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, transport, capability, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeTransportFailed    = "TRANSPORT_FAILED"
	ErrCodeAuthRequired       = "AUTH_REQUIRED"
	ErrCodeGeolocationUnavail = "GEOLOCATION_UNAVAILABLE"
	ErrCodeInvalidRarity      = "INVALID_RARITY"
	ErrCodePlayerNotFound     = "PLAYER_NOT_FOUND"
)

// NewValidationFailedError は入力検証エラーを生成する。
// フィールドごとの詳細はvalidate.FieldErrorsが保持し、
// このエラーは通知用の要約として使用する。
func NewValidationFailedError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", field),
		Category: "validation",
		Action:   "該当フィールドを修正してから再度お試しください。",
	}
}

// NewTransportError は通信エラーを生成する。
// ネットワーク障害と非2xx応答の両方をこの1種類に正規化する。
func NewTransportError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeTransportFailed,
		Message:  fmt.Sprintf("サーバーとの通信に失敗しました: %s", reason),
		Category: "transport",
		Action:   "通信環境を確認し、しばらく待ってから再度お試しください。",
	}
}

// NewAuthRequiredError は未認証エラーを生成する。
func NewAuthRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthRequired,
		Message:  "サインインが必要です。",
		Category: "auth",
		Action:   "サインインしてから再度お試しください。",
	}
}

// NewGeolocationUnavailableError は位置情報が利用できない場合のエラーを生成する。
// 機能は手動入力フローに縮退する。
func NewGeolocationUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeGeolocationUnavail,
		Message:  "位置情報を取得できません。",
		Category: "capability",
		Action:   "端末の位置情報設定を確認するか、手動で位置を指定してください。",
	}
}

// NewInvalidRarityError は未定義のレアリティが指定された場合のエラーを生成する。
func NewInvalidRarityError(rarity string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRarity,
		Message:  fmt.Sprintf("無効なレアリティです: %s", rarity),
		Category: "validation",
		Action:   "common、rare、epic、legendary のいずれかを指定してください。",
	}
}

// NewPlayerNotFoundError はプレイヤーが見つからない場合のエラーを生成する。
func NewPlayerNotFoundError(accountID string) *APIError {
	return &APIError{
		Code:     ErrCodePlayerNotFound,
		Message:  fmt.Sprintf("プレイヤーが見つかりません: %s", accountID),
		Category: "auth",
		Action:   "サインインし直してください。",
	}
}
