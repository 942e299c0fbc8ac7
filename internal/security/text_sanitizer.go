// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はユーザーが入力したエッグのタイトルや
// メッセージをサニタイズし、地図上の吹き出しなどで表示される際の
// XSSからユーザーを保護する。bluemondayの厳格ポリシーにより
// すべてのHTMLタグを除去し、プレーンテキストのみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxTextLength はエッグのタイトル・メッセージの最大長（ルーン数）。
// サーバー側の制約と揃えてある。
const maxTextLength = 280

// TextSanitizerService はユーザー入力テキストのサニタイズ機能の
// インターフェースを定義する。エッグ設置時の保存前に使用される。
type TextSanitizerService interface {
	// Sanitize はテキストからすべてのHTMLタグを除去し、前後の空白を
	// 取り除き、最大長で切り詰めたプレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフに処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはタグを一切許可しないため、scriptやimgを含む
// あらゆるHTMLがテキストのみに落とされる。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はテキストからすべてのHTMLタグを除去する。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}

	cleaned := strings.TrimSpace(s.policy.Sanitize(raw))
	// 切り詰めはルーン単位で行う。バイト単位だとマルチバイト文字の
	// 途中で切れて不正なUTF-8になる。
	if runes := []rune(cleaned); len(runes) > maxTextLength {
		cleaned = string(runes[:maxTextLength])
	}
	return cleaned
}
