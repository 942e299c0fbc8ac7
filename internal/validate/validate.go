// Package validate はフォーム入力のクライアント側検証を提供する。
// 検証エラーはフィールド単位でインライン表示されることを想定しており、
// 検証に失敗した入力がネットワークへ到達することはない。
package validate

import (
	"regexp"
	"sort"
	"strings"
)

const (
	passwordMinLength = 8
	usernameMinLength = 3
	usernameMaxLength = 24
)

var (
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	hasUppercase    = regexp.MustCompile(`[A-Z]`).MatchString
	hasLowercase    = regexp.MustCompile(`[a-z]`).MatchString
	hasNumber       = regexp.MustCompile(`[0-9]`).MatchString
	hasSpecial      = regexp.MustCompile(`[!@#{}\[\]\$%\^&\*\(\)]`).MatchString
)

// FieldErrors はフィールド名からエラーメッセージへのマップ。
// 空のマップは検証成功を意味する。
type FieldErrors map[string]string

// Error はerrorインターフェースを実装する。
// メッセージはフィールド名順に連結される。
func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for field := range fe {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	msgs := make([]string, 0, len(fields))
	for _, field := range fields {
		msgs = append(msgs, fe[field])
	}
	return strings.Join(msgs, ", ")
}

// Email はメールアドレスの形式を検証する。
// 正当な場合は空文字列、不正な場合はメッセージを返す。
func Email(email string) string {
	if email == "" {
		return "email field is required."
	}
	if !emailPattern.MatchString(email) {
		return "email must be a valid email address."
	}
	return ""
}

// Password はパスワードの強度を検証する。
// 8文字以上、大文字・小文字・数字・記号を各1つ以上含むこと。
func Password(password string) string {
	if password == "" {
		return "password field is required."
	}
	if len(password) < passwordMinLength ||
		!hasUppercase(password) ||
		!hasLowercase(password) ||
		!hasNumber(password) ||
		!hasSpecial(password) {
		return "Password must be at least 8 characters long, include uppercase and lowercase letters, a number, and a special character."
	}
	return ""
}

// Username はユーザー名を検証する。省略可能なフィールドのため空は正当。
// 英数字とアンダースコアのみ、3〜24文字。
func Username(username string) string {
	if username == "" {
		return ""
	}
	if len(username) < usernameMinLength {
		return "username must be at least 3 characters long."
	}
	if len(username) > usernameMaxLength {
		return "username must be at most 24 characters long."
	}
	if !usernamePattern.MatchString(username) {
		return "username may only contain letters, numbers, and underscores."
	}
	return ""
}

// Registration は登録フォームの全フィールドを検証する。
// すべてのフィールドが正当な場合はnilを返す。
func Registration(email, password, username string) FieldErrors {
	fe := make(FieldErrors)
	if msg := Email(email); msg != "" {
		fe["email"] = msg
	}
	if msg := Password(password); msg != "" {
		fe["password"] = msg
	}
	if msg := Username(username); msg != "" {
		fe["username"] = msg
	}
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// Login はログインフォームを検証する。
// パスワードは存在のみ確認する（強度要件は登録時のみ）。
func Login(email, password string) FieldErrors {
	fe := make(FieldErrors)
	if msg := Email(email); msg != "" {
		fe["email"] = msg
	}
	if password == "" {
		fe["password"] = "password field is required."
	}
	if len(fe) == 0 {
		return nil
	}
	return fe
}
