// Package model はドメインモデルを定義する。
package model

import "time"

// User は認証済みプレイヤーのアイデンティティを表す。
// バックエンドのレスポンスでは多くのフィールドが省略可能なため、
// 文字列フィールドの空値は「未提供」を意味する。
type User struct {
	ID        string
	Email     string
	Username  string
	FirstName string
	LastName  string
	Role      string
	XP        int64
	Coins     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session はアクセストークンとリフレッシュトークンのペアを表す。
// ログインまたは登録の成功時に生成され、ログアウトで破棄される。
type Session struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
}

// Preferences はセッション中のみ保持されるユーザー設定。
// 永続化層は存在しない（メモリ内のみ）。
type Preferences struct {
	MusicEnabled bool
	SFXEnabled   bool
}

// DefaultPreferences は設定の既定値を返す。
// 既定では音楽は無効、効果音は有効。
func DefaultPreferences() Preferences {
	return Preferences{
		MusicEnabled: false,
		SFXEnabled:   true,
	}
}
