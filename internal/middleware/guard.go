// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// defaultAuthCookieName はバックエンドが発行する資格情報Cookieの名前。
const defaultAuthCookieName = "access_token"

// defaultSignInPath は未認証リクエストのリダイレクト先。
const defaultSignInPath = "/auth"

// alwaysAllowedPrefixes は認証状態に関わらず通過させるパスのプレフィックス。
// 静的アセット、マニフェスト、Service Worker、フレームワーク内部アセット、
// バックエンドAPIパススルーを含む。
var alwaysAllowedPrefixes = []string{
	"/_next/",
	"/static/",
	"/public/",
	"/api/",
	"/favicon",
	"/icons",
	"/apple-touch-icon",
	"/manifest",
	"/sw.js",
	"/icon-",
	"/maskable-",
}

// alwaysAllowedExact は認証状態に関わらず通過させる完全一致パス。
// /health と /metrics はゲートウェイ自身の運用エンドポイント。
var alwaysAllowedExact = map[string]struct{}{
	"/logo.png": {},
	"/health":   {},
	"/metrics":  {},
}

// rootImageExtensions はトップレベルのパスで常時許可される画像拡張子。
var rootImageExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".gif", ".svg"}

// GuardConfig はRouteGuardの設定。
type GuardConfig struct {
	// SignInPath はリダイレクト先のサインインパス。空の場合は/auth。
	SignInPath string
	// CookieName は存在を確認する資格情報Cookieの名前。空の場合はaccess_token。
	CookieName string
	// PublicPaths は資格情報なしで通過させる完全一致パス。
	// 空の場合は"/"とSignInPathのみ。
	PublicPaths []string
}

// GuardObserver はガードの判定結果を記録するインターフェース。
// メトリクス収集用。nilの場合は記録しない。
type GuardObserver interface {
	RecordGuardPass()
	RecordGuardRedirect()
}

// NewRouteGuardMiddleware はすべてのナビゲーションを認証ゲートで検査する
// ミドルウェアを返す。判定順序は 常時許可 → 公開パス → 保護パス。
// 保護パスに資格情報Cookieが存在しない場合はサインインパスへリダイレクトし、
// 元のパスとクエリをnextパラメータに保存する。
//
// Cookieの存在のみを確認し、署名や有効期限の検証は一切行わない。
// 本物の認可は必ずバックエンド側で実施される前提の、意図的に弱いゲートである。
// このミドルウェアがエラーを返すことはない（リダイレクトか通過のみ）。
func NewRouteGuardMiddleware(cfg GuardConfig, observer GuardObserver) func(next http.Handler) http.Handler {
	signInPath := cfg.SignInPath
	if signInPath == "" {
		signInPath = defaultSignInPath
	}
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = defaultAuthCookieName
	}

	public := make(map[string]struct{})
	if len(cfg.PublicPaths) > 0 {
		for _, p := range cfg.PublicPaths {
			public[p] = struct{}{}
		}
	} else {
		public["/"] = struct{}{}
		public[signInPath] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			// 1. 常時許可を公開パスより先に評価する。
			//    保護パス風のプレフィックス配下にあるアセットで
			//    リダイレクトループを起こさないため。
			if isAlwaysAllowed(path) {
				if observer != nil {
					observer.RecordGuardPass()
				}
				next.ServeHTTP(w, r)
				return
			}

			// 2. 公開パス（ランディング、サインイン）は資格情報不要
			if _, ok := public[path]; ok {
				if observer != nil {
					observer.RecordGuardPass()
				}
				next.ServeHTTP(w, r)
				return
			}

			// 3. 保護パス: 資格情報Cookieの存在のみを確認する
			if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
				if observer != nil {
					observer.RecordGuardPass()
				}
				next.ServeHTTP(w, r)
				return
			}

			// 4. 未認証はサインインへリダイレクトし、元の宛先をnextに保存する
			if observer != nil {
				observer.RecordGuardRedirect()
			}
			http.Redirect(w, r, redirectTarget(signInPath, r.URL), http.StatusTemporaryRedirect)
		})
	}
}

// redirectTarget はサインインパスへのリダイレクトURLを構築する。
// 元のリクエストのクエリはリダイレクト先にも残し、その後ろに
// 元のパス+クエリをURLエンコードしたnextパラメータを付ける。
func redirectTarget(signInPath string, original *url.URL) string {
	originalDest := original.Path
	if original.RawQuery != "" {
		originalDest += "?" + original.RawQuery
	}
	nextParam := "next=" + url.QueryEscape(originalDest)

	if original.RawQuery != "" {
		return signInPath + "?" + original.RawQuery + "&" + nextParam
	}
	return signInPath + "?" + nextParam
}

// isAlwaysAllowed はパスが認証ゲートの対象外かどうかを判定する。
func isAlwaysAllowed(path string) bool {
	if _, ok := alwaysAllowedExact[path]; ok {
		return true
	}
	for _, prefix := range alwaysAllowedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return isRootLevelImage(path)
}

// isRootLevelImage はトップレベル（パスセグメントが1つ）の画像ファイルか
// どうかを判定する。深い保護ルートが画像拡張子で終わっていても
// 誤って除外しないよう、セグメント数を制限している。
func isRootLevelImage(path string) bool {
	if strings.Count(path, "/") != 1 {
		return false
	}
	lower := strings.ToLower(path)
	for _, ext := range rootImageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
