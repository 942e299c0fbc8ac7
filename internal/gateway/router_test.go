package gateway

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/eggsplore/internal/assetcache"
	"github.com/hitoshi/eggsplore/internal/metrics"
	"github.com/hitoshi/eggsplore/internal/middleware"
)

func newTestRouter(t *testing.T, backendURL, upstreamURL string) http.Handler {
	t.Helper()

	backend, err := url.Parse(backendURL)
	if err != nil {
		t.Fatalf("failed to parse backend URL: %v", err)
	}
	upstream, err := url.Parse(upstreamURL)
	if err != nil {
		t.Fatalf("failed to parse upstream URL: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), "access_token")
	t.Cleanup(limiter.Stop)

	assets := assetcache.New(assetcache.Config{
		UpstreamURL: upstream,
		Version:     1,
		Logger:      logger,
	})

	return NewRouter(&RouterDeps{
		Logger:            logger,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       limiter,
		GuardConfig:       middleware.GuardConfig{},
		BackendURL:        backend,
		Assets:            assets,
		Collector:         collector,
		Gatherer:          reg,
	})
}

// TestRouter_HealthEndpoint は/healthが資格情報なしで応答することを検証する。
func TestRouter_HealthEndpoint(t *testing.T) {
	router := newTestRouter(t, "http://localhost:8080/api/v1", "http://localhost:3999")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body := w.Body.String(); body != `{"status":"ok"}` {
		t.Errorf("body = %q, want %q", body, `{"status":"ok"}`)
	}
}

// TestRouter_MetricsEndpoint は/metricsがPrometheus形式で応答することを検証する。
func TestRouter_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, "http://localhost:8080/api/v1", "http://localhost:3999")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestRouter_APIProxy_RewritesPath は/api/*がバックエンドのベースパスへ
// 書き換えられて中継されることを検証する。
func TestRouter_APIProxy_RewritesPath(t *testing.T) {
	var gotPath string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"eggs":[]}`))
	}))
	defer backend.Close()

	router := newTestRouter(t, backend.URL+"/api/v1", "http://localhost:3999")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/game/eggs?player_id=p-1", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotPath != "/api/v1/game/eggs" {
		t.Errorf("backend path = %q, want %q", gotPath, "/api/v1/game/eggs")
	}
	if body := w.Body.String(); body != `{"eggs":[]}` {
		t.Errorf("body = %q, want %q", body, `{"eggs":[]}`)
	}
}

// TestRouter_APIProxy_BackendDown はバックエンド不達時に502を返すことを検証する。
func TestRouter_APIProxy_BackendDown(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backendURL := backend.URL
	backend.Close()

	router := newTestRouter(t, backendURL+"/api/v1", "http://localhost:3999")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}

// TestRouter_ProtectedPageRedirectsWithoutCredential は資格情報なしの保護ページが
// サインインへリダイレクトされることを検証する。
func TestRouter_ProtectedPageRedirectsWithoutCredential(t *testing.T) {
	router := newTestRouter(t, "http://localhost:8080/api/v1", "http://localhost:3999")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.Header.Set("Accept", "text/html")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
	if loc := w.Header().Get("Location"); loc != "/auth?next=%2Fhome" {
		t.Errorf("Location = %q, want %q", loc, "/auth?next=%2Fhome")
	}
}

// TestRouter_ProtectedPageServedWithCredential は資格情報付きの保護ページが
// アセットキャッシュ経由で配信されることを検証する。
func TestRouter_ProtectedPageServedWithCredential(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>home</html>"))
	}))
	defer upstream.Close()

	router := newTestRouter(t, "http://localhost:8080/api/v1", upstream.URL)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.Header.Set("Accept", "text/html")
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "tok-1"})
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body := w.Body.String(); body != "<html>home</html>" {
		t.Errorf("body = %q, want %q", body, "<html>home</html>")
	}
}

// TestRouter_StaticAssetBypassesGuard は静的アセットが資格情報なしで
// 配信されることを検証する。
func TestRouter_StaticAssetBypassesGuard(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	}))
	defer upstream.Close()

	router := newTestRouter(t, "http://localhost:8080/api/v1", upstream.URL)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/logo.png", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body := w.Body.String(); body != "png" {
		t.Errorf("body = %q, want %q", body, "png")
	}
}

// TestRouter_SecurityHeadersApplied は全レスポンスにセキュリティヘッダーが
// 付与されることを検証する。
func TestRouter_SecurityHeadersApplied(t *testing.T) {
	router := newTestRouter(t, "http://localhost:8080/api/v1", "http://localhost:3999")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", got, "nosniff")
	}
	if got := w.Header().Get("X-Frame-Options"); got == "" {
		t.Error("expected X-Frame-Options header to be set")
	}
}

// TestJoinProxyPath はプロキシパスの書き換えを検証する。
func TestJoinProxyPath(t *testing.T) {
	tests := []struct {
		name     string
		basePath string
		incoming string
		want     string
	}{
		{"ベースパスあり", "/api/v1", "/api/game/eggs", "/api/v1/game/eggs"},
		{"ベースパス末尾スラッシュ", "/api/v1/", "/api/auth/login", "/api/v1/auth/login"},
		{"ベースパスなし", "", "/api/game/player", "/game/player"},
		{"接頭辞のみ", "/api/v1", "/api", "/api/v1/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := joinProxyPath(tt.basePath, tt.incoming); got != tt.want {
				t.Errorf("joinProxyPath(%q, %q) = %q, want %q", tt.basePath, tt.incoming, got, tt.want)
			}
		})
	}
}
