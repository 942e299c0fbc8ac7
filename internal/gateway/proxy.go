package gateway

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"
)

// ProxyObserver はプロキシの結果を記録するインターフェース。
type ProxyObserver interface {
	RecordProxyStatus(statusCode int)
	RecordUpstreamLatency(duration time.Duration)
}

// NewAPIProxy は/api/*をバックエンドへ中継するリバースプロキシを返す。
// 受信パスの/api接頭辞を剥がし、バックエンドのベースパスに連結する。
//
//	GET /api/game/eggs → {backend}/game/eggs
func NewAPIProxy(backend *url.URL, logger *slog.Logger, observer ProxyObserver) http.Handler {
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(backend)
			pr.Out.URL.Path = joinProxyPath(backend.Path, pr.In.URL.Path)
			pr.Out.Host = backend.Host
			pr.SetXForwarded()
		},
		ModifyResponse: func(resp *http.Response) error {
			if observer != nil {
				observer.RecordProxyStatus(resp.StatusCode)
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("backend proxy failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			if observer != nil {
				observer.RecordProxyStatus(http.StatusBadGateway)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"backend unavailable"}`))
		},
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		proxy.ServeHTTP(w, r)
		if observer != nil {
			observer.RecordUpstreamLatency(time.Since(start))
		}
	})
}

// joinProxyPath は/api接頭辞を取り除き、バックエンドのベースパスへ連結する。
func joinProxyPath(basePath, incoming string) string {
	rest := strings.TrimPrefix(incoming, "/api")
	if rest == "" {
		rest = "/"
	}
	base := strings.TrimSuffix(basePath, "/")
	return base + rest
}
