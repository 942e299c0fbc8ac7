// Package assetcache はゲートウェイのアセットキャッシュを提供する。
// 世代名付きのインメモリキャッシュを管理し、ナビゲーションはネットワーク優先、
// 静的アセットはキャッシュ優先で応答する。
package assetcache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// cacheNamePrefix はキャッシュ世代名の接頭辞。
	cacheNamePrefix = "eggsplore-cache-v"

	// defaultMaxEntries はキャッシュエントリ数の既定上限。
	defaultMaxEntries = 512

	// defaultFallbackPath はオフライン時のナビゲーションフォールバック先。
	defaultFallbackPath = "/home"

	// maxBodyBytes はキャッシュ対象レスポンスボディの上限サイズ。
	maxBodyBytes = 8 << 20
)

// coreAssets はActivate時に先読みする必須アセットのパス一覧。
var coreAssets = []string{
	"/",
	"/home",
	"/favicon.ico",
	"/favicon-32x32.png",
	"/favicon-16x16.png",
	"/logo.png",
	"/manifest.webmanifest",
}

// Entry はキャッシュされたレスポンス。
type Entry struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	StoredAt   time.Time
}

// Observer はキャッシュの動作を記録するインターフェース。
type Observer interface {
	RecordCacheHit(kind string)
	RecordCacheMiss(kind string)
	RecordUpstreamLatency(duration time.Duration)
}

// Config はCacheの設定。
type Config struct {
	// UpstreamURL はアセット取得元のベースURL。
	UpstreamURL *url.URL
	// Version はキャッシュ世代番号。変更すると旧世代が破棄される。
	Version int
	// MaxEntries はキャッシュエントリ数の上限。0以下の場合は既定値を使う。
	MaxEntries int
	// FallbackPath はナビゲーション失敗時に返すキャッシュ済みページのパス。
	FallbackPath string
	// HTTPClient はアップストリームへのリクエストに使うクライアント。
	HTTPClient *http.Client
	// Logger は構造化ログの出力先。
	Logger *slog.Logger
	// Observer はメトリクス記録先。nilの場合は記録しない。
	Observer Observer
}

// Cache は世代管理付きのインメモリアセットキャッシュ。
type Cache struct {
	mu          sync.RWMutex
	generations map[string]map[string]*Entry
	current     string

	upstream     *url.URL
	maxEntries   int
	fallbackPath string
	httpClient   *http.Client
	logger       *slog.Logger
	observer     Observer
}

// New は新しいCacheを生成する。
func New(cfg Config) *Cache {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	fallbackPath := cfg.FallbackPath
	if fallbackPath == "" {
		fallbackPath = defaultFallbackPath
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	current := generationName(cfg.Version)
	return &Cache{
		generations:  map[string]map[string]*Entry{current: {}},
		current:      current,
		upstream:     cfg.UpstreamURL,
		maxEntries:   maxEntries,
		fallbackPath: fallbackPath,
		httpClient:   httpClient,
		logger:       logger,
		observer:     cfg.Observer,
	}
}

// generationName は世代番号からキャッシュ名を組み立てる。
func generationName(version int) string {
	return fmt.Sprintf("%s%d", cacheNamePrefix, version)
}

// Generation は現在のキャッシュ世代名を返す。
func (c *Cache) Generation() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Len は現在世代のエントリ数を返す。
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.generations[c.current])
}

// Activate は必須アセットを先読みし、現在世代以外のキャッシュを破棄する。
// 先読みの失敗は警告ログに残すだけで致命的エラーとしない。
func (c *Cache) Activate(ctx context.Context) error {
	// 1. 旧世代を破棄する
	c.mu.Lock()
	for name := range c.generations {
		if name != c.current {
			delete(c.generations, name)
			c.logger.Info("purged stale cache generation", slog.String("generation", name))
		}
	}
	c.mu.Unlock()

	// 2. 必須アセットを先読みする
	var failed int
	for _, path := range coreAssets {
		entry, err := c.fetchUpstream(ctx, http.MethodGet, path, "", nil)
		if err != nil {
			failed++
			c.logger.Warn("precache fetch failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		if entry.StatusCode != http.StatusOK {
			failed++
			c.logger.Warn("precache skipped non-OK response",
				slog.String("path", path),
				slog.Int("status", entry.StatusCode),
			)
			continue
		}
		c.put(path, entry)
	}

	c.logger.Info("asset cache activated",
		slog.String("generation", c.Generation()),
		slog.Int("precached", len(coreAssets)-failed),
		slog.Int("failed", failed),
	)
	return nil
}

// get は現在世代からエントリを取得する。
func (c *Cache) get(path string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.generations[c.current][path]
	return entry, ok
}

// put は現在世代にエントリを保存する。
// 上限到達時は既存キーの更新のみ許可し、新規キーは保存しない。
func (c *Cache) put(path string, entry *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.generations[c.current]
	if _, exists := entries[path]; !exists && len(entries) >= c.maxEntries {
		c.logger.Warn("cache entry limit reached, skipping store",
			slog.String("path", path),
			slog.Int("max_entries", c.maxEntries),
		)
		return
	}
	entries[path] = entry
}

// cacheKey はリクエストからキャッシュキーを組み立てる。
// クエリが異なれば別の応答になり得るため、キーにはクエリも含める。
func cacheKey(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + r.URL.RawQuery
}

// fetchUpstream はアップストリームからアセットを取得し、Entryとして返す。
// リクエストのクエリはそのままアップストリームへ引き継ぐ。
func (c *Cache) fetchUpstream(ctx context.Context, method, path, rawQuery string, body io.Reader) (*Entry, error) {
	target := c.upstream.ResolveReference(&url.URL{Path: path, RawQuery: rawQuery})

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.observer != nil {
		c.observer.RecordUpstreamLatency(time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("upstream fetch failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	return &Entry{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       data,
		StoredAt:   time.Now(),
	}, nil
}

// isNavigation はHTMLページ遷移のリクエストかを判定する。
func isNavigation(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// Handler はアセット配信用のHTTPハンドラーを返す。
// ナビゲーションはネットワーク優先、静的アセットはキャッシュ優先で応答する。
func (c *Cache) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isNavigation(r) {
			c.serveNavigation(w, r)
			return
		}
		c.serveStatic(w, r)
	})
}

// serveNavigation はネットワーク優先でページを応答する。
// アップストリーム不達時はキャッシュ、フォールバックページの順に試みる。
func (c *Cache) serveNavigation(w http.ResponseWriter, r *http.Request) {
	key := cacheKey(r)

	// 1. まずアップストリームから取得を試みる
	entry, err := c.fetchUpstream(r.Context(), http.MethodGet, r.URL.Path, r.URL.RawQuery, nil)
	if err == nil {
		if entry.StatusCode == http.StatusOK {
			c.put(key, entry)
		}
		writeEntry(w, entry)
		return
	}

	c.logger.Warn("upstream unreachable for navigation",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)

	// 2. 同じ宛先のキャッシュを試みる
	if cached, ok := c.get(key); ok {
		c.recordHit("navigation")
		writeEntry(w, cached)
		return
	}

	// 3. フォールバックページのキャッシュを試みる
	if cached, ok := c.get(c.fallbackPath); ok {
		c.recordHit("navigation")
		writeEntry(w, cached)
		return
	}

	// 4. どこにも応答がない場合はゲートウェイタイムアウト
	c.recordMiss("navigation")
	http.Error(w, "upstream unavailable", http.StatusGatewayTimeout)
}

// serveStatic はキャッシュ優先で静的アセットを応答する。
// ミス時はアップストリームから取得してキャッシュに格納する。
func (c *Cache) serveStatic(w http.ResponseWriter, r *http.Request) {
	key := cacheKey(r)

	// 1. GET以外はキャッシュを介さずそのまま中継する
	if r.Method != http.MethodGet {
		entry, err := c.fetchUpstream(r.Context(), r.Method, r.URL.Path, r.URL.RawQuery, r.Body)
		if err != nil {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		writeEntry(w, entry)
		return
	}

	// 2. キャッシュヒットならそのまま返す
	if cached, ok := c.get(key); ok {
		c.recordHit("static")
		writeEntry(w, cached)
		return
	}
	c.recordMiss("static")

	// 3. ミス時はアップストリームから取得してキャッシュに格納する
	entry, err := c.fetchUpstream(r.Context(), http.MethodGet, r.URL.Path, r.URL.RawQuery, nil)
	if err != nil {
		c.logger.Warn("upstream unreachable for static asset",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	if entry.StatusCode == http.StatusOK {
		c.put(key, entry)
	}
	writeEntry(w, entry)
}

func (c *Cache) recordHit(kind string) {
	if c.observer != nil {
		c.observer.RecordCacheHit(kind)
	}
}

func (c *Cache) recordMiss(kind string) {
	if c.observer != nil {
		c.observer.RecordCacheMiss(kind)
	}
}

// writeEntry はキャッシュエントリをそのままHTTPレスポンスとして書き出す。
func writeEntry(w http.ResponseWriter, entry *Entry) {
	for key, values := range entry.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(entry.StatusCode)
	_, _ = w.Write(entry.Body)
}
