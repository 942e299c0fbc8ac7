// Package gameapi はEggsploreバックエンドのREST APIクライアントを提供する。
// 型付きの薄いラッパーとして、リクエストの組み立てとレスポンスの
// エラー正規化のみを担う。リトライや401時の自動トークン更新は行わない。
package gameapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL はバックエンドAPIの既定のベースURL。
const DefaultBaseURL = "http://localhost:8080/api/v1"

// APIError は非2xx応答を表す。
// メッセージはJSONボディのmessage/errorフィールド、HTTPステータステキスト、
// 汎用フォールバックの優先順で正規化される。
type APIError struct {
	StatusCode int
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return e.Message
}

// Client はバックエンドAPIのHTTPクライアント。
// すべてのリクエストにContent-Type: application/jsonを付与し、
// Cookieジャー経由でサーバー発行の資格情報を自動的に同送する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	headers    map[string]string
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLが空の場合はDefaultBaseURLを使用する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		headers:    make(map[string]string),
	}
}

// NewDefaultHTTPClient はCookieジャー付きのhttp.Clientを生成する。
// サーバーがSet-Cookieで配るaccess_tokenを以降のリクエストへ同送するために
// Cookieジャーが必要になる（ブラウザのcredentials: includeに相当）。
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		// cookiejar.Newはオプションがnilの場合エラーを返さない
		panic(fmt.Sprintf("cookiejar.New failed: %v", err))
	}
	return &http.Client{
		Timeout: timeout,
		Jar:     jar,
	}
}

// SetHeader は全リクエストへマージされる追加ヘッダーを設定する。
// Content-Typeは常にapplication/jsonで上書きされる。
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Register はアカウントを新規登録する。
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login はメールアドレスとパスワードでログインする。
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Renew はセッションを明示的に更新する。
// 呼び出しタイミングの判断は呼び出し元の責務（自動更新は行わない）。
func (c *Client) Renew(ctx context.Context) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/renew", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListEggs はプレイヤーのエッグ一覧を取得する。
func (c *Client) ListEggs(ctx context.Context, playerID string) ([]GameEgg, error) {
	q := url.Values{"player_id": []string{playerID}}
	var out []GameEgg
	if err := c.do(ctx, http.MethodGet, "/game/eggs", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateEgg は現在地へのエッグ設置をサーバーへ登録する。
// レスポンスボディの形式は保証されないため読み捨てる。
func (c *Client) CreateEgg(ctx context.Context, req CreateEggRequest) error {
	return c.do(ctx, http.MethodPost, "/game/eggs", nil, req, nil)
}

// ListInventory はプレイヤーのインベントリ一覧を取得する。
func (c *Client) ListInventory(ctx context.Context, playerID string) ([]InventoryItem, error) {
	q := url.Values{"player_id": []string{playerID}}
	var out []InventoryItem
	if err := c.do(ctx, http.MethodGet, "/game/inventory", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPlayerByAccount はアカウントIDからプレイヤー状態を取得する。
func (c *Client) GetPlayerByAccount(ctx context.Context, accountID string) (*PlayerAccount, error) {
	q := url.Values{"account_id": []string{accountID}}
	var out PlayerAccount
	if err := c.do(ctx, http.MethodGet, "/game/player", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPlayerEquipment はプレイヤーの装備一覧を取得する。
func (c *Client) GetPlayerEquipment(ctx context.Context, playerID string) ([]EquipmentItem, error) {
	q := url.Values{"player_id": []string{playerID}}
	var out []EquipmentItem
	if err := c.do(ctx, http.MethodGet, "/game/tools", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// do はリクエストの組み立て、送信、レスポンスの正規化を行う。
// ネットワーク障害はラップされたエラー、非2xxは*APIErrorとして返る。
// エラーを握りつぶすことはない。
func (c *Client) do(ctx context.Context, method, path string, query url.Values, reqBody, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	// リクエストボディのエンコード
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("backend request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")

	// 非2xxはメッセージを正規化して単一のエラー型へ集約する
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    normalizeErrorMessage(resp.StatusCode, data, isJSON),
		}
		c.logger.Warn("backend returned error status",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("message", apiErr.Message),
		)
		return apiErr
	}

	if out != nil && isJSON {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response body: %w", err)
		}
	}

	return nil
}

// normalizeErrorMessage はエラーメッセージを以下の優先順で決定する:
// JSONボディのmessageフィールド → errorフィールド → HTTPステータステキスト
// → 汎用フォールバック "Request failed: <status>"。
func normalizeErrorMessage(statusCode int, body []byte, isJSON bool) string {
	if isJSON {
		var payload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(body, &payload); err == nil {
			if payload.Message != "" {
				return payload.Message
			}
			if payload.Error != "" {
				return payload.Error
			}
		}
	}

	if text := http.StatusText(statusCode); text != "" {
		return text
	}
	return fmt.Sprintf("Request failed: %d", statusCode)
}
