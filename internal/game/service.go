// Package game はストアとAPIクライアントを結ぶクライアント側のゲームフローを提供する。
// ユーザー操作 → APIクライアント呼び出し → ストア更新 → 購読者への通知、
// というデータフローの中心となるサービス。
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/eggsplore/internal/gameapi"
	"github.com/hitoshi/eggsplore/internal/model"
	"github.com/hitoshi/eggsplore/internal/security"
	"github.com/hitoshi/eggsplore/internal/store"
	"github.com/hitoshi/eggsplore/internal/validate"
)

// APIClient はServiceが必要とするバックエンド操作のインターフェース。
// gameapi.Clientの部分集合として定義する。
type APIClient interface {
	Register(ctx context.Context, req gameapi.RegisterRequest) (*gameapi.AuthResponse, error)
	Login(ctx context.Context, req gameapi.LoginRequest) (*gameapi.AuthResponse, error)
	Renew(ctx context.Context) (*gameapi.AuthResponse, error)
	ListEggs(ctx context.Context, playerID string) ([]gameapi.GameEgg, error)
	CreateEgg(ctx context.Context, req gameapi.CreateEggRequest) error
	GetPlayerByAccount(ctx context.Context, accountID string) (*gameapi.PlayerAccount, error)
}

// Service はクライアント側のゲームフローを実装する。
// すべての状態変更はストア経由で行い、Service自身は状態を持たない。
type Service struct {
	api       APIClient
	store     *store.Store
	sanitizer security.TextSanitizerService
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(api APIClient, st *store.Store, sanitizer security.TextSanitizerService, logger *slog.Logger) *Service {
	return &Service{
		api:       api,
		store:     st,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// RegisterInput は登録フォームの入力。
type RegisterInput struct {
	Email    string
	Password string
	Username string
}

// DropEggInput はエッグ設置の入力。
type DropEggInput struct {
	Coords  model.Coordinates
	Title   string
	Message string
	Rarity  model.Rarity
}

// Register はアカウントを登録し、成功時にストアへユーザーとセッションを設定する。
// 入力検証に失敗した場合はvalidate.FieldErrorsを返し、ネットワークへは到達しない。
func (s *Service) Register(ctx context.Context, input RegisterInput) error {
	if fe := validate.Registration(input.Email, input.Password, input.Username); fe != nil {
		return fe
	}

	resp, err := s.api.Register(ctx, gameapi.RegisterRequest{
		Email:    input.Email,
		Password: input.Password,
		Username: input.Username,
	})
	if err != nil {
		return err
	}

	s.applyAuthResponse(resp)
	s.logger.Info("account registered",
		slog.String("email", input.Email),
	)
	return nil
}

// Login はログインし、成功時にストアへユーザーとセッションを設定する。
func (s *Service) Login(ctx context.Context, email, password string) error {
	if fe := validate.Login(email, password); fe != nil {
		return fe
	}

	resp, err := s.api.Login(ctx, gameapi.LoginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return err
	}

	s.applyAuthResponse(resp)
	s.logger.Info("signed in",
		slog.String("email", email),
	)
	return nil
}

// Renew はセッションを明示的に更新する。
// 呼び出しは常に明示的であり、401応答による自動更新は行わない。
func (s *Service) Renew(ctx context.Context) error {
	resp, err := s.api.Renew(ctx)
	if err != nil {
		return normalizeClientError(err)
	}

	s.applyAuthResponse(resp)
	return nil
}

// Logout はストアを既定状態へリセットする。
// サーバー側セッションの破棄はバックエンドの責務。
func (s *Service) Logout() {
	s.store.Clear()
	s.logger.Info("signed out")
}

// DropEgg は現在地へエッグを設置する。
// 表示即応性のためローカルのストアへ楽観的に追加した上でサーバーへ登録する。
// サーバー登録に失敗してもローカルのエッグは残り、次回のRefreshEggsで
// サーバーの権威コピーと再同期される。
func (s *Service) DropEgg(ctx context.Context, input DropEggInput) (*model.Egg, error) {
	if input.Rarity == "" {
		input.Rarity = model.RarityCommon
	}
	if !input.Rarity.IsValid() {
		return nil, model.NewInvalidRarityError(string(input.Rarity))
	}

	// 現在地が取得できていないまま設置はできない。
	// 呼び出し元は手動入力フローへ縮退する。
	if input.Coords.IsZero() {
		return nil, model.NewGeolocationUnavailableError()
	}
	if !input.Coords.InRange() {
		return nil, model.NewValidationFailedError("coordinates")
	}

	user := s.store.User()
	ownerID := ""
	if user != nil {
		ownerID = user.ID
	}

	egg := model.Egg{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       s.sanitizer.Sanitize(input.Title),
		Description: s.sanitizer.Sanitize(input.Message),
		Coords:      input.Coords,
		CreatedAt:   time.Now().UTC(),
		Rarity:      input.Rarity,
	}

	// 楽観的追加: サーバー確認を待たずに即時表示へ反映する
	s.store.AddEgg(egg)

	err := s.api.CreateEgg(ctx, gameapi.CreateEggRequest{
		PlayerID: ownerID,
		Type:     rarityToEggType(input.Rarity),
		Message:  egg.Description,
		Lat:      input.Coords.Latitude,
		Lon:      input.Coords.Longitude,
	})
	if err != nil {
		s.logger.Warn("egg registration failed, keeping optimistic copy",
			slog.String("egg_id", egg.ID),
			slog.String("error", err.Error()),
		)
		return &egg, normalizeClientError(err)
	}

	s.logger.Info("egg dropped",
		slog.String("egg_id", egg.ID),
		slog.Float64("lat", input.Coords.Latitude),
		slog.Float64("lon", input.Coords.Longitude),
	)
	return &egg, nil
}

// RefreshEggs はサーバーの権威コピーでストアのエッグリストを置き換える。
func (s *Service) RefreshEggs(ctx context.Context, playerID string) error {
	serverEggs, err := s.api.ListEggs(ctx, playerID)
	if err != nil {
		return fmt.Errorf("failed to refresh eggs: %w", normalizeClientError(err))
	}

	eggs := make([]model.Egg, 0, len(serverEggs))
	for _, se := range serverEggs {
		eggs = append(eggs, model.Egg{
			ID:          se.InventoryID,
			OwnerID:     playerID,
			Description: se.Message,
			CreatedAt:   se.CollectedAt,
			Rarity:      eggTypeToRarity(se.Type),
		})
	}
	s.store.SetEggs(eggs)
	return nil
}

// LoadPlayer はアカウントIDからプレイヤー状態を取得し、
// ストアのユーザーへXPとコインを反映する。
func (s *Service) LoadPlayer(ctx context.Context, accountID string) error {
	player, err := s.api.GetPlayerByAccount(ctx, accountID)
	if err != nil {
		var apiErr *gameapi.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return model.NewPlayerNotFoundError(accountID)
		}
		return fmt.Errorf("failed to load player: %w", normalizeClientError(err))
	}

	user := s.store.User()
	if user == nil {
		user = &model.User{}
	}
	user.ID = player.ID
	user.XP = player.XP
	user.Coins = player.Coins
	s.store.SetUser(user)
	return nil
}

// applyAuthResponse は認証レスポンスをストアへ反映する。
// レスポンスの省略可能フィールドは存在するもののみを使用する。
func (s *Service) applyAuthResponse(resp *gameapi.AuthResponse) {
	if resp == nil {
		return
	}

	s.store.SetSession(&model.Session{
		AccessToken:           resp.AccessToken,
		RefreshToken:          resp.RefreshToken,
		AccessTokenExpiresAt:  resp.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: resp.RefreshTokenExpiresAt,
	})

	if resp.User != nil {
		s.store.SetUser(&model.User{
			ID:        resp.User.ID,
			Email:     resp.User.Email,
			Username:  resp.User.UserName,
			FirstName: resp.User.FirstName,
			LastName:  resp.User.LastName,
			Role:      resp.User.Role,
		})
	}
}

// normalizeClientError は認証済み操作のAPIクライアントエラーをUI表示用の
// エラー分類へ写像する。ネットワーク障害は通信エラー、401は再サインイン要求、
// それ以外のサーバー応答はメッセージ正規化済みのためそのまま伝播させる。
func normalizeClientError(err error) error {
	var apiErr *gameapi.APIError
	if !errors.As(err, &apiErr) {
		return model.NewTransportError(err.Error())
	}
	if apiErr.StatusCode == http.StatusUnauthorized {
		return model.NewAuthRequiredError()
	}
	return err
}

// rarityToEggType はクライアントのレアリティをサーバーのエッグ種別へ写像する。
func rarityToEggType(r model.Rarity) string {
	switch r {
	case model.RarityRare, model.RarityEpic:
		return "GOLDEN"
	case model.RarityLegendary:
		return "LEGENDARY"
	default:
		return "BUNNY"
	}
}

// eggTypeToRarity はサーバーのエッグ種別をクライアントのレアリティへ写像する。
func eggTypeToRarity(eggType string) model.Rarity {
	switch strings.ToUpper(eggType) {
	case "GOLDEN":
		return model.RarityRare
	case "LEGENDARY":
		return model.RarityLegendary
	default:
		return model.RarityCommon
	}
}
