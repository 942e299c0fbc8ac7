package gameapi

import "time"

// RegisterRequest はアカウント登録リクエストのボディ。
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username,omitempty"`
}

// LoginRequest はログインリクエストのボディ。
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthUser は認証レスポンスに含まれるユーザー情報。
// すべてのフィールドは省略可能であり、空値は「未提供」を意味する。
type AuthUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	UserName  string `json:"user_name"`
	Role      string `json:"role"`
}

// AuthResponse は登録・ログイン・更新の共通レスポンス。
// トークンはHTTP Only Cookieでも配られるため、ボディ側は省略されることがある。
type AuthResponse struct {
	AccessToken           string    `json:"access_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshToken          string    `json:"refresh_token"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	User                  *AuthUser `json:"user"`
}

// CreateEggRequest はエッグ設置リクエストのボディ。
type CreateEggRequest struct {
	PlayerID string  `json:"player_id"`
	Type     string  `json:"type"`
	Message  string  `json:"message"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

// GameEgg はプレイヤーが保持するエッグのサーバー表現。
type GameEgg struct {
	InventoryID string    `json:"inventory_id"`
	Type        string    `json:"type"`
	Hatched     bool      `json:"hatched"`
	Message     string    `json:"message"`
	CollectedAt time.Time `json:"collected_at"`
}

// InventoryItem はプレイヤーのインベントリ項目。
type InventoryItem struct {
	ID          string    `json:"id"`
	PlayerID    string    `json:"player_id"`
	ItemType    string    `json:"item_type"`
	Quantity    int32     `json:"quantity"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// PlayerAccount はアカウントに紐づくプレイヤー状態。
type PlayerAccount struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Coins     int64     `json:"coins"`
	XP        int64     `json:"xp"`
	Level     int32     `json:"level"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EquipmentItem はプレイヤーが装備可能なツール。
type EquipmentItem struct {
	InventoryID string `json:"inventory_id"`
	Durability  int32  `json:"durability"`
	Equipped    bool   `json:"equipped"`
	Description string `json:"description"`
}
