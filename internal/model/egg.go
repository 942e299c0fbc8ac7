package model

import "time"

// Rarity はエッグのレアリティを表す。
type Rarity string

const (
	// RarityCommon は通常のエッグ。
	RarityCommon Rarity = "common"
	// RarityRare はレアなエッグ。
	RarityRare Rarity = "rare"
	// RarityEpic はエピックなエッグ。
	RarityEpic Rarity = "epic"
	// RarityLegendary は伝説のエッグ。
	RarityLegendary Rarity = "legendary"
)

// IsValid はレアリティが定義済みの値かどうかを返す。
func (r Rarity) IsValid() bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

// Coordinates は地理座標（度単位）を表す。
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// IsZero は座標が未取得（ゼロ値）かどうかを返す。
// 位置情報が取得できなかった場合の番兵として扱う。
func (c Coordinates) IsZero() bool {
	return c.Latitude == 0 && c.Longitude == 0
}

// InRange は緯度経度がそれぞれ有効範囲内かどうかを返す。
func (c Coordinates) InRange() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// Egg はプレイヤーが実世界の座標に置いたゲームマーカーを表す。
// クライアント側で楽観的に生成され、権威コピーはバックエンドが保持する。
type Egg struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Coords      Coordinates
	CreatedAt   time.Time
	Color       string
	Rarity      Rarity
}
