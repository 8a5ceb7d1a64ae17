package model

import "encoding/json"

// カートの明細（商品ごとに1行）
// price / name / imageUrl は表示用のスナップショット。正式な金額はサーバー側で計算される。
type CartLine struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Name      string  `json:"name,omitempty"`
	ImageURL  string  `json:"imageUrl,omitempty"`
}

// サーバーが返した順序をそのまま保持する。
// productIdの重複排除はサーバーの責務なので、ここではマージしない。
type Cart []CartLine

// Cloneは独立したコピーを返す（nilは空カートになる）。
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// 合計数量
func (c Cart) Count() int {
	n := 0
	for _, l := range c {
		n += l.Quantity
	}
	return n
}

// nilでも必ず [] としてシリアライズする
func (c Cart) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]CartLine(c))
}

// "null" は空カートとして扱う
func (c *Cart) UnmarshalJSON(data []byte) error {
	var lines []CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return err
	}
	if lines == nil {
		lines = []CartLine{}
	}
	*c = Cart(lines)
	return nil
}
