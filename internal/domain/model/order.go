package model

import "encoding/json"

// 注文ステータス（バックエンドが持つ値）
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusFailed     = "failed"
)

type OrderItem struct {
	ProductID string  `json:"productId,omitempty"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

// 注文はバックエンドの形をそのまま中継する。
// createdAt は文字列とタイムスタンプオブジェクトの両方があるので生のまま持つ。
type Order struct {
	ID              string           `json:"id"`
	OrderID         string           `json:"orderId,omitempty"`
	Status          string           `json:"status"`
	UserID          string           `json:"userId,omitempty"`
	Items           []OrderItem      `json:"items,omitempty"`
	ShippingAddress *ShippingAddress `json:"shippingAddress,omitempty"`
	PaymentMethod   PaymentMethod    `json:"paymentMethod,omitempty"`
	PaymentStatus   PaymentStatus    `json:"paymentStatus,omitempty"`
	PaymentID       string           `json:"paymentId,omitempty"`
	Subtotal        float64          `json:"subtotal,omitempty"`
	Tax             float64          `json:"tax,omitempty"`
	Shipping        float64          `json:"shipping,omitempty"`
	Total           float64          `json:"total,omitempty"`
	CreatedAt       json.RawMessage  `json:"createdAt,omitempty"`
}

// 利用者がキャンセルできるのは出荷前だけ
func (o Order) Cancellable() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusProcessing
}

// 管理者が設定できるステータス（cancelled は利用者のキャンセルだけ）
func AdminSettableOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}
