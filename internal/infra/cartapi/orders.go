package cartapi

import (
	"context"
	"net/http"
	"net/url"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type ordersEnvelope struct {
	Orders []model.Order `json:"orders"`
}

type orderStatusBody struct {
	Status string `json:"status"`
}

// 自分の注文一覧
func (c *Client) ListOrders(ctx context.Context, sess model.Session) ([]model.Order, error) {
	return c.listOrders(ctx, "/orders", sess)
}

// 全員の注文（ADMIN）
func (c *Client) ListAllOrders(ctx context.Context, sess model.Session) ([]model.Order, error) {
	return c.listOrders(ctx, "/orders/admin/all", sess)
}

func (c *Client) listOrders(ctx context.Context, path string, sess model.Session) ([]model.Order, error) {
	var out ordersEnvelope
	if err := c.do(ctx, http.MethodGet, path, sess, nil, &out); err != nil {
		return nil, err
	}
	if out.Orders == nil {
		return []model.Order{}, nil
	}
	return out.Orders, nil
}

func (c *Client) GetOrder(ctx context.Context, sess model.Session, orderID string) (model.Order, error) {
	var out orderResponse
	if err := c.do(ctx, http.MethodGet, orderPath(orderID), sess, nil, &out); err != nil {
		return model.Order{}, err
	}
	if out.Order.ID == "" {
		return model.Order{}, &repo.RemoteError{
			Kind:    repo.KindRejected,
			Status:  http.StatusNotFound,
			Message: "Order not found",
		}
	}
	return out.Order, nil
}

func (c *Client) CancelOrder(ctx context.Context, sess model.Session, orderID string) error {
	return c.do(ctx, http.MethodPost, orderPath(orderID)+"/cancel", sess, struct{}{}, nil)
}

func (c *Client) UpdateOrderStatus(ctx context.Context, sess model.Session, orderID string, status string) error {
	return c.do(ctx, http.MethodPut, orderPath(orderID)+"/status", sess, orderStatusBody{Status: status}, nil)
}

func orderPath(orderID string) string {
	return "/orders/" + url.PathEscape(orderID)
}

var _ repo.OrderRemote = (*Client)(nil)
