package cartapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ListOrders(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{"orders":[
		{"id":"o1","status":"pending","total":270,"createdAt":"2024-01-02T03:04:05Z",
		 "items":[{"name":"Beans","price":100,"quantity":2,"subtotal":200}]}
	]}`)
	c := NewClient(srv.URL, VariantSession, time.Second, srv.Client())

	orders, err := c.ListOrders(context.Background(), testSession)
	require.NoError(t, err)

	require.Len(t, orders, 1)
	assert.Equal(t, "o1", orders[0].ID)
	assert.Equal(t, float64(270), orders[0].Total)
	assert.Equal(t, []model.OrderItem{{Name: "Beans", Price: 100, Quantity: 2, Subtotal: 200}}, orders[0].Items)
	assert.JSONEq(t, `"2024-01-02T03:04:05Z"`, string(orders[0].CreatedAt))
	assert.Equal(t, http.MethodGet, rec.Method)
	assert.Equal(t, "/orders", rec.Path)
	assert.Equal(t, "Bearer tok-1", rec.Auth)
}

func TestClient_ListAllOrders_MissingIsEmpty(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{}`)
	c := NewClient(srv.URL, VariantSession, time.Second, srv.Client())

	orders, err := c.ListAllOrders(context.Background(), testSession)
	require.NoError(t, err)
	assert.Equal(t, []model.Order{}, orders)
	assert.Equal(t, "/orders/admin/all", rec.Path)
}

func TestClient_GetOrder(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{"order":{"id":"o1","status":"shipped","createdAt":{"_seconds":1700000000}}}`)
	c := NewClient(srv.URL, VariantSession, time.Second, srv.Client())

	order, err := c.GetOrder(context.Background(), testSession, "o1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusShipped, order.Status)
	assert.JSONEq(t, `{"_seconds":1700000000}`, string(order.CreatedAt))
	assert.Equal(t, "/orders/o1", rec.Path)
}

func TestClient_GetOrder_EmptyIsNotFound(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{}`)
	c := NewClient(srv.URL, VariantSession, time.Second, srv.Client())

	_, err := c.GetOrder(context.Background(), testSession, "o1")
	re := requireRemoteErr(t, err, repo.KindRejected)
	assert.Equal(t, http.StatusNotFound, re.Status)
}

func TestClient_CancelOrder(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{"message":"Order cancelled"}`)
	c := NewClient(srv.URL, VariantSession, time.Second, srv.Client())

	require.NoError(t, c.CancelOrder(context.Background(), testSession, "o1"))
	assert.Equal(t, http.MethodPost, rec.Method)
	assert.Equal(t, "/orders/o1/cancel", rec.Path)
	assert.NotEmpty(t, rec.IdemKey)
}

func TestClient_CancelOrder_Rejected(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadRequest, `{"message":"Order already shipped"}`)
	c := NewClient(srv.URL, VariantSession, time.Second, srv.Client())

	err := c.CancelOrder(context.Background(), testSession, "o1")
	re := requireRemoteErr(t, err, repo.KindRejected)
	assert.Equal(t, "Order already shipped", re.Message)
}

func TestClient_UpdateOrderStatus(t *testing.T) {
	srv, rec := newServer(t, http.StatusOK, `{}`)
	c := NewClient(srv.URL, VariantSession, time.Second, srv.Client())

	require.NoError(t, c.UpdateOrderStatus(context.Background(), testSession, "o1", "delivered"))
	assert.Equal(t, http.MethodPut, rec.Method)
	assert.Equal(t, "/orders/o1/status", rec.Path)
	assert.Equal(t, "delivered", rec.Body["status"])
}
