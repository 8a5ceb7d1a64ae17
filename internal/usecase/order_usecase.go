package usecase

import (
	"context"
	"net/http"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/sirupsen/logrus"
)

// OrderUsecase は利用者の注文履歴とキャンセル
type OrderUsecase struct {
	remote repo.OrderRemote
	log    logrus.FieldLogger
}

// DI
func NewOrderUsecase(remote repo.OrderRemote, log logrus.FieldLogger) *OrderUsecase {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &OrderUsecase{remote: remote, log: log}
}

type OrderListOutput struct {
	Orders []model.Order `json:"orders"`
	Total  int           `json:"total"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, sess model.Session) (OrderListOutput, error) {
	if sess.Key() == "" {
		return OrderListOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	orders, err := u.remote.ListOrders(ctx, sess)
	if err != nil {
		u.log.WithError(err).WithField("session", sess.Key()).Warn("list orders failed")
		return OrderListOutput{}, remoteHTTPError(err)
	}
	return OrderListOutput{Orders: orders, Total: len(orders)}, nil
}

func (u *OrderUsecase) GetMyOrder(ctx context.Context, sess model.Session, orderID string) (model.Order, error) {
	if sess.Key() == "" {
		return model.Order{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	order, err := u.remote.GetOrder(ctx, sess, orderID)
	if err != nil {
		return model.Order{}, remoteHTTPError(err)
	}
	return order, nil
}

// CancelMyOrder は出荷前（pending / processing）の注文だけキャンセルする
func (u *OrderUsecase) CancelMyOrder(ctx context.Context, sess model.Session, orderID string) error {
	order, err := u.GetMyOrder(ctx, sess, orderID)
	if err != nil {
		return err
	}
	if !order.Cancellable() {
		return NewHTTPError(http.StatusConflict, "Order can no longer be cancelled")
	}

	log := u.log.WithFields(logrus.Fields{
		"session": sess.Key(),
		"orderId": orderID,
	})
	if err := u.remote.CancelOrder(ctx, sess, orderID); err != nil {
		log.WithError(err).Warn("cancel order failed")
		return remoteHTTPError(err)
	}
	log.Info("order cancelled")
	return nil
}
