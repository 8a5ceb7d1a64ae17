package usecase

import (
	"context"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/sirupsen/logrus"
)

// AdminOrderUsecase は全注文の一覧とステータス変更（ADMIN）
type AdminOrderUsecase struct {
	remote repo.OrderRemote
	log    logrus.FieldLogger
}

// DI
func NewAdminOrderUsecase(remote repo.OrderRemote, log logrus.FieldLogger) *AdminOrderUsecase {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AdminOrderUsecase{remote: remote, log: log}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

func (u *AdminOrderUsecase) List(ctx context.Context, admin model.Session, status string) (OrderListOutput, error) {
	orders, err := u.remote.ListAllOrders(ctx, admin)
	if err != nil {
		u.log.WithError(err).Warn("list all orders failed")
		return OrderListOutput{}, remoteHTTPError(err)
	}
	//絞り込みはBFF側で行う
	if status = strings.TrimSpace(status); status != "" {
		kept := make([]model.Order, 0, len(orders))
		for _, o := range orders {
			if o.Status == status {
				kept = append(kept, o)
			}
		}
		orders = kept
	}
	return OrderListOutput{Orders: orders, Total: len(orders)}, nil
}

func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, admin model.Session, orderID string, in AdminUpdateOrderStatusInput) error {
	status := strings.ToLower(strings.TrimSpace(in.Status))
	if !model.AdminSettableOrderStatus(status) {
		return NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	log := u.log.WithFields(logrus.Fields{
		"admin":   admin.Key(),
		"orderId": orderID,
		"status":  status,
	})
	if err := u.remote.UpdateOrderStatus(ctx, admin, orderID, status); err != nil {
		log.WithError(err).Warn("order status update failed")
		return remoteHTTPError(err)
	}
	//監査用
	log.Info("order status updated")
	return nil
}
