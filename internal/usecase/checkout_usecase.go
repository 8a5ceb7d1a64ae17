package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CheckoutUsecase はテストカード → OTP → 注文の流れ。
// 決済はモックなので、ここでは支払いIDと状態を決めて注文APIへ渡すだけ。
type CheckoutUsecase struct {
	remote   repo.CheckoutRemote
	sessions *SessionRegistry
	log      logrus.FieldLogger
	now      func() time.Time
	suffix   func() string
}

// DI
func NewCheckoutUsecase(remote repo.CheckoutRemote, sessions *SessionRegistry, log logrus.FieldLogger) *CheckoutUsecase {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CheckoutUsecase{
		remote:   remote,
		sessions: sessions,
		log:      log,
		now:      time.Now,
		suffix:   randomSuffix,
	}
}

type PlaceOrderInput struct {
	ShippingAddress model.ShippingAddress
	PaymentMethod   model.PaymentMethod
	PaymentID       string
}

type PlaceOrderOutput struct {
	Order model.Order `json:"order"`
	// 注文後のカート（成功時は空）
	Cart model.State `json:"cart"`
}

func (u *CheckoutUsecase) IssueTestCard(ctx context.Context, sess model.Session) (model.TestCardGrant, error) {
	if sess.Key() == "" {
		return model.TestCardGrant{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	grant, err := u.remote.GenerateTestCard(ctx, sess)
	if err != nil {
		u.log.WithError(err).WithField("session", sess.Key()).Warn("test card request failed")
		return model.TestCardGrant{}, remoteHTTPError(err)
	}
	return grant, nil
}

func (u *CheckoutUsecase) VerifyOTP(ctx context.Context, sess model.Session, otp string) (string, error) {
	if sess.Key() == "" {
		return "", NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	otp = strings.TrimSpace(otp)
	if !isOTP(otp) {
		return "", NewHTTPError(http.StatusBadRequest, "Please enter a valid 6-digit OTP")
	}
	paymentID, err := u.remote.VerifyOTP(ctx, sess, otp)
	if err != nil {
		u.log.WithError(err).WithField("session", sess.Key()).Warn("otp verification failed")
		return "", remoteHTTPError(err)
	}
	return paymentID, nil
}

// PlaceOrder は支払い方法ごとに paymentId / paymentStatus を決めて注文する。
// 成功したらそのセッションのカートを CartStore 経由で空にする。
func (u *CheckoutUsecase) PlaceOrder(ctx context.Context, sess model.Session, in PlaceOrderInput) (PlaceOrderOutput, error) {
	if sess.Key() == "" {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if msg := missingAddressField(in.ShippingAddress); msg != "" {
		return PlaceOrderOutput{}, NewHTTPError(http.StatusBadRequest, msg)
	}

	req := model.OrderRequest{
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
	}
	switch in.PaymentMethod {
	case model.PaymentCard:
		//カードはOTP検証済みのIDが必須
		id := strings.TrimSpace(in.PaymentID)
		if id == "" {
			return PlaceOrderOutput{}, NewHTTPError(http.StatusBadRequest, "Please verify OTP first")
		}
		req.PaymentID = &id
		req.PaymentStatus = model.PaymentCompleted
	case model.PaymentUPI:
		id := fmt.Sprintf("PAY_UPI_%d_%s", u.now().UnixMilli(), u.suffix())
		req.PaymentID = &id
		req.PaymentStatus = model.PaymentCompleted
	case model.PaymentCOD:
		req.PaymentStatus = model.PaymentPending
	default:
		return PlaceOrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid paymentMethod")
	}

	log := u.log.WithFields(logrus.Fields{
		"session":       sess.Key(),
		"paymentMethod": req.PaymentMethod,
	})

	order, err := u.remote.PlaceOrder(ctx, sess, req)
	if err != nil {
		log.WithError(err).Warn("place order failed")
		return PlaceOrderOutput{}, remoteHTTPError(err)
	}
	if order.Status == model.OrderStatusFailed {
		log.WithField("orderId", order.ID).Warn("order created with failed payment status")
		return PlaceOrderOutput{Order: order}, NewHTTPError(http.StatusPaymentRequired, "Payment failed. Please try again.")
	}

	out := PlaceOrderOutput{Order: order}
	//注文は成立済み。カートのクリア失敗は state.Error で見える
	err = u.sessions.Use(ctx, sess, func(store *CartStore) error {
		st, err := store.Clear(ctx)
		if err != nil {
			log.WithError(err).Warn("cart clear after order skipped")
			st = store.Snapshot()
		}
		out.Cart = st
		return nil
	})
	if err != nil {
		return PlaceOrderOutput{}, err
	}

	log.WithField("orderId", order.ID).Info("order placed")
	return out, nil
}

func isOTP(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func missingAddressField(a model.ShippingAddress) string {
	fields := []struct {
		name  string
		value string
	}{
		{"fullName", a.FullName},
		{"address", a.Address},
		{"city", a.City},
		{"state", a.State},
		{"zipCode", a.ZipCode},
		{"phone", a.Phone},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return f.name + " is required"
		}
	}
	return ""
}

// 英小文字と数字9文字
func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}
