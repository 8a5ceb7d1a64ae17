package validator

import (
	"errors"
	"regexp"
	"strings"

	"storefront/internal/domain/model"
)

var (
	// 入力が不正
	ErrInvalidInput = errors.New("invalid input")

	// 支払い方法が不正
	ErrInvalidPaymentMethod = errors.New("invalid paymentMethod")
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// 商品IDを検証して前後の空白を落としたものを返す
func ProductID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if !idPattern.MatchString(id) {
		return "", ErrInvalidInput
	}
	return id, nil
}

// 注文IDも同じ形（パスにそのまま入る）
func OrderID(raw string) (string, error) {
	return ProductID(raw)
}

// 支払い方法を正規化する。画面の古い値 "cash" は代引き扱い。
func PaymentMethod(raw string) (model.PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "card":
		return model.PaymentCard, nil
	case "upi":
		return model.PaymentUPI, nil
	case "cod", "cash":
		return model.PaymentCOD, nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}
