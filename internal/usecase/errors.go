package usecase

import (
	"errors"
	"fmt"
	"net/http"

	repo "storefront/internal/repository"
)

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// remoteHTTPError はリモートの失敗をハンドラが返すステータスに変換する。
// メッセージはカートの error と同じ文言。
func remoteHTTPError(err error) error {
	re, ok := repo.AsRemoteError(err)
	if !ok {
		return NewHTTPError(http.StatusInternalServerError, Describe(err))
	}
	switch re.Kind {
	case repo.KindRejected:
		//4xxはそのまま、それ以外は上流の失敗
		if re.Status >= 400 && re.Status < 500 {
			return NewHTTPError(re.Status, Describe(err))
		}
		return NewHTTPError(http.StatusBadGateway, Describe(err))
	case repo.KindUnreachable:
		return NewHTTPError(http.StatusServiceUnavailable, Describe(err))
	default:
		return NewHTTPError(http.StatusBadRequest, Describe(err))
	}
}
