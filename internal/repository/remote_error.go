package repository

import (
	"errors"
	"fmt"
)

// リモート呼び出しの失敗の分類
type RemoteErrorKind int

const (
	// サーバーがエラーを返した
	KindRejected RemoteErrorKind = iota + 1
	// 送信したが応答が無い（ネットワーク/タイムアウト）
	KindUnreachable
	// リクエストを組み立てられなかった
	KindMalformed
)

func (k RemoteErrorKind) String() string {
	switch k {
	case KindRejected:
		return "rejected"
	case KindUnreachable:
		return "unreachable"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

type RemoteError struct {
	Kind    RemoteErrorKind
	Status  int
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func AsRemoteError(err error) (*RemoteError, bool) {
	var re *RemoteError
	ok := errors.As(err, &re)
	return re, ok
}
