package model

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// 認証済みセッション。中身の検証は外部の認証基盤の責務。
// Tokenはリモートのカートサービスへそのまま転送する。
type Session struct {
	UserID string
	Role   string
	Token  string
	Email  string
}

// 1セッション = 1カート
func (s Session) Key() string {
	return s.UserID
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}
