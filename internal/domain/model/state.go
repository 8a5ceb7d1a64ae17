package model

// カートの読み込み段階
type Phase string

const (
	PhaseEmpty       Phase = "empty"       // まだ何も読み込んでいない
	PhaseCached      Phase = "cached"      // ローカルキャッシュから表示中
	PhaseReconciling Phase = "reconciling" // キャッシュ表示後、サーバー取得中
	PhaseSynced      Phase = "synced"      // 最後の状態はサーバー応答
	PhaseStale       Phase = "stale"       // 取得に失敗、キャッシュのまま
)

// ストアの状態スナップショット（利用側はこれをポーリングする）
type State struct {
	Cart      Cart   `json:"items"`
	IsLoading bool   `json:"isLoading"`
	Error     string `json:"error,omitempty"`
	Phase     Phase  `json:"phase"`
}

// Cartを複製したスナップショット
func (s State) Clone() State {
	s.Cart = s.Cart.Clone()
	return s
}
