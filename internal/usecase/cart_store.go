package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// 実行中の操作があるとき（rejectポリシー）
var ErrBusy = errors.New("cart operation in progress")

// 同時に来た操作の扱い
type OpPolicy string

const (
	OpQueue  OpPolicy = "queue"  // 順番待ち
	OpReject OpPolicy = "reject" // 即ErrBusy
)

const (
	msgNoResponse       = "No response from server."
	fetchFlight         = "fetch"
	defaultFetchTimeout = 30 * time.Second
)

var tracer = otel.Tracer("storefront/internal/usecase")

// CartStore は1セッション分のカート状態を持つ。
// 状態を書き換えるのはこのストアの操作だけで、利用側は Snapshot を読む。
// 操作はゲートで1つずつ直列に実行する（最後に返った応答が勝つ競合は起きない）。
type CartStore struct {
	remote       repo.CartRemote
	cache        repo.CartCache
	log          logrus.FieldLogger
	policy       OpPolicy
	fetchTimeout time.Duration

	gate *semaphore.Weighted
	sf   singleflight.Group
	// ゲート待ち＋実行中の操作数
	inUse atomic.Int32

	mu    sync.RWMutex
	sess  model.Session
	state model.State
	// ゲートを持っているのが裏のReconcileのとき true（mu で守る）
	background bool
}

type CartStoreOptions struct {
	Policy OpPolicy
	Log    logrus.FieldLogger
	// まとめたFetchの上限時間（呼び出し側のctxとは切り離す）
	FetchTimeout time.Duration
}

// DI
func NewCartStore(sess model.Session, remote repo.CartRemote, cache repo.CartCache, opts CartStoreOptions) *CartStore {
	if opts.Policy == "" {
		opts.Policy = OpQueue
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CartStore{
		remote:       remote,
		cache:        cache,
		log:          log.WithField("session", sess.Key()),
		policy:       opts.Policy,
		fetchTimeout: opts.FetchTimeout,
		gate:         semaphore.NewWeighted(1),
		sess:         sess,
		state: model.State{
			Cart:  model.Cart{},
			Phase: model.PhaseEmpty,
		},
	}
}

// 現在の状態のコピー
func (s *CartStore) Snapshot() model.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *CartStore) Session() model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess
}

// トークン更新（同じユーザーの新しいトークン）
func (s *CartStore) UpdateSession(sess model.Session) {
	s.mu.Lock()
	s.sess = sess
	s.mu.Unlock()
}

func (s *CartStore) slot() string {
	return repo.CartSlot(s.Session().Key())
}

// Hydrate はローカルキャッシュから最後のカートを読む（起動時に1回）。
// すでにサーバーの状態を持っているときは何もしない。
func (s *CartStore) Hydrate(ctx context.Context) model.State {
	cart, err := s.cache.Load(ctx, s.slot())

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase != model.PhaseEmpty {
		return s.state.Clone()
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
	case err != nil:
		//形が変わった古いキャッシュは捨てて次のfetchを待つ
		s.log.WithError(err).Warn("cart cache unreadable, ignoring")
	default:
		s.state.Cart = cart.Clone()
		s.state.Phase = model.PhaseCached
	}
	return s.state.Clone()
}

// Fetch はサーバーのカートで状態を置き換える。
// 同時に呼ばれたFetchは1往復にまとめる。まとめた往復は最初の呼び出し元のctxでは切れず、
// 各呼び出し元は自分のctxが終わったらその時点の状態を返して抜ける。
func (s *CartStore) Fetch(ctx context.Context) (model.State, error) {
	ch := s.sf.DoChan(fetchFlight, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		return s.run(fctx, "fetch", "", s.fetchCall)
	})
	select {
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return s.Snapshot(), res.Err
		}
		st := res.Val.(model.State)
		return st.Clone(), nil
	}
}

// Reconcile はキャッシュ表示後の最初のFetch。
// cached → reconciling → synced（失敗なら stale）と進む。
// rejectポリシーでも、この間に来た操作は ErrBusy にせず終わるのを待たせる。
func (s *CartStore) Reconcile(ctx context.Context) (model.State, error) {
	if !s.holdForReconcile() {
		s.inUse.Add(1)
		if err := s.gate.Acquire(ctx, 1); err != nil {
			s.inUse.Add(-1)
			return s.Snapshot(), err
		}
		s.mu.Lock()
		s.background = true
		s.mu.Unlock()
	}
	return s.reconcileHeld(ctx), nil
}

// ゲートが空いていれば裏のReconcile用に取る
func (s *CartStore) holdForReconcile() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gate.TryAcquire(1) {
		return false
	}
	s.inUse.Add(1)
	s.background = true
	return true
}

// holdForReconcile / Reconcile で取ったゲートのまま fetch する
func (s *CartStore) reconcileHeld(ctx context.Context) model.State {
	defer s.release()
	return s.exec(ctx, "fetch", "", s.fetchCall)
}

func (s *CartStore) fetchCall(ctx context.Context, sess model.Session) (model.Cart, error) {
	return s.remote.Fetch(ctx, sess)
}

// 操作の待ち・実行中
func (s *CartStore) busy() bool {
	return s.inUse.Load() > 0
}

// Add は1つ追加。成功したらサーバーが返したカートで丸ごと置き換える。
func (s *CartStore) Add(ctx context.Context, productID string) (model.State, error) {
	return s.run(ctx, "add", productID, func(ctx context.Context, sess model.Session) (model.Cart, error) {
		return s.remote.Add(ctx, sess, productID)
	})
}

// Remove は1つ減らす。0になったときに消すかどうかはサーバーが決める。
func (s *CartStore) Remove(ctx context.Context, productID string) (model.State, error) {
	return s.run(ctx, "remove", productID, func(ctx context.Context, sess model.Session) (model.Cart, error) {
		return s.remote.Remove(ctx, sess, productID)
	})
}

// Clear はカートを空にしてキャッシュのスロットも消す。
func (s *CartStore) Clear(ctx context.Context) (model.State, error) {
	return s.run(ctx, "clear", "", func(ctx context.Context, sess model.Session) (model.Cart, error) {
		if err := s.remote.Clear(ctx, sess); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

type remoteCall func(ctx context.Context, sess model.Session) (model.Cart, error)

// run は1操作の流れ：ゲート取得 → loading開始 → リモート → 成功なら置き換え＋キャッシュ / 失敗ならerrorだけ。
// 戻りのerrorはゲートを取れなかったときだけ。リモートの失敗は state.Error に入る。
func (s *CartStore) run(ctx context.Context, op string, productID string, call remoteCall) (model.State, error) {
	if err := s.acquire(ctx); err != nil {
		return s.Snapshot(), err
	}
	defer s.release()
	return s.exec(ctx, op, productID, call), nil
}

// ゲートを持った状態で呼ぶ
func (s *CartStore) exec(ctx context.Context, op string, productID string, call remoteCall) model.State {
	ctx, span := tracer.Start(ctx, "cart."+op)
	defer span.End()
	span.SetAttributes(attribute.String("cart.op", op))

	log := s.log.WithField("op", op)
	if productID != "" {
		log = log.WithField("productId", productID)
	}

	sess := s.begin(op)
	log.Debug("cart op started")

	var (
		cart model.Cart
		err  error
	)
	if (op == "add" || op == "remove") && productID == "" {
		err = &repo.RemoteError{Kind: repo.KindMalformed, Message: "productId is required"}
	} else {
		cart, err = call(ctx, sess)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WithError(err).Warn("cart op failed")
		return s.fail(err)
	}

	//キャッシュを書いてから loading を下ろす
	s.persist(context.WithoutCancel(ctx), log, op, cart)
	st := s.commit(cart)
	log.WithField("lines", len(st.Cart)).Debug("cart op done")
	return st
}

func (s *CartStore) acquire(ctx context.Context) error {
	s.inUse.Add(1)
	if err := s.take(ctx); err != nil {
		s.inUse.Add(-1)
		return err
	}
	return nil
}

func (s *CartStore) take(ctx context.Context) error {
	if s.policy != OpReject {
		return s.gate.Acquire(ctx, 1)
	}
	s.mu.Lock()
	if s.gate.TryAcquire(1) {
		s.mu.Unlock()
		return nil
	}
	background := s.background
	s.mu.Unlock()

	//裏のReconcileには譲って待つ
	if background {
		return s.gate.Acquire(ctx, 1)
	}
	return ErrBusy
}

func (s *CartStore) release() {
	s.mu.Lock()
	s.background = false
	s.gate.Release(1)
	s.mu.Unlock()
	s.inUse.Add(-1)
}

// loading開始、前回のerrorは消す
func (s *CartStore) begin(op string) model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.IsLoading = true
	s.state.Error = ""
	if op == "fetch" && s.state.Phase == model.PhaseCached {
		s.state.Phase = model.PhaseReconciling
	}
	return s.sess
}

// サーバーの応答をそのまま正とする（ローカルでマージしない）
func (s *CartStore) commit(cart model.Cart) model.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Cart = cart.Clone()
	s.state.IsLoading = false
	s.state.Phase = model.PhaseSynced
	return s.state.Clone()
}

// カートはそのまま、errorだけ入れる
func (s *CartStore) fail(err error) model.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.IsLoading = false
	s.state.Error = Describe(err)
	if s.state.Phase == model.PhaseReconciling {
		s.state.Phase = model.PhaseStale
	}
	return s.state.Clone()
}

// キャッシュへの書き込み失敗は操作の失敗にはしない
func (s *CartStore) persist(ctx context.Context, log logrus.FieldLogger, op string, cart model.Cart) {
	var err error
	if op == "clear" {
		err = s.cache.Clear(ctx, s.slot())
	} else {
		err = s.cache.Save(ctx, s.slot(), cart.Clone())
	}
	if err != nil {
		log.WithError(err).Warn("cart cache write failed")
	}
}

// Describe はリモートの失敗を利用側に見せる文字列にする
func Describe(err error) string {
	re, ok := repo.AsRemoteError(err)
	if !ok {
		return "Request error: " + err.Error()
	}
	switch re.Kind {
	case repo.KindRejected:
		return "Backend error: " + re.Message
	case repo.KindUnreachable:
		return msgNoResponse
	default:
		return "Request error: " + re.Message
	}
}
