package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/sirupsen/logrus"
)

var (
	ErrNoSession      = errors.New("session is required")
	ErrUnknownSession = errors.New("cart session not found")
	ErrSessionInUse   = errors.New("cart session in use")
)

// SessionRegistry はセッションごとの CartStore の持ち主。
// ハンドラはグローバルなストアではなく、ここから自分のセッションのストアを受け取る。
type SessionRegistry struct {
	remote           repo.CartRemote
	cache            repo.CartCache
	opts             CartStoreOptions
	log              logrus.FieldLogger
	reconcileTimeout time.Duration
	now              func() time.Time

	mu      sync.Mutex
	entries map[string]*sessionEntry

	bg sync.WaitGroup
}

type sessionEntry struct {
	store    *CartStore
	ready    sync.Once
	openedAt time.Time
	lastUsed time.Time
	// Use と裏のReconcileが借りている数（r.mu で守る）
	leases int
}

// 管理画面用の一覧の1行
type SessionInfo struct {
	Key       string      `json:"key"`
	Lines     int         `json:"lines"`
	Items     int         `json:"items"`
	Phase     model.Phase `json:"phase"`
	IsLoading bool        `json:"isLoading"`
	Error     string      `json:"error,omitempty"`
	OpenedAt  time.Time   `json:"openedAt"`
	LastUsed  time.Time   `json:"lastUsed"`
}

type RegistryOptions struct {
	Store            CartStoreOptions
	Log              logrus.FieldLogger
	ReconcileTimeout time.Duration
	Now              func() time.Time
}

// DI
func NewSessionRegistry(remote repo.CartRemote, cache repo.CartCache, opts RegistryOptions) *SessionRegistry {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Store.Log == nil {
		opts.Store.Log = opts.Log
	}
	if opts.ReconcileTimeout <= 0 {
		opts.ReconcileTimeout = 15 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SessionRegistry{
		remote:           remote,
		cache:            cache,
		opts:             opts.Store,
		log:              opts.Log,
		reconcileTimeout: opts.ReconcileTimeout,
		now:              opts.Now,
		entries:          make(map[string]*sessionEntry),
	}
}

// Open はセッションのストアを返す。初回はキャッシュから表示できる状態にしてから返し、
// サーバーとの突き合わせ（Reconcile）は裏で走らせる。
// 返したストアは借りていないので、操作中でなければ Forget / Sweep で外れることがある。
func (r *SessionRegistry) Open(ctx context.Context, sess model.Session) (*CartStore, error) {
	e, err := r.open(ctx, sess, false)
	if err != nil {
		return nil, err
	}
	return e.store, nil
}

// Use はストアを借りて fn を実行する。fn の間はそのセッションは捨てられない。
func (r *SessionRegistry) Use(ctx context.Context, sess model.Session, fn func(store *CartStore) error) error {
	e, err := r.open(ctx, sess, true)
	if err != nil {
		return err
	}
	defer r.unlease(e)
	return fn(e.store)
}

func (r *SessionRegistry) open(ctx context.Context, sess model.Session, lease bool) (*sessionEntry, error) {
	key := sess.Key()
	if key == "" {
		return nil, ErrNoSession
	}

	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &sessionEntry{
			store:    NewCartStore(sess, r.remote, r.cache, r.opts),
			openedAt: r.now(),
		}
		r.entries[key] = e
	}
	e.lastUsed = r.now()
	if lease {
		e.leases++
	}
	r.mu.Unlock()

	if ok && e.store.Session().Token != sess.Token {
		e.store.UpdateSession(sess)
	}

	e.ready.Do(func() {
		st := e.store.Hydrate(ctx)
		r.log.WithFields(logrus.Fields{
			"session": key,
			"phase":   st.Phase,
			"lines":   len(st.Cart),
		}).Debug("cart session opened")
		r.reconcileAsync(ctx, e)
	})
	return e, nil
}

func (r *SessionRegistry) unlease(e *sessionEntry) {
	r.mu.Lock()
	e.leases--
	r.mu.Unlock()
}

// ゲートは戻る前に取っておく（直後の操作はReconcileの後ろに並ぶ）
func (r *SessionRegistry) reconcileAsync(ctx context.Context, e *sessionEntry) {
	held := e.store.holdForReconcile()

	r.mu.Lock()
	e.leases++
	r.mu.Unlock()

	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		defer r.unlease(e)
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.reconcileTimeout)
		defer cancel()

		if held {
			e.store.reconcileHeld(rctx)
			return
		}
		if _, err := e.store.Reconcile(rctx); err != nil {
			r.log.WithError(err).WithField("session", e.store.Session().Key()).Warn("cart reconcile skipped")
		}
	}()
}

// 裏で走っている Reconcile を待つ（シャットダウンとテスト用）
func (r *SessionRegistry) Wait() {
	r.bg.Wait()
}

func (r *SessionRegistry) Lookup(key string) (*CartStore, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	return e.store, true
}

// Forget はメモリ上のストアだけ捨てる（ローカルキャッシュは残す）。
// 借りられている・操作中のストアは捨てない。
func (r *SessionRegistry) Forget(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return ErrUnknownSession
	}
	if e.inUse() {
		return ErrSessionInUse
	}
	delete(r.entries, key)
	return nil
}

// r.mu を持って呼ぶ
func (e *sessionEntry) inUse() bool {
	return e.leases > 0 || e.store.busy()
}

func (r *SessionRegistry) List() []SessionInfo {
	r.mu.Lock()
	out := make([]SessionInfo, 0, len(r.entries))
	for key, e := range r.entries {
		st := e.store.Snapshot()
		out = append(out, SessionInfo{
			Key:       key,
			Lines:     len(st.Cart),
			Items:     st.Cart.Count(),
			Phase:     st.Phase,
			IsLoading: st.IsLoading,
			Error:     st.Error,
			OpenedAt:  e.openedAt,
			LastUsed:  e.lastUsed,
		})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Sweep は idle より長く使われていないストアを捨てる。処理中のものは残す。
func (r *SessionRegistry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for key, e := range r.entries {
		if e.lastUsed.After(cutoff) {
			continue
		}
		if e.inUse() {
			continue
		}
		delete(r.entries, key)
		n++
	}
	return n
}

// RunSweeper は ctx が終わるまで定期的に Sweep する
func (r *SessionRegistry) RunSweeper(ctx context.Context, every time.Duration, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	r.log.Infof("[SessionSweeper] Started (every %v, idle %v)", every, idle)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("[SessionSweeper] Stopping...")
			return
		case <-ticker.C:
			if n := r.Sweep(idle); n > 0 {
				r.log.WithField("evicted", n).Info("[SessionSweeper] idle cart sessions evicted")
			}
		}
	}
}
