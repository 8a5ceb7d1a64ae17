package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/infra/cache"
	"storefront/internal/logging"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// Mocks
// =====================

type CartRemoteMock struct{ mock.Mock }

func (m *CartRemoteMock) Fetch(ctx context.Context, sess model.Session) (model.Cart, error) {
	args := m.Called(ctx, sess)
	c, _ := args.Get(0).(model.Cart)
	return c, args.Error(1)
}

func (m *CartRemoteMock) Add(ctx context.Context, sess model.Session, productID string) (model.Cart, error) {
	args := m.Called(ctx, sess, productID)
	c, _ := args.Get(0).(model.Cart)
	return c, args.Error(1)
}

func (m *CartRemoteMock) Remove(ctx context.Context, sess model.Session, productID string) (model.Cart, error) {
	args := m.Called(ctx, sess, productID)
	c, _ := args.Get(0).(model.Cart)
	return c, args.Error(1)
}

func (m *CartRemoteMock) Clear(ctx context.Context, sess model.Session) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

var _ repo.CartRemote = (*CartRemoteMock)(nil)

// Saveだけ失敗するキャッシュ
type saveFailingCache struct {
	*cache.MemoryCache
}

func (c saveFailingCache) Save(ctx context.Context, key string, cart model.Cart) error {
	return errors.New("disk full")
}

// Loadが壊れたデータを返すキャッシュ
type corruptCache struct {
	*cache.MemoryCache
}

func (c corruptCache) Load(ctx context.Context, key string) (model.Cart, error) {
	return nil, errors.New("cache: decode cart: unexpected end of JSON input")
}

// =====================
// helper
// =====================

var sess = model.Session{UserID: "u1", Role: model.RoleUser, Token: "tok"}

var (
	errUnreachable = &repo.RemoteError{Kind: repo.KindUnreachable, Message: "no response"}
	errStock       = &repo.RemoteError{Kind: repo.KindRejected, Status: 400, Message: "stock exceeded"}
)

func newStore(remote repo.CartRemote, c repo.CartCache, policy usecase.OpPolicy) *usecase.CartStore {
	return usecase.NewCartStore(sess, remote, c, usecase.CartStoreOptions{
		Policy: policy,
		Log:    logging.Discard(),
	})
}

// キャッシュの中身が今のカートと一致すること
func assertCacheMirrors(t *testing.T, c repo.CartCache, want model.Cart) {
	t.Helper()
	got, err := c.Load(context.Background(), repo.CartSlot(sess.Key()))
	if len(want) == 0 && errors.Is(err, repo.ErrNotFound) {
		return
	}
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// 先にFetchで状態を作っておく
func seed(t *testing.T, remote *CartRemoteMock, store *usecase.CartStore, cart model.Cart) {
	t.Helper()
	remote.On("Fetch", mock.Anything, sess).Return(cart, nil).Once()
	st, err := store.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, cart, st.Cart)
}

// =====================
// Replace semantics
// =====================

func TestCartStore_Add_EmptyCart_ReplacesWithServerCart(t *testing.T) {
	ctx := context.Background()
	remote := new(CartRemoteMock)
	mc := cache.NewMemoryCache()
	store := newStore(remote, mc, usecase.OpQueue)

	server := model.Cart{{ProductID: "p1", Quantity: 1, Price: 100}}
	remote.On("Add", mock.Anything, sess, "p1").Return(server, nil).Once()

	st, err := store.Add(ctx, "p1")
	require.NoError(t, err)

	assert.Equal(t, server, st.Cart)
	assert.False(t, st.IsLoading)
	assert.Empty(t, st.Error)
	assert.Equal(t, model.PhaseSynced, st.Phase)
	assert.Equal(t, server, store.Snapshot().Cart)
	assertCacheMirrors(t, mc, server)
	remote.AssertExpectations(t)
}

func TestCartStore_Add_DoesNotMergeLocally(t *testing.T) {
	ctx := context.Background()
	remote := new(CartRemoteMock)
	mc := cache.NewMemoryCache()
	store := newStore(remote, mc, usecase.OpQueue)
	seed(t, remote, store, model.Cart{{ProductID: "p1", Quantity: 1}, {ProductID: "p2", Quantity: 4}})

	//サーバーがp2を落として返しても、そのまま受け入れる
	server := model.Cart{{ProductID: "p1", Quantity: 2}}
	remote.On("Add", mock.Anything, sess, "p1").Return(server, nil).Once()

	st, err := store.Add(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, server, st.Cart)
	assertCacheMirrors(t, mc, server)
}

func TestCartStore_Remove_ServerDecidesQuantity(t *testing.T) {
	ctx := context.Background()
	remote := new(CartRemoteMock)
	mc := cache.NewMemoryCache()
	store := newStore(remote, mc, usecase.OpQueue)
	seed(t, remote, store, model.Cart{{ProductID: "p1", Quantity: 2}})

	server := model.Cart{{ProductID: "p1", Quantity: 1}}
	remote.On("Remove", mock.Anything, sess, "p1").Return(server, nil).Once()

	st, err := store.Remove(ctx, "p1")
	require.NoError(t, err)

	require.Len(t, st.Cart, 1)
	assert.Equal(t, 1, st.Cart[0].Quantity)
	assertCacheMirrors(t, mc, server)
}

func TestCartStore_Fetch_PreservesServerOrder(t *testing.T) {
	remote := new(CartRemoteMock)
	mc := cache.NewMemoryCache()
	store := newStore(remote, mc, usecase.OpQueue)

	server := model.Cart{{ProductID: "z"}, {ProductID: "a"}, {ProductID: "m"}}
	seed(t, remote, store, server)

	assert.Equal(t, server, store.Snapshot().Cart)
	assertCacheMirrors(t, mc, server)
}

// =====================
// Clear
// =====================

func TestCartStore_Clear_EmptiesCartAndCache(t *testing.T) {
	ctx := context.Background()
	remote := new(CartRemoteMock)
	mc := cache.NewMemoryCache()
	store := newStore(remote, mc, usecase.OpQueue)
	seed(t, remote, store, model.Cart{{ProductID: "p1", Quantity: 3}})

	remote.On("Clear", mock.Anything, sess).Return(nil).Once()

	st, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Cart{}, st.Cart)

	_, err = mc.Load(ctx, repo.CartSlot(sess.Key()))
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestCartStore_Clear_AlreadyEmptyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	remote := new(CartRemoteMock)
	store := newStore(remote, cache.NewMemoryCache(), usecase.OpQueue)

	remote.On("Clear", mock.Anything, sess).Return(nil).Twice()

	for i := 0; i < 2; i++ {
		st, err := store.Clear(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.Cart{}, st.Cart)
		assert.Empty(t, st.Error)
	}
	remote.AssertExpectations(t)
}

// =====================
// Errors
// =====================

func TestCartStore_Fetch_Unreachable_KeepsCart(t *testing.T) {
	ctx := context.Background()
	remote := new(CartRemoteMock)
	mc := cache.NewMemoryCache()
	store := newStore(remote, mc, usecase.OpQueue)
	before := model.Cart{{ProductID: "p1", Quantity: 2, Price: 100}}
	seed(t, remote, store, before)

	remote.On("Fetch", mock.Anything, sess).Return(nil, errUnreachable).Once()

	st, err := store.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "No response from server.", st.Error)
	assert.Equal(t, before, st.Cart)
	assert.False(t, st.IsLoading)
	assertCacheMirrors(t, mc, before)
}

func TestCartStore_Add_Rejected_KeepsCartAndCache(t *testing.T) {
	ctx := context.Background()
	remote := new(CartRemoteMock)
	mc := cache.NewMemoryCache()
	store := newStore(remote, mc, usecase.OpQueue)
	before := model.Cart{{ProductID: "p1", Quantity: 5}}
	seed(t, remote, store, before)

	remote.On("Add", mock.Anything, sess, "p1").Return(nil, errStock).Once()

	st, err := store.Add(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Backend error: stock exceeded", st.Error)
	assert.Equal(t, before, st.Cart)
	assertCacheMirrors(t, mc, before)
}

func TestCartStore_Add_EmptyProductID_IsRequestError(t *testing.T) {
	remote := new(CartRemoteMock)
	store := newStore(remote, cache.NewMemoryCache(), usecase.OpQueue)

	st, err := store.Add(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "Request error: productId is required", st.Error)
	remote.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
}

func TestCartStore_ErrorClearedOnNextOperation(t *testing.T) {
	ctx := context.Background()
	remote := new(CartRemoteMock)
	store := newStore(remote, cache.NewMemoryCache(), usecase.OpQueue)

	remote.On("Fetch", mock.Anything, sess).Return(nil, errUnreachable).Once()
	st, _ := store.Fetch(ctx)
	require.NotEmpty(t, st.Error)

	remote.On("Fetch", mock.Anything, sess).Return(model.Cart{}, nil).Once()
	st, _ = store.Fetch(ctx)
	assert.Empty(t, st.Error)
}

func TestCartStore_CacheWriteFailureDoesNotFailOperation(t *testing.T) {
	remote := new(CartRemoteMock)
	store := newStore(remote, saveFailingCache{cache.NewMemoryCache()}, usecase.OpQueue)

	server := model.Cart{{ProductID: "p1", Quantity: 1}}
	remote.On("Add", mock.Anything, sess, "p1").Return(server, nil).Once()

	st, err := store.Add(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, st.Error)
	assert.Equal(t, server, st.Cart)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Backend error: stock exceeded", usecase.Describe(errStock))
	assert.Equal(t, "No response from server.", usecase.Describe(errUnreachable))
	assert.Equal(t, "Request error: bad url",
		usecase.Describe(&repo.RemoteError{Kind: repo.KindMalformed, Message: "bad url"}))
	assert.Equal(t, "Request error: boom", usecase.Describe(errors.New("boom")))
}

// =====================
// Loading flag / serialization
// =====================

// リモート呼び出しの途中で止めるためのフック
func blockingCall(started chan<- struct{}, release <-chan struct{}) func(mock.Arguments) {
	return func(mock.Arguments) {
		started <- struct{}{}
		<-release
	}
}

func TestCartStore_LoadingFlagBracketsOperation(t *testing.T) {
	remote := new(CartRemoteMock)
	store := newStore(remote, cache.NewMemoryCache(), usecase.OpQueue)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	remote.On("Add", mock.Anything, sess, "p1").
		Run(blockingCall(started, release)).
		Return(nil, errStock).Once()

	assert.False(t, store.Snapshot().IsLoading)

	done := make(chan model.State, 1)
	go func() {
		st, _ := store.Add(context.Background(), "p1")
		done <- st
	}()

	<-started
	assert.True(t, store.Snapshot().IsLoading)

	close(release)
	st := <-done
	assert.False(t, st.IsLoading)
	assert.False(t, store.Snapshot().IsLoading)
}

func TestCartStore_RejectPolicy_ReturnsErrBusy(t *testing.T) {
	remote := new(CartRemoteMock)
	store := newStore(remote, cache.NewMemoryCache(), usecase.OpReject)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	first := model.Cart{{ProductID: "p1", Quantity: 1}}
	remote.On("Add", mock.Anything, sess, "p1").
		Run(blockingCall(started, release)).
		Return(first, nil).Once()

	done := make(chan struct{})
	go func() {
		_, _ = store.Add(context.Background(), "p1")
		close(done)
	}()
	<-started

	before := store.Snapshot()
	st, err := store.Remove(context.Background(), "p1")
	assert.ErrorIs(t, err, usecase.ErrBusy)
	assert.Equal(t, before, st)

	close(release)
	<-done
	assert.Equal(t, first, store.Snapshot().Cart)
	remote.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything, mock.Anything)
}

func TestCartStore_QueuePolicy_AppliesInIssueOrder(t *testing.T) {
	remote := new(CartRemoteMock)
	store := newStore(remote, cache.NewMemoryCache(), usecase.OpQueue)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	afterAdd := model.Cart{{ProductID: "p1", Quantity: 2}}
	afterRemove := model.Cart{{ProductID: "p1", Quantity: 1}}

	remote.On("Add", mock.Anything, sess, "p1").
		Run(blockingCall(started, release)).
		Return(afterAdd, nil).Once()
	remote.On("Remove", mock.Anything, sess, "p1").Return(afterRemove, nil).Once()

	addDone := make(chan struct{})
	go func() {
		_, _ = store.Add(context.Background(), "p1")
		close(addDone)
	}()
	<-started

	removeDone := make(chan model.State, 1)
	go func() {
		st, _ := store.Remove(context.Background(), "p1")
		removeDone <- st
	}()

	//Removeは待たされているのでまだ呼ばれていない
	time.Sleep(20 * time.Millisecond)
	remote.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything, mock.Anything)

	close(release)
	<-addDone
	st := <-removeDone
	assert.Equal(t, afterRemove, st.Cart)
	assert.Equal(t, afterRemove, store.Snapshot().Cart)
}

func TestCartStore_QueuePolicy_CanceledWhileWaiting(t *testing.T) {
	remote := new(CartRemoteMock)
	store := newStore(remote, cache.NewMemoryCache(), usecase.OpQueue)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	remote.On("Add", mock.Anything, sess, "p1").
		Run(blockingCall(started, release)).
		Return(model.Cart{{ProductID: "p1", Quantity: 1}}, nil).Once()

	done := make(chan struct{})
	go func() {
		_, _ = store.Add(context.Background(), "p1")
		close(done)
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Clear(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	<-done
	remote.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything)
}

// =====================
// Two-phase load
// =====================

func TestCartStore_Hydrate_ThenReconcile(t *testing.T) {
	ctx := context.Background()
	remote := new(CartRemoteMock)
	mc := cache.NewMemoryCache()
	cached := model.Cart{{ProductID: "p1", Quantity: 1}}
	require.NoError(t, mc.Save(ctx, repo.CartSlot(sess.Key()), cached))

	store := newStore(remote, mc, usecase.OpQueue)
	st := store.Hydrate(ctx)
	assert.Equal(t, model.PhaseCached, st.Phase)
	assert.Equal(t, cached, st.Cart)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	server := model.Cart{{ProductID: "p1", Quantity: 3}}
	remote.On("Fetch", mock.Anything, sess).
		Run(blockingCall(started, release)).
		Return(server, nil).Once()

	done := make(chan model.State, 1)
	go func() {
		st, _ := store.Reconcile(ctx)
		done <- st
	}()
	<-started
	mid := store.Snapshot()
	assert.Equal(t, model.PhaseReconciling, mid.Phase)
	assert.Equal(t, cached, mid.Cart)

	close(release)
	st = <-done
	assert.Equal(t, model.PhaseSynced, st.Phase)
	assert.Equal(t, server, st.Cart)
}

func TestCartStore_ReconcileFailure_IsStale(t *testing.T) {
	ctx := context.Background()
	remote := new(CartRemoteMock)
	mc := cache.NewMemoryCache()
	cached := model.Cart{{ProductID: "p1", Quantity: 1}}
	require.NoError(t, mc.Save(ctx, repo.CartSlot(sess.Key()), cached))

	store := newStore(remote, mc, usecase.OpQueue)
	store.Hydrate(ctx)

	remote.On("Fetch", mock.Anything, sess).Return(nil, errUnreachable).Once()
	st, err := store.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseStale, st.Phase)
	assert.Equal(t, cached, st.Cart)
	assert.Equal(t, "No response from server.", st.Error)
}

func TestCartStore_Hydrate_MissingOrCorruptSlot(t *testing.T) {
	ctx := context.Background()

	st := newStore(new(CartRemoteMock), cache.NewMemoryCache(), usecase.OpQueue).Hydrate(ctx)
	assert.Equal(t, model.PhaseEmpty, st.Phase)
	assert.Equal(t, model.Cart{}, st.Cart)

	st = newStore(new(CartRemoteMock), corruptCache{cache.NewMemoryCache()}, usecase.OpQueue).Hydrate(ctx)
	assert.Equal(t, model.PhaseEmpty, st.Phase)
	assert.Equal(t, model.Cart{}, st.Cart)
}

func TestCartStore_Hydrate_DoesNotOverwriteServerState(t *testing.T) {
	ctx := context.Background()
	remote := new(CartRemoteMock)
	mc := cache.NewMemoryCache()
	store := newStore(remote, mc, usecase.OpQueue)

	server := model.Cart{{ProductID: "p2", Quantity: 1}}
	seed(t, remote, store, server)
	require.NoError(t, mc.Save(ctx, repo.CartSlot(sess.Key()), model.Cart{{ProductID: "old"}}))

	st := store.Hydrate(ctx)
	assert.Equal(t, server, st.Cart)
	assert.Equal(t, model.PhaseSynced, st.Phase)
}

func TestCartStore_SnapshotIsACopy(t *testing.T) {
	remote := new(CartRemoteMock)
	store := newStore(remote, cache.NewMemoryCache(), usecase.OpQueue)
	seed(t, remote, store, model.Cart{{ProductID: "p1", Quantity: 1}})

	st := store.Snapshot()
	st.Cart[0].Quantity = 99

	assert.Equal(t, 1, store.Snapshot().Cart[0].Quantity)
}

func TestCartStore_RejectPolicy_WaitsBehindReconcile(t *testing.T) {
	ctx := context.Background()
	remote := new(CartRemoteMock)
	mc := cache.NewMemoryCache()
	require.NoError(t, mc.Save(ctx, repo.CartSlot(sess.Key()), model.Cart{{ProductID: "p1", Quantity: 1}}))

	store := newStore(remote, mc, usecase.OpReject)
	store.Hydrate(ctx)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	remote.On("Fetch", mock.Anything, sess).
		Run(blockingCall(started, release)).
		Return(model.Cart{{ProductID: "p1", Quantity: 2}}, nil).Once()
	afterAdd := model.Cart{{ProductID: "p1", Quantity: 3}}
	remote.On("Add", mock.Anything, sess, "p1").Return(afterAdd, nil).Once()

	go func() { _, _ = store.Reconcile(ctx) }()
	<-started

	type result struct {
		st  model.State
		err error
	}
	addDone := make(chan result, 1)
	go func() {
		st, err := store.Add(ctx, "p1")
		addDone <- result{st, err}
	}()

	//Reconcileが終わるまでAddは呼ばれない
	time.Sleep(20 * time.Millisecond)
	remote.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)

	close(release)
	got := <-addDone
	require.NoError(t, got.err)
	assert.Equal(t, afterAdd, got.st.Cart)
	assert.Equal(t, model.PhaseSynced, got.st.Phase)
}

func TestCartStore_Fetch_SharedFetchOutlivesFirstCaller(t *testing.T) {
	remote := new(CartRemoteMock)
	store := newStore(remote, cache.NewMemoryCache(), usecase.OpQueue)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	remoteCtxErr := make(chan error, 1)
	server := model.Cart{{ProductID: "p1", Quantity: 4}}
	remote.On("Fetch", mock.Anything, sess).
		Run(func(args mock.Arguments) {
			started <- struct{}{}
			<-release
			remoteCtxErr <- args.Get(0).(context.Context).Err()
		}).
		Return(server, nil).Once()

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := store.Fetch(firstCtx)
		firstDone <- err
	}()
	<-started

	secondDone := make(chan model.State, 1)
	go func() {
		st, err := store.Fetch(context.Background())
		assert.NoError(t, err)
		secondDone <- st
	}()
	time.Sleep(20 * time.Millisecond)

	//最初の呼び出し元だけが抜ける
	cancelFirst()
	assert.ErrorIs(t, <-firstDone, context.Canceled)

	close(release)
	st := <-secondDone
	assert.Equal(t, server, st.Cart)
	assert.Empty(t, st.Error)
	assert.NoError(t, <-remoteCtxErr)
	remote.AssertNumberOfCalls(t, "Fetch", 1)
}

// Saveの時点でストアがまだloading中かを記録するキャッシュ
type loadingObserverCache struct {
	*cache.MemoryCache
	store     *usecase.CartStore
	loadingAt []bool
}

func (c *loadingObserverCache) Save(ctx context.Context, key string, cart model.Cart) error {
	c.loadingAt = append(c.loadingAt, c.store.Snapshot().IsLoading)
	return c.MemoryCache.Save(ctx, key, cart)
}

func TestCartStore_CacheWrittenBeforeLoadingSettles(t *testing.T) {
	remote := new(CartRemoteMock)
	oc := &loadingObserverCache{MemoryCache: cache.NewMemoryCache()}
	store := newStore(remote, oc, usecase.OpQueue)
	oc.store = store

	server := model.Cart{{ProductID: "p1", Quantity: 1}}
	remote.On("Add", mock.Anything, sess, "p1").Return(server, nil).Once()

	st, err := store.Add(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, []bool{true}, oc.loadingAt)
	assert.False(t, st.IsLoading)
	assertCacheMirrors(t, oc, server)
}
