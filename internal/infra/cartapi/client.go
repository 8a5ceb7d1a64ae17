package cartapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	VariantSession = "session" // GET /cart + Bearer
	VariantLegacy  = "legacy"  // GET /cart/userId/{id} + bodyにuserId

	idempotencyHeader = "X-Idempotency-Key"
	maxErrorBody      = 64 << 10
)

var tracer = otel.Tracer("storefront/internal/infra/cartapi")

// バックエンドのREST APIクライアント
type Client struct {
	baseURL string
	variant string
	timeout time.Duration
	http    *http.Client
	newKey  func() string
}

// DI
func NewClient(baseURL string, variant string, timeout time.Duration, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	if variant == "" {
		variant = VariantSession
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		variant: variant,
		timeout: timeout,
		http:    hc,
		newKey:  uuid.NewString,
	}
}

type cartEnvelope struct {
	Items model.Cart `json:"items"`
}

type productBody struct {
	UserID    string `json:"userId,omitempty"`
	ProductID string `json:"productId"`
}

type clearBody struct {
	Email string `json:"email,omitempty"`
}

// 現在のセッションのカートを取得
func (c *Client) Fetch(ctx context.Context, sess model.Session) (model.Cart, error) {
	path := "/cart"
	if c.variant == VariantLegacy {
		path = "/cart/userId/" + url.PathEscape(sess.UserID)
	}

	var out cartEnvelope
	if err := c.do(ctx, http.MethodGet, path, sess, nil, &out); err != nil {
		return nil, err
	}
	return out.Items.Clone(), nil
}

// 1つ追加（サーバーが作成/加算）
func (c *Client) Add(ctx context.Context, sess model.Session, productID string) (model.Cart, error) {
	return c.mutate(ctx, "/cart/add", sess, productID)
}

// 1つ減らす（0になったらサーバーが削除）
func (c *Client) Remove(ctx context.Context, sess model.Session, productID string) (model.Cart, error) {
	return c.mutate(ctx, "/cart/remove", sess, productID)
}

// カートを空にする。レスポンスは {} か {items: []} なので読まない。
func (c *Client) Clear(ctx context.Context, sess model.Session) error {
	var body interface{} = struct{}{}
	if c.variant == VariantLegacy {
		body = clearBody{Email: sess.Email}
	}
	return c.do(ctx, http.MethodPost, "/cart/clear", sess, body, nil)
}

func (c *Client) mutate(ctx context.Context, path string, sess model.Session, productID string) (model.Cart, error) {
	body := productBody{ProductID: productID}
	if c.variant == VariantLegacy {
		body.UserID = sess.UserID
	}

	var out cartEnvelope
	if err := c.do(ctx, http.MethodPost, path, sess, body, &out); err != nil {
		return nil, err
	}
	return out.Items.Clone(), nil
}

// 1往復。失敗は必ず *repo.RemoteError で返す。
func (c *Client) do(ctx context.Context, method string, path string, sess model.Session, body interface{}, out interface{}) (err error) {
	ctx, span := tracer.Start(ctx, "cartapi "+method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("cartapi.variant", c.variant),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, method, path, sess, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &repo.RemoteError{
			Kind:    repo.KindUnreachable,
			Message: "no response",
			Err:     errors.Wrapf(err, "cartapi: %s %s", method, path),
		}
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return rejected(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &repo.RemoteError{
			Kind:    repo.KindUnreachable,
			Message: "no response",
			Err:     errors.Wrap(err, "cartapi: read body"),
		}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &repo.RemoteError{
			Kind:    repo.KindRejected,
			Status:  resp.StatusCode,
			Message: "invalid response",
			Err:     errors.Wrap(err, "cartapi: decode body"),
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method string, path string, sess model.Session, body interface{}) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil || u.Scheme == "" || u.Host == "" {
		if err == nil {
			err = errors.Errorf("base url %q has no scheme or host", c.baseURL)
		}
		return nil, &repo.RemoteError{
			Kind:    repo.KindMalformed,
			Message: err.Error(),
			Err:     errors.Wrap(err, "cartapi: build url"),
		}
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, &repo.RemoteError{
				Kind:    repo.KindMalformed,
				Message: err.Error(),
				Err:     errors.Wrap(err, "cartapi: encode body"),
			}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, &repo.RemoteError{
			Kind:    repo.KindMalformed,
			Message: err.Error(),
			Err:     errors.Wrap(err, "cartapi: new request"),
		}
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}
	//同じクリックの再送をサーバー側で弾けるように
	if method != http.MethodGet {
		req.Header.Set(idempotencyHeader, c.newKey())
	}
	return req, nil
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// 非2xxのレスポンスからサーバーのメッセージを取り出す
func rejected(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := ""
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil {
		msg = eb.Message
		if msg == "" {
			msg = eb.Error
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return &repo.RemoteError{
		Kind:    repo.KindRejected,
		Status:  resp.StatusCode,
		Message: msg,
		Err:     errors.Errorf("cartapi: status %d", resp.StatusCode),
	}
}
