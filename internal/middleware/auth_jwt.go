package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/config"
	"storefront/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey   = "user_id"   // string
	CtxUserRoleKey = "user_role" // string
	CtxSessionKey  = "session"   // model.Session
)

// bearerAuth用のJWT検証ミドルウェア。
// 検証できたトークンはそのままリモートのカートサービスへ転送するのでSessionに持たせる。
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//Authorizationヘッダを取得
			authz := c.Request().Header.Get("Authorization")
			if authz == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//Bearer形式か確認してtokenを抜く
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			rawToken := strings.TrimSpace(parts[1])
			if rawToken == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//JWTをパースして検証する
			token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
				if t.Method != jwt.SigningMethodHS256 {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(cfg.JWTSecret), nil
			})
			if err != nil || token == nil || !token.Valid {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//claimsを取り出す
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//user_idを取り出す（sub が無ければ id）
			userID, err := parseUserID(claims["sub"])
			if err != nil {
				userID, err = parseUserID(claims["id"])
			}
			if err != nil || userID == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			//roleは無ければUSER
			role, _ := claims["role"].(string)
			if role == "" {
				role = model.RoleUser
			}
			email, _ := claims["email"].(string)

			sess := model.Session{
				UserID: userID,
				Role:   role,
				Token:  rawToken,
				Email:  email,
			}

			//contextへ保存
			c.Set(CtxUserIDKey, userID)
			c.Set(CtxUserRoleKey, role)
			c.Set(CtxSessionKey, sess)

			return next(c)
		}
	}
}

// AuthJWT が入れたセッションを取り出す
func SessionFrom(c echo.Context) (model.Session, bool) {
	sess, ok := c.Get(CtxSessionKey).(model.Session)
	if !ok || sess.Key() == "" {
		return model.Session{}, false
	}
	return sess, true
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

// subは文字列（ObjectId等）か数値
func parseUserID(v interface{}) (string, error) {
	switch t := v.(type) {
	case float64:
		if t <= 0 || t != float64(int64(t)) {
			return "", errors.New("invalid sub")
		}
		return strconv.FormatInt(int64(t), 10), nil
	case string:
		return strings.TrimSpace(t), nil
	default:
		return "", errors.New("invalid sub")
	}
}
