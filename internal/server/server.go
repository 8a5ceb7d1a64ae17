package server

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/config"
	mw "storefront/internal/middleware"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

type Server struct {
	e    *echo.Echo
	addr string
	log  logrus.FieldLogger
}

// echo本体と共通ミドルウェア
func New(cfg config.Config, log logrus.FieldLogger, h Handlers) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(mw.RequestLogger(log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.FEURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, mw.HeaderRequestID},
		AllowCredentials: true,
	}))

	RegisterRoutes(e, cfg, h)

	return &Server{e: e, addr: addr(cfg.Port), log: log}
}

func (s *Server) Echo() *echo.Echo {
	return s.e
}

// Start は Shutdown されるまで戻らない
func (s *Server) Start() error {
	s.log.WithField("addr", s.addr).Info("storefront listening")
	err := s.e.Start(s.addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.e.Shutdown(ctx)
}

// "8080" でも ":8080" でもよい
func addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] != ':' {
		return ":" + port
	}
	return port
}
