package api

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"PasskeyWallet/internal/addressbook"
	"PasskeyWallet/internal/auth"
	"PasskeyWallet/internal/credential"
	"PasskeyWallet/internal/feedback"
	"PasskeyWallet/internal/observability/metrics"
	"PasskeyWallet/internal/task"
	"PasskeyWallet/internal/wallet"
	"PasskeyWallet/pkg/logger"

	_ "PasskeyWallet/docs"
)

// Wallet 定义了 API 需要的钱包会话能力。
type Wallet interface {
	Status() wallet.Status
	Wallet() (credential.Handle, bool)
	Network() string
	CreateWallet(ctx context.Context) (credential.Handle, error)
	LoadWallet(ctx context.Context) (credential.Handle, error)
	CheckBalance(ctx context.Context) (*big.Int, error)
	RequestFaucet(ctx context.Context) error
	Create(ctx context.Context, recipientRaw, amount string) (*wallet.Draft, error)
	Sign(ctx context.Context) error
	Send(ctx context.Context) (*wallet.BroadcastResult, error)
}

// Feedback 提供最新的状态消息。
type Feedback interface {
	Last() feedback.Message
}

// Server 负责暴露 REST 接口，供外部驱动钱包会话。
type Server struct {
	addr     string
	wallet   Wallet
	commands *task.Service
	feedback Feedback
	book     *addressbook.Book
	auth     *auth.Service
	shutdown time.Duration
}

// Option 定义可选配置。
type Option func(*Server)

// WithCommands 挂载指令队列接口。
func WithCommands(svc *task.Service) Option {
	return func(s *Server) { s.commands = svc }
}

// WithFeedback 挂载反馈接口。
func WithFeedback(fb Feedback) Option {
	return func(s *Server) { s.feedback = fb }
}

// WithAddressBook 挂载地址簿接口。
func WithAddressBook(book *addressbook.Book) Option {
	return func(s *Server) { s.book = book }
}

// WithAuth 启用 Bearer Token 认证。
func WithAuth(svc *auth.Service) Option {
	return func(s *Server) { s.auth = svc }
}

// WithShutdownTimeout 设置优雅关闭的等待时间。
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdown = d
		}
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, w Wallet, opts ...Option) *Server {
	s := &Server{addr: addr, wallet: w, shutdown: 5 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回完整的路由。
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(instrument)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, StatusMessage{Status: "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	if s.auth != nil {
		v1.Use(s.auth.Middleware(auth.MiddlewareConfig{AuditEvent: "wallet_api"}))
	}

	v1.HandleFunc("/wallet", s.handleWalletStatus).Methods(http.MethodGet)
	v1.HandleFunc("/wallet", s.handleCreateWallet).Methods(http.MethodPost)
	v1.HandleFunc("/wallet/load", s.handleLoadWallet).Methods(http.MethodPost)
	v1.HandleFunc("/wallet/qr", s.handleWalletQR).Methods(http.MethodGet)
	v1.HandleFunc("/wallet/balance", s.handleBalance).Methods(http.MethodGet)
	v1.HandleFunc("/wallet/faucet", s.handleFaucet).Methods(http.MethodPost)

	v1.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	v1.HandleFunc("/transactions/sign", s.handleSignTransaction).Methods(http.MethodPost)
	v1.HandleFunc("/transactions/send", s.handleSendTransaction).Methods(http.MethodPost)

	v1.HandleFunc("/commands", s.handleSubmitCommand).Methods(http.MethodPost)
	v1.HandleFunc("/commands", s.handleListCommands).Methods(http.MethodGet)
	v1.HandleFunc("/commands/stats", s.handleCommandStats).Methods(http.MethodGet)
	v1.HandleFunc("/commands/{id}", s.handleCommandDetail).Methods(http.MethodGet)

	v1.HandleFunc("/address-book", s.handleListAliases).Methods(http.MethodGet)
	v1.HandleFunc("/address-book", s.handleAddAlias).Methods(http.MethodPost)

	v1.HandleFunc("/feedback", s.handleFeedback).Methods(http.MethodGet)
	return r
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("HTTP API 已启动", "addr", s.addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// instrument 以路由模板作为标签记录请求指标。
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		name := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				name = tpl
			}
		}
		metrics.ObserveHTTPRequest(name, r.Method, rec.status, time.Since(start))
	})
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
