package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/digkill/TGSongBot/internal/apperrs"
	"github.com/digkill/TGSongBot/internal/config"
	"github.com/digkill/TGSongBot/internal/models"
	"github.com/digkill/TGSongBot/internal/service"
)

const maxWebhookBody = 64 << 10

// Pinger reports database reachability for /healthz.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	cfg      config.Config
	log      *slog.Logger
	checkout *service.CheckoutService
	webhook  *service.WebhookService
	ledger   *service.LedgerService
	db       Pinger
	router   *chi.Mux
}

func NewServer(cfg config.Config, log *slog.Logger, checkout *service.CheckoutService, webhook *service.WebhookService, ledger *service.LedgerService, db Pinger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:      cfg,
		log:      log,
		checkout: checkout,
		webhook:  webhook,
		ledger:   ledger,
		db:       db,
		router:   r,
	}

	r.Get("/healthz", s.handleHealth)
	r.Post("/checkout/create", s.handleCreateCheckout)
	r.Get("/checkout/success", s.handleCheckoutSuccess)
	r.Get("/checkout/cancel", s.handleCheckoutCancel)
	r.Post("/webhook", s.handleWebhook)
	r.Post("/stripe/webhook", s.handleWebhook)

	if cfg.AdminPassword != "" {
		r.Group(func(protected chi.Router) {
			protected.Use(s.basicAuthMiddleware())
			protected.Get("/admin/accounts/{userID}", s.handleGetAccount)
		})
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.cfg.StripeTimeout + 15*time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("http shutdown error", "err", err)
		}
	}()

	s.log.Info("billing server listening", "addr", s.cfg.ListenAddr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

type createCheckoutRequest struct {
	UserID         int64  `json:"user_id"`
	Pack           string `json:"pack"`
	PriceID        string `json:"price_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req createCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperrs.Invalid("invalid json"))
		return
	}

	res, err := s.checkout.Create(r.Context(), service.CreateCheckoutInput{
		UserID:         req.UserID,
		Pack:           req.Pack,
		PriceID:        req.PriceID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, apperrs.Invalid("payload too large"))
			return
		}
		s.writeError(w, r, apperrs.Invalid("read body error"))
		return
	}

	res, err := s.webhook.Handle(r.Context(), body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		s.log.Error("health check failed", "err", err)
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type accountResponse struct {
	Account   *models.Account   `json:"account"`
	Purchases []models.Purchase `json:"purchases"`
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(chi.URLParam(r, "userID"))
	if err != nil || userID <= 0 {
		s.writeError(w, r, apperrs.Invalid("invalid user id"))
		return
	}
	account, purchases, err := s.ledger.Account(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if account == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{OK: false, Error: "account not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, accountResponse{Account: account, Purchases: purchases})
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != s.cfg.AdminUsername || pass != s.cfg.AdminPassword {
				w.Header().Set("WWW-Authenticate", `Basic realm="songbot"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"kind", apperrs.KindOf(err),
			"err", err,
		)
	}
	s.writeJSON(w, status, errorResponse{OK: false, Error: apperrs.PublicMessage(err)})
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}
