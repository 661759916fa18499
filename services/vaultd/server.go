package vaultd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"devquestvault/crypto"
	"devquestvault/gateway/middleware"
	"devquestvault/native/vault"
)

const (
	routeGroupVaults = "vaults"
	routeGroupReads  = "reads"
	routeGroupAdmin  = "admin"

	maxBodyBytes = 1 << 20
)

// ServerConfig carries the HTTP-facing settings.
type ServerConfig struct {
	Auth          middleware.AuthConfig
	RateLimit     map[string]middleware.RateLimit
	CORSOrigins   []string
	ExportDir     string
	OperatorScope string
}

// Server exposes the vault service over HTTP.
type Server struct {
	svc     *Service
	cfg     ServerConfig
	logger  *slog.Logger
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	obs     *middleware.Observability
	clock   func() time.Time
}

// NewServer wires the authenticator, limiter and observability middleware
// around svc.
func NewServer(svc *Service, cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OperatorScope == "" {
		cfg.OperatorScope = "vault:operator"
	}
	return &Server{
		svc:     svc,
		cfg:     cfg,
		logger:  logger,
		auth:    middleware.NewAuthenticator(cfg.Auth, logger),
		limiter: middleware.NewRateLimiter(cfg.RateLimit, logger),
		obs: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName: "vaultd",
			Enabled:     true,
		}, logger),
		clock: svc.clock,
	}
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	}))
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.obs.MetricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware(routeGroupReads))
			r.With(s.obs.Middleware("vault.get")).Get("/vaults/{admin}", s.handleGetVault)
			r.With(s.obs.Middleware("vault.balance")).Get("/vaults/{admin}/balance", s.handleCustodyBalance)
			r.With(s.obs.Middleware("vault.allowance")).Get("/vaults/{admin}/allowance/{payee}", s.handleAllowance)
			r.With(s.obs.Middleware("vault.role")).Get("/vaults/{admin}/roles/{id}", s.handleRole)
			r.With(s.obs.Middleware("vault.due")).Get("/vaults/{admin}/due", s.handleDuePayout)
			r.Get("/vaults/{admin}/events", s.handleEvents)
			r.With(s.obs.Middleware("account.balance")).Get("/accounts/{id}/balance", s.handleAccountBalance)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware())
			r.Use(s.limiter.Middleware(routeGroupVaults))
			r.With(s.obs.Middleware("vault.initialize")).Post("/vaults", s.handleInitialize)
			r.With(s.obs.Middleware("vault.deposit")).Post("/vaults/{admin}/deposit", s.handleDeposit)
			r.With(s.obs.Middleware("vault.withdraw")).Post("/vaults/{admin}/withdraw", s.handleWithdraw)
			r.With(s.obs.Middleware("vault.add_payee")).Post("/vaults/{admin}/payees", s.handleAddPayee)
			r.With(s.obs.Middleware("vault.remove_payee")).Delete("/vaults/{admin}/payees/{payee}", s.handleRemovePayee)
			r.With(s.obs.Middleware("vault.set_epoch_limit")).Put("/vaults/{admin}/limits/{payee}", s.handleSetEpochLimit)
			r.With(s.obs.Middleware("vault.schedule_payout")).Post("/vaults/{admin}/schedules", s.handleSchedulePayout)
			r.With(s.obs.Middleware("vault.cancel_payout")).Post("/vaults/{admin}/schedules/cancel", s.handleCancelPayout)
			r.With(s.obs.Middleware("vault.claim_payout")).Post("/vaults/{admin}/claim", s.handleClaimPayout)
			r.With(s.obs.Middleware("vault.close")).Delete("/vaults/{admin}", s.handleClose)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.auth.Middleware(s.cfg.OperatorScope))
		r.Use(s.limiter.Middleware(routeGroupAdmin))
		r.Use(s.obs.Middleware("admin"))
		r.Post("/pause", s.handlePause)
		r.Post("/resume", s.handleResume)
		r.Get("/status", s.handleStatus)
		r.Get("/audit", s.handleAuditList)
		r.Get("/audit/verify", s.handleAuditVerify)
		r.Post("/audit/export", s.handleAuditExport)
		r.Post("/credit", s.handleCredit)
	})
	return otelhttp.NewHandler(r, "vaultd")
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeFailure(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Error: message})
}

// statusFor maps an operation error code to its HTTP status.
func statusFor(code string) int {
	switch code {
	case "UnauthorizedAdmin", "UnauthorizedPayee":
		return http.StatusForbidden
	case "VaultNotFound", "PayeeNotFound", "ScheduleNotFound":
		return http.StatusNotFound
	case "AlreadyInitialized", "PayeeAlreadyExists", "MaxPayeesReached", "MaxSchedulesReached":
		return http.StatusConflict
	case "InvalidPayoutSchedule", "InvalidEpochConfig", "PayoutTimeNotReached",
		"EpochSpendingLimitReached", "ScheduleOverflow":
		return http.StatusUnprocessableEntity
	case "TransferFailed":
		return http.StatusPaymentRequired
	case codeModulePaused:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := outcomeCode(err)
	status := statusFor(code)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("vaultd: request failed", "error", err)
		message = "internal error"
	}
	writeFailure(w, status, code, message)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeFailure(w, http.StatusBadRequest, "BadRequest", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// decodeAmount reads an amountRequest and rejects zero amounts.
func decodeAmount(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return 0, false
	}
	if req.Amount == 0 {
		writeFailure(w, http.StatusBadRequest, "BadRequest", "amount must be positive")
		return 0, false
	}
	return req.Amount, true
}

func identityParam(w http.ResponseWriter, r *http.Request, name string) ([32]byte, bool) {
	id, err := crypto.ParseIdentity(chi.URLParam(r, name))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "BadRequest", fmt.Sprintf("invalid %s: %v", name, err))
		return [32]byte{}, false
	}
	return id, true
}

func identityField(w http.ResponseWriter, name, value string) ([32]byte, bool) {
	id, err := crypto.ParseIdentity(value)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "BadRequest", fmt.Sprintf("invalid %s: %v", name, err))
		return [32]byte{}, false
	}
	return id, true
}

func callerOf(w http.ResponseWriter, r *http.Request) ([32]byte, bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Unauthenticated", "authenticated caller required")
		return [32]byte{}, false
	}
	return caller, true
}

// vaultAndCaller resolves the {admin} path parameter and the authenticated
// caller.
func vaultAndCaller(w http.ResponseWriter, r *http.Request) ([32]byte, [32]byte, bool) {
	caller, ok := callerOf(w, r)
	if !ok {
		return [32]byte{}, [32]byte{}, false
	}
	admin, ok := identityParam(w, r, "admin")
	if !ok {
		return [32]byte{}, [32]byte{}, false
	}
	return admin, caller, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

type payeeRequest struct {
	Payee string `json:"payee"`
}

type epochLimitRequest struct {
	Limit    uint64 `json:"limit"`
	Duration int64  `json:"duration"`
}

type scheduleRequest struct {
	Payee     string `json:"payee"`
	Amount    uint64 `json:"amount"`
	StartTime int64  `json:"start_time"`
	Interval  int64  `json:"interval"`
}

type creditRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	st, err := s.svc.Initialize(r.Context(), caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	balance, err := s.svc.CustodyBalance(caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newVaultView(st, balance.Dec()))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	admin, caller, ok := vaultAndCaller(w, r)
	if !ok {
		return
	}
	amount, ok := decodeAmount(w, r)
	if !ok {
		return
	}
	if err := s.svc.Deposit(r.Context(), admin, caller, amount); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	admin, caller, ok := vaultAndCaller(w, r)
	if !ok {
		return
	}
	amount, ok := decodeAmount(w, r)
	if !ok {
		return
	}
	if err := s.svc.Withdraw(r.Context(), admin, caller, amount); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddPayee(w http.ResponseWriter, r *http.Request) {
	admin, caller, ok := vaultAndCaller(w, r)
	if !ok {
		return
	}
	var req payeeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	payee, ok := identityField(w, "payee", req.Payee)
	if !ok {
		return
	}
	if err := s.svc.AddPayee(r.Context(), admin, caller, payee); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemovePayee(w http.ResponseWriter, r *http.Request) {
	admin, caller, ok := vaultAndCaller(w, r)
	if !ok {
		return
	}
	payee, ok := identityParam(w, r, "payee")
	if !ok {
		return
	}
	if err := s.svc.RemovePayee(r.Context(), admin, caller, payee); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetEpochLimit(w http.ResponseWriter, r *http.Request) {
	admin, caller, ok := vaultAndCaller(w, r)
	if !ok {
		return
	}
	payee, ok := identityParam(w, r, "payee")
	if !ok {
		return
	}
	var req epochLimitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.svc.SetEpochLimit(r.Context(), admin, caller, payee, req.Limit, req.Duration); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSchedulePayout(w http.ResponseWriter, r *http.Request) {
	admin, caller, ok := vaultAndCaller(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	payee, ok := identityField(w, "payee", req.Payee)
	if !ok {
		return
	}
	if err := s.svc.SchedulePayout(r.Context(), admin, caller, payee, req.Amount, req.StartTime, req.Interval); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleCancelPayout(w http.ResponseWriter, r *http.Request) {
	admin, caller, ok := vaultAndCaller(w, r)
	if !ok {
		return
	}
	var req payeeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	payee, ok := identityField(w, "payee", req.Payee)
	if !ok {
		return
	}
	if err := s.svc.CancelPayout(r.Context(), admin, caller, payee); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClaimPayout(w http.ResponseWriter, r *http.Request) {
	admin, caller, ok := vaultAndCaller(w, r)
	if !ok {
		return
	}
	paid, err := s.svc.ClaimPayout(r.Context(), admin, caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"amount": strconv.FormatUint(paid, 10)})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	admin, caller, ok := vaultAndCaller(w, r)
	if !ok {
		return
	}
	swept, err := s.svc.Close(r.Context(), admin, caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"swept": swept.Dec()})
}

func (s *Server) handleGetVault(w http.ResponseWriter, r *http.Request) {
	admin, ok := identityParam(w, r, "admin")
	if !ok {
		return
	}
	st, err := s.svc.Vault(admin)
	if err != nil {
		s.writeError(w, err)
		return
	}
	balance, err := s.svc.CustodyBalance(admin)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newVaultView(st, balance.Dec()))
}

func (s *Server) handleCustodyBalance(w http.ResponseWriter, r *http.Request) {
	admin, ok := identityParam(w, r, "admin")
	if !ok {
		return
	}
	balance, err := s.svc.CustodyBalance(admin)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceView{
		Account: identity(custodyOf(admin)),
		Balance: balance.Dec(),
	})
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	admin, ok := identityParam(w, r, "admin")
	if !ok {
		return
	}
	payee, ok := identityParam(w, r, "payee")
	if !ok {
		return
	}
	allowance, err := s.svc.RemainingAllowance(admin, payee)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAllowanceView(payee, allowance))
}

func (s *Server) handleRole(w http.ResponseWriter, r *http.Request) {
	admin, ok := identityParam(w, r, "admin")
	if !ok {
		return
	}
	id, ok := identityParam(w, r, "id")
	if !ok {
		return
	}
	role, err := s.svc.Role(admin, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"identity": identity(id), "role": role.String()})
}

func (s *Server) handleDuePayout(w http.ResponseWriter, r *http.Request) {
	admin, ok := identityParam(w, r, "admin")
	if !ok {
		return
	}
	due, err := s.svc.DuePayout(admin)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dueView{
		Index:    due.Index,
		Due:      due.Due,
		Schedule: newScheduleView(due.Schedule),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	admin, ok := identityParam(w, r, "admin")
	if !ok {
		return
	}
	serveEventStream(w, r, s.svc.Stream(), s.cfg.CORSOrigins, identity(admin), s.logger)
}

func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := identityParam(w, r, "id")
	if !ok {
		return
	}
	balance, err := s.svc.AccountBalance(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceView{Account: identity(id), Balance: balance.Dec()})
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.svc.Pauses().Pause(vault.ModuleName)
	s.logger.Warn("vaultd: module paused", "module", vault.ModuleName)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.svc.Pauses().Resume(vault.ModuleName)
	s.logger.Info("vaultd: module resumed", "module", vault.ModuleName)
	w.WriteHeader(http.StatusNoContent)
}

type statusResponse struct {
	Paused      []PauseStatus `json:"paused"`
	Subscribers int           `json:"subscribers"`
	AuditLog    bool          `json:"audit_log"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Paused:      s.svc.Pauses().Snapshot(),
		Subscribers: s.svc.Stream().Subscribers(),
		AuditLog:    s.svc.Audit() != nil,
	})
}

func auditFilterFrom(r *http.Request) (AuditFilter, error) {
	query := r.URL.Query()
	filter := AuditFilter{Vault: strings.TrimSpace(query.Get("vault"))}
	if raw := strings.TrimSpace(query.Get("after")); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid after: %w", err)
		}
		filter.AfterSeq = after
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, fmt.Errorf("invalid limit %q", raw)
		}
		filter.Limit = limit
	}
	return filter, nil
}

func (s *Server) auditOrUnavailable(w http.ResponseWriter) (*AuditLog, bool) {
	audit := s.svc.Audit()
	if audit == nil {
		writeFailure(w, http.StatusServiceUnavailable, "AuditDisabled", "audit trail not configured")
		return nil, false
	}
	return audit, true
}

func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	audit, ok := s.auditOrUnavailable(w)
	if !ok {
		return
	}
	filter, err := auditFilterFrom(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	if filter.Limit == 0 {
		filter.Limit = 100
	}
	records, err := audit.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

type verifyResponse struct {
	Records int    `json:"records"`
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleAuditVerify(w http.ResponseWriter, r *http.Request) {
	audit, ok := s.auditOrUnavailable(w)
	if !ok {
		return
	}
	checked, err := audit.VerifyChain(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, verifyResponse{Records: checked, Valid: true})
	case errors.Is(err, ErrAuditChainBroken):
		writeJSON(w, http.StatusConflict, verifyResponse{Records: checked, Valid: false, Error: err.Error()})
	default:
		s.writeError(w, err)
	}
}

func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	audit, ok := s.auditOrUnavailable(w)
	if !ok {
		return
	}
	filter, err := auditFilterFrom(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	result, err := ExportAudit(r.Context(), audit, filter, s.cfg.ExportDir, s.clock())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("vaultd: audit exported", "path", result.Path, "rows", result.Rows)
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	operator, ok := callerOf(w, r)
	if !ok {
		return
	}
	var req creditRequest
	if !decodeBody(w, r, &req) {
		return
	}
	account, ok := identityField(w, "account", req.Account)
	if !ok {
		return
	}
	if err := s.svc.Credit(r.Context(), operator, account, req.Amount); err != nil {
		s.writeError(w, err)
		return
	}
	balance, err := s.svc.AccountBalance(account)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceView{Account: identity(account), Balance: balance.Dec()})
}
