package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elijificent/experimentation/internal/service/auth"
	"github.com/elijificent/experimentation/internal/service/dashboard"
	"github.com/elijificent/experimentation/internal/service/experiment"
	"github.com/elijificent/experimentation/internal/service/funnel"
	"github.com/elijificent/experimentation/internal/service/participant"
	"github.com/elijificent/experimentation/internal/service/variant"
	"github.com/elijificent/experimentation/internal/ws"

	"github.com/elijificent/experimentation/internal/domain"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	auth         auth.Service
	dashboard    dashboard.Service
	experiments  experiment.Service
	participants participant.Service
	funnel       funnel.Service
	hub          *ws.Hub
	upgrader     websocket.Upgrader
	limiter      RateLimiter
	dbHealth     func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	admissionsTotal    *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitSignup    = 5
	rateLimitLogin     = 12
	rateLimitUserWrite = 60
	rateLimitUserRead  = 120
	rateLimitServing   = 600
	rateLimitWebsocket = 30
	healthCheckTimeout = 2 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, dashSvc dashboard.Service, expSvc experiment.Service, partSvc participant.Service, funnelSvc funnel.Service, hub *ws.Hub, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:          http.NewServeMux(),
		logger:       logger,
		auth:         authSvc,
		dashboard:    dashSvc,
		experiments:  expSvc,
		participants: partSvc,
		funnel:       funnelSvc,
		hub:          hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  limiter,
		dbHealth: dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/auth/signup", r.audit("/auth/signup", r.withRateLimit("/auth/signup", rateLimitSignup, rateWindowDefault, rateLimitKeyIP, r.handleSignup)))
	r.mux.HandleFunc("/auth/login", r.audit("/auth/login", r.withRateLimit("/auth/login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/experiments", r.audit("/experiments", r.handlerAuthRate("/experiments", rateLimitUserWrite, rateWindowDefault, r.handleExperiments)))
	r.mux.HandleFunc("/experiments/", r.audit("/experiments/", r.handleExperimentSubroutes))
	r.mux.HandleFunc("/participants", r.audit("/participants", r.handlerAuthRate("/participants", rateLimitUserWrite, rateWindowDefault, r.handleParticipants)))
	r.mux.HandleFunc("/participants/", r.audit("/participants/", r.handlerAuthRate("/participants/", rateLimitUserWrite, rateWindowDefault, r.handleParticipantSubroutes)))
	r.mux.HandleFunc("/funnel/events", r.audit("/funnel/events", r.withRateLimit("/funnel/events", rateLimitServing, rateWindowDefault, rateLimitKeyIP, r.handleFunnelEvents)))
	r.mux.HandleFunc("/ws/assignments", r.audit("/ws/assignments", r.handlerAuthRate("/ws/assignments", rateLimitWebsocket, rateWindowRealtime, r.handleAssignmentsWS)))
}

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, err := r.auth.CreateUser(req.Context(), payload.Username, payload.Password); err != nil {
		switch {
		case errors.Is(err, auth.ErrUsernameTaken):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			r.internalError(w, "signup failed", err)
		}
		return
	}
	user, tokens, err := r.auth.Login(req.Context(), payload.Username, payload.Password)
	if err != nil {
		r.internalError(w, "post-signup login failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user": map[string]any{
			"id":       user.ID,
			"username": user.Username,
		},
		"tokens": tokenPayload(tokens),
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, tokens, err := r.auth.Login(req.Context(), payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		r.internalError(w, "login failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":       user.ID,
			"username": user.Username,
		},
		"tokens": tokenPayload(tokens),
	})
}

func tokenPayload(tokens auth.TokenPair) map[string]any {
	return map[string]any{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_in":    int(tokens.ExpiresIn.Seconds()),
	}
}

func (r *Router) handleExperiments(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		experiments, err := r.dashboard.ListExperiments(req.Context())
		if err != nil {
			r.internalError(w, "list experiments failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"experiments": experiments})
	case http.MethodPost:
		var payload struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(payload.Name) == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		exp, err := r.dashboard.CreateExperiment(req.Context(), payload.Name, payload.Description)
		if err != nil {
			r.internalError(w, "create experiment failed", err)
			return
		}
		writeJSON(w, http.StatusCreated, exp)
	default:
		r.methodNotAllowed(w)
	}
}

// handleExperimentSubroutes dispatches /experiments/{id}[/verb]. The
// participant-facing variant resolution stays unauthenticated; everything
// else is admin surface behind bearer auth.
func (r *Router) handleExperimentSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/experiments/")
	if trimmed == "" {
		r.notFound(w)
		return
	}
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	experimentID := parts[0]

	if len(parts) == 2 && parts[1] == "variant" {
		r.withRateLimit("/experiments/{id}/variant", rateLimitServing, rateWindowDefault, rateLimitKeyIP, func(w http.ResponseWriter, req *http.Request) {
			r.handleVariantResolution(w, req, experimentID)
		})(w, req)
		return
	}

	r.handlerAuthRate("/experiments/", rateLimitUserWrite, rateWindowDefault, func(w http.ResponseWriter, req *http.Request) {
		switch {
		case len(parts) == 1:
			r.handleExperiment(w, req, experimentID)
		case len(parts) == 2 && parts[1] == "summary":
			r.handleSummary(w, req, experimentID)
		case len(parts) == 2 && parts[1] == "drift":
			r.handleDrift(w, req, experimentID)
		case len(parts) == 2 && parts[1] == "variants":
			r.handleCreateVariant(w, req, experimentID)
		case len(parts) == 2 && parts[1] == "allocations":
			r.handleAllocations(w, req, experimentID)
		case len(parts) == 2 && parts[1] == "descriptions":
			r.handleDescriptions(w, req, experimentID)
		case len(parts) == 2 && isLifecycleVerb(parts[1]):
			r.handleLifecycle(w, req, experimentID, parts[1])
		default:
			r.notFound(w)
		}
	})(w, req)
}

func isLifecycleVerb(verb string) bool {
	switch verb {
	case "start", "pause", "stop", "complete":
		return true
	}
	return false
}

func (r *Router) handleExperiment(w http.ResponseWriter, req *http.Request, experimentID string) {
	switch req.Method {
	case http.MethodGet:
		exp, err := r.experiments.Get(req.Context(), experimentID)
		if err != nil {
			r.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, exp)
	case http.MethodDelete:
		deleted, err := r.dashboard.DeleteExperiment(req.Context(), experimentID)
		if err != nil {
			r.internalError(w, "delete experiment failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request, experimentID string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	summary, err := r.dashboard.GetExperimentSummary(req.Context(), experimentID)
	if err != nil {
		r.internalError(w, "summary failed", err)
		return
	}
	payload := map[string]any{
		"experiment":      summary.Experiment,
		"variants":        summary.Variants,
		"observed_counts": summary.ObservedCounts,
		"total_weight":    summary.TotalWeight,
	}
	writeJSON(w, http.StatusOK, payload)
}

func (r *Router) handleDrift(w http.ResponseWriter, req *http.Request, experimentID string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	expected, err := r.experiments.ExpectedAllocations(req.Context(), experimentID)
	if err != nil {
		r.writeServiceError(w, err)
		return
	}
	observed, err := r.experiments.ObservedAllocations(req.Context(), experimentID)
	if err != nil {
		r.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"expected": expected,
		"observed": observed,
	})
}

func (r *Router) handleCreateVariant(w http.ResponseWriter, req *http.Request, experimentID string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Allocation  float64 `json:"allocation"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	v, err := r.dashboard.CreateVariant(req.Context(), experimentID, payload.Name, payload.Description, payload.Allocation)
	if err != nil {
		if errors.Is(err, variant.ErrNegativeAllocation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		r.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (r *Router) handleAllocations(w http.ResponseWriter, req *http.Request, experimentID string) {
	if req.Method != http.MethodPut {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Weights []float64 `json:"weights"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	applied, err := r.dashboard.UpdateVariantAllocations(req.Context(), experimentID, payload.Weights)
	if err != nil {
		if errors.Is(err, variant.ErrNegativeAllocation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		r.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": applied})
}

func (r *Router) handleDescriptions(w http.ResponseWriter, req *http.Request, experimentID string) {
	if req.Method != http.MethodPut {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Descriptions []string `json:"descriptions"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	applied, err := r.dashboard.UpdateVariantDescriptions(req.Context(), experimentID, payload.Descriptions)
	if err != nil {
		r.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": applied})
}

func (r *Router) handleLifecycle(w http.ResponseWriter, req *http.Request, experimentID, verb string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var (
		status domain.Status
		err    error
	)
	switch verb {
	case "start":
		status, err = r.dashboard.StartExperiment(req.Context(), experimentID)
	case "pause":
		status, err = r.dashboard.PauseExperiment(req.Context(), experimentID)
	case "stop":
		status, err = r.dashboard.StopExperiment(req.Context(), experimentID)
	case "complete":
		status, err = r.dashboard.CompleteExperiment(req.Context(), experimentID)
	}
	if err != nil {
		r.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status.String()})
}

// handleVariantResolution serves the participant-facing variant lookup,
// admitting the participant on first contact with a running experiment.
func (r *Router) handleVariantResolution(w http.ResponseWriter, req *http.Request, experimentID string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	participantID := strings.TrimSpace(req.URL.Query().Get("participant_id"))
	if participantID == "" {
		writeError(w, http.StatusBadRequest, "participant_id query parameter required")
		return
	}
	name, err := r.dashboard.GetVariantName(req.Context(), experimentID, participantID)
	if err != nil {
		r.recordResolution("error")
		r.writeServiceError(w, err)
		return
	}
	if name == dashboard.DefaultVariantName {
		r.recordResolution("default")
	} else {
		r.recordResolution("variant")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"experiment_id":  experimentID,
		"participant_id": participantID,
		"variant":        name,
	})
}

func (r *Router) handleParticipants(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		ParticipantID string `json:"participant_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	created, err := r.participants.Create(req.Context(), payload.ParticipantID)
	if err != nil {
		if errors.Is(err, participant.ErrExists) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		r.internalError(w, "create participant failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (r *Router) handleParticipantSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/participants/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) != 2 || parts[1] != "link" {
		r.notFound(w)
		return
	}
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	link, err := r.participants.LinkToUser(req.Context(), parts[0], payload.UserID)
	if err != nil {
		switch {
		case errors.Is(err, participant.ErrAlreadyLinked):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, participant.ErrMissingIDs):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			r.internalError(w, "link participant failed", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

func (r *Router) handleFunnelEvents(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		SessionID  string `json:"session_id"`
		Step       string `json:"step"`
		OccurredAt string `json:"occurred_at"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(payload.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	step, err := domain.ParseFunnelStep(payload.Step)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown funnel step")
		return
	}
	var at time.Time
	if payload.OccurredAt != "" {
		at, err = time.Parse(time.RFC3339Nano, payload.OccurredAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "occurred_at must be RFC3339")
			return
		}
	}
	event, err := r.funnel.Record(req.Context(), payload.SessionID, step, at)
	if err != nil {
		r.internalError(w, "record funnel event failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (r *Router) handleAssignmentsWS(w http.ResponseWriter, req *http.Request) {
	if _, ok := authInfoFromContext(req.Context()); !ok {
		r.logger.Error("auth context missing for assignments websocket", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	experimentID := req.URL.Query().Get("experiment_id")
	if experimentID == "" {
		writeError(w, http.StatusBadRequest, "experiment_id query parameter required")
		return
	}
	if r.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "assignment stream disabled")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(experimentID, client)
	go func() {
		defer func() {
			r.hub.Unregister(experimentID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// writeServiceError maps domain sentinels onto HTTP statuses.
func (r *Router) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, experiment.ErrNotFound), errors.Is(err, variant.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, experiment.ErrEnded),
		errors.Is(err, experiment.ErrNoVariants),
		errors.Is(err, experiment.ErrNoAllocation):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, experiment.ErrInvalidEndState):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		r.internalError(w, "request failed", err)
	}
}

func (r *Router) internalError(w http.ResponseWriter, msg string, err error) {
	r.logger.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
