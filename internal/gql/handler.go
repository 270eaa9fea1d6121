package gql

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/parser"
	gqlhandler "github.com/graphql-go/handler"

	apimw "github.com/avolkov/docgraph/internal/api/middleware"
	"github.com/avolkov/docgraph/internal/apperrors"
	"github.com/avolkov/docgraph/internal/authzcache"
	"github.com/avolkov/docgraph/internal/config"
	"github.com/avolkov/docgraph/internal/dataloader"
	"github.com/avolkov/docgraph/internal/dbservice"
	"github.com/avolkov/docgraph/internal/writequeue"
	"github.com/avolkov/docgraph/pkg/metrics"
)

// gqlRequest is the standard POST /graphql request body.
type gqlRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// Handler is the HTTP adapter in front of the GraphQL schema: it enforces
// depth/complexity/timeout gates ahead of execution, serves introspection
// only outside production, and consults the response cache before
// dispatching to graphql.Do.
type Handler struct {
	schema   graphql.Schema
	db       dbservice.Service
	queue    *writequeue.Queue
	authz    *authzcache.Cache
	subs     *SubscriptionBus
	cache    *ResponseCache
	cfg      config.GraphQLConfig
	prod     bool
	logger   *slog.Logger
	gm       *metrics.GraphQLMetrics
}

// NewHandler wires the shared dependencies every request's RequestContext
// needs. db/queue/authz/subs are shared across requests; each request
// gets its own Notes DataLoader so batching stays request-scoped.
func NewHandler(schema graphql.Schema, db dbservice.Service, queue *writequeue.Queue, authz *authzcache.Cache, subs *SubscriptionBus, cfg config.GraphQLConfig, isProd bool, logger *slog.Logger, reg *metrics.Registry) *Handler {
	return &Handler{
		schema: schema,
		db:     db,
		queue:  queue,
		authz:  authz,
		subs:   subs,
		cache:  NewResponseCache(1000, cfg.ResponseCacheTTL, reg.Cache()),
		cfg:    cfg,
		prod:   isProd,
		logger: logger.With("component", "gql_handler"),
		gm:     reg.GraphQL(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		if h.prod {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
	}

	var req gqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.InvalidInput("malformed request body"))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		h.writeError(w, apperrors.InvalidInput("query is required"))
		return
	}
	if isIntrospectionQuery(req.Query) && h.prod {
		h.writeError(w, apperrors.Forbidden("introspection is disabled in this environment"))
		return
	}

	doc, err := parser.Parse(parser.ParseParams{Source: req.Query})
	if err != nil {
		h.writeError(w, apperrors.InvalidInput("query could not be parsed"))
		return
	}
	if limitErr := CheckLimits(doc, h.depthLimit(), h.complexityLimit()); limitErr != nil {
		var le *LimitError
		if ok := errorsAsLimitError(limitErr, &le); ok {
			h.gm.RejectedTotal.WithLabelValues(le.Code).Inc()
		}
		h.writeGraphQLError(w, limitErr)
		return
	}

	subject := bearerSubject(r)
	traceID := apimw.GetRequestID(r.Context())

	rc := &RequestContext{
		DB:            h.db,
		Queue:         h.queue,
		Authz:         h.authz,
		Subscriptions: h.subs,
		TraceID:       traceID,
		Notes:         dataloader.New(batchReadNotes(h.db), dataloader.Config{Wait: h.cfg.DataloaderWait, MaxBatch: h.cfg.DataloaderBatchMax}),
	}
	if subject != "" {
		rc.Session = &Session{Subject: subject}
	}

	cacheKey := Key(req.Query, req.Variables, subject)
	isQuery := !strings.Contains(req.Query, "mutation")
	if isQuery {
		if cached, ok := h.cache.Get(r.Context(), cacheKey); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			_, _ = w.Write(cached)
			return
		}
	}

	timeout := h.cfg.OperationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	ctx = WithRequestContext(ctx, rc)

	start := time.Now()
	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        ctx,
	})
	elapsed := time.Since(start)

	outcome := "success"
	if ctx.Err() == context.DeadlineExceeded {
		result = timeoutResult()
		outcome = "timeout"
	} else if len(result.Errors) > 0 {
		outcome = "error"
	}
	h.gm.RequestsTotal.WithLabelValues(operationType(req.Query), outcome).Inc()
	h.gm.RequestDurationSecs.WithLabelValues(operationType(req.Query)).Observe(elapsed.Seconds())

	body, err := json.Marshal(result)
	if err != nil {
		h.writeError(w, apperrors.Internal(err))
		return
	}

	if isQuery && outcome == "success" {
		h.cache.Set(cacheKey, body)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	_, _ = w.Write(body)
}

func (h *Handler) depthLimit() int {
	if h.cfg.MaxDepth > 0 {
		return h.cfg.MaxDepth
	}
	return 15
}

func (h *Handler) complexityLimit() int {
	if h.cfg.MaxComplexity > 0 {
		return h.cfg.MaxComplexity
	}
	return 1000
}

func (h *Handler) writeError(w http.ResponseWriter, err *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Kind.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"errors": []map[string]interface{}{
			{"message": err.ClientMessage(), "extensions": map[string]string{"code": err.Kind.String()}},
		},
	})
}

func (h *Handler) writeGraphQLError(w http.ResponseWriter, err error) {
	var le *LimitError
	code := "BAD_REQUEST"
	if ok := errorsAsLimitError(err, &le); ok {
		code = le.Code
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"errors": []map[string]interface{}{
			{"message": err.Error(), "extensions": map[string]string{"code": code}},
		},
	})
}

func errorsAsLimitError(err error, target **LimitError) bool {
	if le, ok := err.(*LimitError); ok {
		*target = le
		return true
	}
	return false
}

func timeoutResult() *graphql.Result {
	return &graphql.Result{
		Errors: []gqlerrors.FormattedError{
			{Message: "operation timed out", Extensions: map[string]interface{}{"code": "REQUEST_TIMEOUT"}},
		},
	}
}

func isIntrospectionQuery(query string) bool {
	return strings.Contains(query, "__schema") || strings.Contains(query, "__type")
}

func operationType(query string) string {
	trimmed := strings.TrimSpace(query)
	switch {
	case strings.HasPrefix(trimmed, "mutation"):
		return "mutation"
	case strings.HasPrefix(trimmed, "subscription"):
		return "subscription"
	default:
		return "query"
	}
}

func bearerSubject(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimPrefix(auth, prefix)
}

// NewPlaygroundHandler serves the interactive GraphiQL explorer against
// schema. Callers must mount this only behind a non-production route
// guard; depth/complexity/timeout gating does not apply to requests
// issued from it since it talks to graphql-go/handler's own executor
// rather than this package's Handler.
func NewPlaygroundHandler(schema graphql.Schema) http.Handler {
	return gqlhandler.New(&gqlhandler.Config{
		Schema:     &schema,
		Pretty:     true,
		GraphiQL:   true,
		Playground: false,
	})
}
