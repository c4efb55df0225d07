// Package gateway implements the gateway's HTTP surface (spec.md §6):
// POST /validate, POST /<analyzer>, and GET /health. It composes C1-C5
// (normalizer -> router -> executor -> aggregator -> sanitizer) behind a
// gofiber/fiber/v2 app, the same HTTP framework used elsewhere in this
// codebase's sibling services.
package gateway

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"moderation-gateway/internal/aggregator"
	"moderation-gateway/internal/breaker"
	"moderation-gateway/internal/config"
	"moderation-gateway/internal/executor"
	"moderation-gateway/internal/galerr"
	"moderation-gateway/internal/logger"
	"moderation-gateway/internal/metrics"
	"moderation-gateway/internal/normalizer"
	"moderation-gateway/internal/router"
	"moderation-gateway/internal/sanitizer"
	"moderation-gateway/internal/verdict"
)

// Server holds the gateway's wired dependencies and builds the fiber app.
type Server struct {
	cfg      *config.Config
	exec     *executor.Executor
	breakers *breaker.Registry
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// New constructs a Server ready to have its fiber app built via App().
func New(cfg *config.Config, exec *executor.Executor, breakers *breaker.Registry, m *metrics.Metrics, log *logger.Logger) *Server {
	return &Server{cfg: cfg, exec: exec, breakers: breakers, metrics: m, log: log}
}

// App builds the fiber application exposing the gateway's public endpoints.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "moderation-gateway",
		DisableStartupMessage: true,
	})

	app.Use(func(c *fiber.Ctx) error {
		requestID := uuid.NewString()
		c.Locals("request_id", requestID)
		c.Set("X-Request-ID", requestID)
		return c.Next()
	})

	app.Get("/health", s.handleHealth)
	app.Post("/validate", s.handleValidate(""))
	for _, name := range config.AllAnalyzers {
		app.Post("/"+string(name), s.handleValidate(name))
	}

	return app
}

// handleValidate returns the POST /validate (forceAnalyzer == "") or
// POST /<analyzer> (forceAnalyzer set) handler: C1 -> C2 -> C4 -> C5.
func (s *Server) handleValidate(forceAnalyzer config.AnalyzerName) fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID, _ := c.Locals("request_id").(string)
		reqLog := s.log.WithRequestID(requestID)

		apiKey := c.Get("X-API-Key")
		req, err := normalizer.Normalize(apiKey, c.Body(), s.cfg, forceAnalyzer)
		if err != nil {
			return s.respondError(c, reqLog, err)
		}

		plan := router.Route(req)
		reqLog.Debugf("route_selected", "analyzers=%v action=%s", plan.Analyzers, plan.ActionOnFail)

		verdicts := s.exec.Execute(c.Context(), plan, req)
		s.syncBreakerGauges()

		agg := aggregator.Aggregate(verdicts)
		cleanText := sanitizer.Sanitize(agg.Status, req.Text, req.ActionOnFail, verdicts, s.cfg.MaskToken)

		s.metrics.RecordRequest(string(agg.Status))
		reqLog.Infof("request_complete", "status=%s blocked=%v", agg.Status, agg.BlockedCategories)

		if !req.ReturnSpans {
			stripSpans(verdicts)
		}

		return c.Status(fiber.StatusOK).JSON(buildResponse(agg, cleanText, verdicts))
	}
}

// handleHealth reports liveness plus a breaker-state snapshot per analyzer
// (spec.md §6 GET /health).
func (s *Server) handleHealth(c *fiber.Ctx) error {
	snap := s.breakers.Snapshot()
	breakers := make(map[string]breaker.Snapshot, len(snap))
	for name, b := range snap {
		breakers[string(name)] = b
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":   "ok",
		"breakers": breakers,
	})
}

// respondError maps a *galerr.Error onto its spec.md §7 status code.
func (s *Server) respondError(c *fiber.Ctx, log *logger.Logger, err error) error {
	ge, ok := err.(*galerr.Error)
	if !ok {
		log.Errorf("unexpected_error", "%v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody{Status: "error", Reason: "internal error"})
	}
	log.Warnf("rejected", "%s: %s", ge.Kind, ge.Reason)
	if ge.Kind == galerr.Unauthenticated {
		c.Status(ge.Kind.StatusCode())
		return nil
	}
	return c.Status(ge.Kind.StatusCode()).JSON(errorBody{Status: string(ge.Kind), Reason: ge.Reason})
}

// syncBreakerGauges pushes the current breaker states into Prometheus; called
// once per request rather than on a ticker, since nothing else mutates
// breaker state between requests.
func (s *Server) syncBreakerGauges() {
	for name, snap := range s.breakers.Snapshot() {
		s.metrics.SetBreakerState(string(name), stateNameToNumeric(snap.State))
	}
}

func stateNameToNumeric(state string) int {
	switch state {
	case "half_open":
		return int(breaker.HalfOpen)
	case "open":
		return int(breaker.Open)
	default:
		return int(breaker.Closed)
	}
}

// stripSpans clears per-verdict span detail when the caller did not request
// it, keeping the response body small (spec.md §3 return_spans).
func stripSpans(verdicts map[config.AnalyzerName]verdict.Verdict) {
	for name, v := range verdicts {
		v.Spans = nil
		verdicts[name] = v
	}
}
