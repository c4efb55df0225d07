// Package normalizer implements the gateway's Request Normalizer (C1,
// spec.md §4.1): authentication, JSON parsing, and input validation. It
// performs no I/O beyond parsing the already-read request body and is
// pure/deterministic given its input.
package normalizer

import (
	"crypto/subtle"
	"encoding/json"
	"strings"

	"moderation-gateway/internal/config"
	"moderation-gateway/internal/galerr"
)

// ActionOnFail is the mitigation action the sanitizer applies when a
// request's overall status is "fixed".
type ActionOnFail string

// The enumerated action_on_fail values (spec.md §3).
const (
	ActionPass    ActionOnFail = "pass"
	ActionMask    ActionOnFail = "mask"
	ActionFilter  ActionOnFail = "filter"
	ActionRefrain ActionOnFail = "refrain"
	ActionReask   ActionOnFail = "reask"
)

func validAction(a ActionOnFail) bool {
	switch a {
	case ActionPass, ActionMask, ActionFilter, ActionRefrain, ActionReask:
		return true
	default:
		return false
	}
}

// rawRequest mirrors the inbound JSON body. Unknown top-level fields are
// ignored by encoding/json's default decoding behaviour (forward
// compatibility, spec.md §3).
type rawRequest struct {
	Text         string          `json:"text"`
	Checks       map[string]bool `json:"checks"`
	ActionOnFail *string         `json:"action_on_fail"`
	ReturnSpans  bool            `json:"return_spans"`
	Entities     []string        `json:"entities"`
}

// Request is the normalized, validated inbound request (spec.md §3).
type Request struct {
	Text         string
	Checks       map[config.AnalyzerName]bool
	ActionOnFail ActionOnFail
	ReturnSpans  bool
	Entities     []string
}

// Normalize validates an API key against the configured allow-list (using a
// constant-time comparison, spec.md §4.1) and parses/validates the request
// body. It performs no I/O: body must already be fully read into memory.
func Normalize(apiKey string, body []byte, cfg *config.Config, forceAnalyzer config.AnalyzerName) (*Request, error) {
	if !authenticate(apiKey, cfg.GatewayAPIKeys) {
		return nil, galerr.New(galerr.Unauthenticated, "missing or unrecognized API key")
	}

	var raw rawRequest
	if len(body) == 0 {
		return nil, galerr.New(galerr.InvalidInput, "empty request body")
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, galerr.Wrap(galerr.InvalidInput, "malformed JSON body", err)
	}

	text := raw.Text
	if strings.TrimSpace(text) == "" {
		return nil, galerr.New(galerr.InvalidInput, "text is missing or empty")
	}
	if cfg.MaxTextBytes > 0 && len(text) > cfg.MaxTextBytes {
		return nil, galerr.New(galerr.InvalidInput, "text exceeds configured byte cap")
	}

	action := ActionOnFail(ActionFilter)
	if raw.ActionOnFail != nil {
		action = ActionOnFail(*raw.ActionOnFail)
		if !validAction(action) {
			return nil, galerr.New(galerr.InvalidInput, "unrecognized action_on_fail")
		}
	}

	checks := make(map[config.AnalyzerName]bool, len(raw.Checks))
	for k, v := range raw.Checks {
		checks[config.AnalyzerName(k)] = v
	}

	// Single-analyzer endpoints (POST /<analyzer>) force checks = {name: true}
	// and every other analyzer to false, overriding whatever the body sent.
	if forceAnalyzer != "" {
		checks = make(map[config.AnalyzerName]bool, len(config.AllAnalyzers))
		for _, name := range config.AllAnalyzers {
			checks[name] = name == forceAnalyzer
		}
	}

	return &Request{
		Text:         text,
		Checks:       checks,
		ActionOnFail: action,
		ReturnSpans:  raw.ReturnSpans,
		Entities:     raw.Entities,
	}, nil
}

// authenticate reports whether key matches one of the configured allow-list
// entries, comparing in constant time so the response doesn't leak timing
// information about which prefix of a candidate key was wrong.
func authenticate(key string, allowed []string) bool {
	if key == "" {
		return false
	}
	keyBytes := []byte(key)
	for _, candidate := range allowed {
		if subtle.ConstantTimeCompare(keyBytes, []byte(candidate)) == 1 {
			return true
		}
	}
	return false
}
