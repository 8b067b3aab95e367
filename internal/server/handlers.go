// internal/server/handlers.go
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/arbiterhq/arbiter/internal/policy"
	"github.com/arbiterhq/arbiter/internal/types"
)

/*
 * Decision API handlers.
 *
 * The wire options mirror policy.Options except that includeObligations is a
 * pointer: JSON cannot distinguish an absent boolean from false, and the
 * default for obligations is true. Absent means true, explicit false is
 * honored.
 */

// evaluateRequest is the body of /v1/evaluate, /v1/enforce and
// /v1/permissions.
type evaluateRequest struct {
	Input   *types.PolicyInput `json:"input"`
	Options *wireOptions       `json:"options,omitempty"`
}

type wireOptions struct {
	Explain               bool                      `json:"explain,omitempty"`
	Trace                 bool                      `json:"trace,omitempty"`
	Strict                bool                      `json:"strict,omitempty"`
	ConflictResolution    policy.ConflictResolution `json:"conflictResolution,omitempty"`
	StopOnFirstMatch      bool                      `json:"stopOnFirstMatch,omitempty"`
	Limits                policy.Limits             `json:"limits,omitempty"`
	IncludeObligations    *bool                     `json:"includeObligations,omitempty"`
	SkipCache             bool                      `json:"skipCache,omitempty"`
	PolicyVersionOverride string                    `json:"policyVersionOverride,omitempty"`
}

func (w *wireOptions) toOptions() policy.Options {
	opts := policy.DefaultOptions()
	if w == nil {
		return opts
	}
	opts.Explain = w.Explain
	opts.Trace = w.Trace
	opts.Strict = w.Strict
	opts.StopOnFirstMatch = w.StopOnFirstMatch
	opts.SkipCache = w.SkipCache
	opts.PolicyVersionOverride = w.PolicyVersionOverride
	if w.ConflictResolution != "" {
		opts.ConflictResolution = w.ConflictResolution
	}
	if w.Limits.MaxExpressionDepth > 0 {
		opts.Limits.MaxExpressionDepth = w.Limits.MaxExpressionDepth
	}
	if w.Limits.MaxRulesScanned > 0 {
		opts.Limits.MaxRulesScanned = w.Limits.MaxRulesScanned
	}
	if w.Limits.TimeoutMs > 0 {
		opts.Limits.TimeoutMs = w.Limits.TimeoutMs
	}
	if w.Limits.MaxMatchesReturned > 0 {
		opts.Limits.MaxMatchesReturned = w.Limits.MaxMatchesReturned
	}
	if w.IncludeObligations != nil {
		opts.IncludeObligations = *w.IncludeObligations
	}
	return opts
}

type errorResponse struct {
	Error string          `json:"error"`
	Code  types.ErrorCode `json:"code,omitempty"`
}

type handlers struct {
	engine *policy.Engine
	logger *slog.Logger
}

func (h *handlers) evaluate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	decision, err := h.engine.Evaluate(r.Context(), req.Input, req.Options.toOptions())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, decision)
}

func (h *handlers) allowed(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	allowed, err := h.engine.IsAllowed(r.Context(), req.Input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

func (h *handlers) enforce(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	err := h.engine.Enforce(r.Context(), req.Input, req.Options.toOptions())
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var denied *types.AccessDeniedError
	if errors.As(err, &denied) {
		h.writeJSON(w, http.StatusForbidden, map[string]any{
			"error":        "access denied",
			"reasons":      denied.Reasons,
			"decidingRule": denied.DecidingRule,
		})
		return
	}
	h.writeError(w, err)
}

func (h *handlers) permissions(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	perms, err := h.engine.GetPermissions(r.Context(), req.Input, req.Options.toOptions())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request) (*evaluateRequest, bool) {
	var req evaluateRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "malformed request body: " + err.Error(),
			Code:  types.ErrCodeInvalidInput,
		})
		return nil, false
	}
	if req.Input == nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "request body must carry an input",
			Code:  types.ErrCodeInvalidInput,
		})
		return nil, false
	}
	return &req, true
}

// writeError maps evaluation error codes to HTTP status codes.
func (h *handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := types.ErrCodeInternal

	var evalErr *types.EvaluationError
	if errors.As(err, &evalErr) {
		code = evalErr.Code
		switch evalErr.Code {
		case types.ErrCodeInvalidInput, types.ErrCodeInvalidExpression, types.ErrCodeExpressionTooDeep:
			status = http.StatusBadRequest
		case types.ErrCodePolicyNotFound:
			status = http.StatusNotFound
		case types.ErrCodeTimeout:
			status = http.StatusGatewayTimeout
		}
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("decision api failure", "error", err)
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("encoding response", "error", err)
	}
}
