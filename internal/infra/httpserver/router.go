package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	appaudits "github.com/auditforge/auditforge/internal/application/audits"
	domai "github.com/auditforge/auditforge/internal/domain/ai"
	domain "github.com/auditforge/auditforge/internal/domain/audits"
	"github.com/auditforge/auditforge/internal/domain/vulns"
	"github.com/auditforge/auditforge/internal/infra/pubsub"
	"github.com/auditforge/auditforge/internal/middleware"
)

type Router struct {
	svc *appaudits.Service
	hub *pubsub.Hub
}

func NewRouter(svc *appaudits.Service, hub *pubsub.Hub) http.Handler {
	r := &Router{svc: svc, hub: hub}
	mux := chi.NewRouter()

	mux.Route("/v1/{requester}", func(rt chi.Router) {
		rt.Post("/audits", r.wrap(r.handleSubmit))
		rt.Get("/audits/{auditId}", r.wrap(r.handleGet))
		rt.Get("/audits/{auditId}/progress", r.wrap(r.handleProgress))
		rt.Get("/audits/{auditId}/vulnerabilities", r.wrap(r.handleVulnerabilities))
		rt.Post("/audits/{auditId}/cancel", r.wrap(r.handleCancel))
		rt.Get("/audits/{auditId}/events", r.wrap(r.handleAuditEvents))
		rt.Get("/events", r.wrap(r.handleUserEvents))
		rt.Get("/queue/stats", r.wrap(r.handleStats))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap normalizes façade errors onto HTTP statuses so handlers only ever
// return errors
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		switch {
		case errors.Is(err, appaudits.ErrNotFound), errors.Is(err, appaudits.ErrContractNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, appaudits.ErrAccessDenied):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, appaudits.ErrAlreadyTerminal):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, appaudits.ErrInvalidKind), errors.Is(err, errBadRequest):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

var errBadRequest = errors.New("bad request")

// requester resolves the addressed requester and enforces it matches the
// authenticated principal when auth middleware is installed.
func requester(req *http.Request) (string, error) {
	id := chi.URLParam(req, "requester")
	if id == "" {
		return "", fmt.Errorf("%w: requester is required", errBadRequest)
	}
	if auth := middleware.GetRequesterFromContext(req.Context()); auth != "" && auth != id {
		return "", appaudits.ErrAccessDenied
	}
	return id, nil
}

// POST /v1/{requester}/audits
// Body: {"contract_id": "...", "kind": "static|ai|full", "priority": 5, "options": {...}}
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	requesterID, err := requester(req)
	if err != nil {
		return err
	}

	var body struct {
		ContractID string `json:"contract_id"`
		Kind       string `json:"kind"`
		Priority   int    `json:"priority"`
		Options    *struct {
			FocusAreas             []string `json:"focus_areas"`
			SeverityThreshold      string   `json:"severity_threshold"`
			MinConfidence          float64  `json:"min_confidence"`
			IncludeRecommendations *bool    `json:"include_recommendations"`
			IncludeQualityMetrics  bool     `json:"include_quality_metrics"`
		} `json:"options"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := middleware.ValidateContractID(body.ContractID); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := middleware.ValidateKind(body.Kind); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := middleware.ValidatePriority(body.Priority); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	cmd := appaudits.SubmitRequest{
		ContractID:  body.ContractID,
		RequesterID: requesterID,
		Kind:        domain.Kind(body.Kind),
		Priority:    domain.Priority(body.Priority),
	}
	if body.Options != nil {
		if err := middleware.ValidateFocusAreas(body.Options.FocusAreas); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
		if err := middleware.ValidateConfidence(body.Options.MinConfidence); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
		opts := domai.Options{
			FocusAreas:             body.Options.FocusAreas,
			MinConfidence:          body.Options.MinConfidence,
			IncludeRecommendations: true,
			IncludeQualityMetrics:  body.Options.IncludeQualityMetrics,
		}
		if body.Options.SeverityThreshold != "" {
			opts.SeverityThreshold = vulns.CanonicalSeverity(body.Options.SeverityThreshold)
		}
		if body.Options.IncludeRecommendations != nil {
			opts.IncludeRecommendations = *body.Options.IncludeRecommendations
		}
		cmd.Options = &opts
	}

	res, err := r.svc.Submit(req.Context(), cmd)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	return json.NewEncoder(w).Encode(res)
}

// GET /v1/{requester}/audits/{auditId}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	requesterID, err := requester(req)
	if err != nil {
		return err
	}
	rec, err := r.svc.Record(req.Context(), chi.URLParam(req, "auditId"), requesterID)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(rec)
}

// GET /v1/{requester}/audits/{auditId}/progress
func (r *Router) handleProgress(w http.ResponseWriter, req *http.Request) error {
	requesterID, err := requester(req)
	if err != nil {
		return err
	}
	p, err := r.svc.Progress(req.Context(), chi.URLParam(req, "auditId"), requesterID)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(p)
}

// GET /v1/{requester}/audits/{auditId}/vulnerabilities
func (r *Router) handleVulnerabilities(w http.ResponseWriter, req *http.Request) error {
	requesterID, err := requester(req)
	if err != nil {
		return err
	}
	list, err := r.svc.Vulnerabilities(req.Context(), chi.URLParam(req, "auditId"), requesterID)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// POST /v1/{requester}/audits/{auditId}/cancel
func (r *Router) handleCancel(w http.ResponseWriter, req *http.Request) error {
	requesterID, err := requester(req)
	if err != nil {
		return err
	}
	if err := r.svc.Cancel(req.Context(), chi.URLParam(req, "auditId"), requesterID); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
}

// GET /v1/{requester}/queue/stats
func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) error {
	if _, err := requester(req); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(r.svc.Stats(req.Context()))
}

// GET /v1/{requester}/audits/{auditId}/events — SSE stream for one audit
func (r *Router) handleAuditEvents(w http.ResponseWriter, req *http.Request) error {
	requesterID, err := requester(req)
	if err != nil {
		return err
	}
	auditID := chi.URLParam(req, "auditId")
	// ownership check before exposing the stream
	if _, err := r.svc.Record(req.Context(), auditID, requesterID); err != nil {
		return err
	}
	return r.stream(w, req, pubsub.AuditChannel(auditID), true)
}

// GET /v1/{requester}/events — SSE stream of all the requester's audits
func (r *Router) handleUserEvents(w http.ResponseWriter, req *http.Request) error {
	requesterID, err := requester(req)
	if err != nil {
		return err
	}
	return r.stream(w, req, pubsub.UserChannel(requesterID), false)
}

// stream writes progress events as server-sent events until the client
// disconnects or, for single-audit streams, the audit reaches a terminal
// state.
func (r *Router) stream(w http.ResponseWriter, req *http.Request, channel string, untilTerminal bool) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return errors.New("streaming unsupported")
	}

	events, cancel := r.hub.Subscribe(channel)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-req.Context().Done():
			return nil
		case p, open := <-events:
			if !open {
				return nil
			}
			payload, err := json.Marshal(p)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			if untilTerminal && p.Status.Terminal() {
				return nil
			}
		}
	}
}
