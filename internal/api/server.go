// Package api serves the credential store over HTTP, normally on a Unix
// socket owned by the daemon. Every route is a thin mapping onto one
// dispatcher call, so HTTP clients and in-process hosts see identical
// results.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/benaskins/securestore/internal/dispatch"
	"github.com/benaskins/securestore/internal/securestore"
)

// maxBodyBytes bounds request bodies; secrets are small.
const maxBodyBytes = 1 << 20

// Dispatcher runs one call. *dispatch.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(call dispatch.Call) dispatch.Result
}

// Server serves the securestore REST API.
type Server struct {
	dispatcher Dispatcher
	metrics    http.Handler
	server     *http.Server
	logger     *slog.Logger
}

// NewServer creates an API server backed by the given dispatcher.
// metrics, if non-nil, is mounted at GET /metrics.
func NewServer(d Dispatcher, metrics http.Handler) *Server {
	s := &Server{
		dispatcher: d,
		metrics:    metrics,
		logger:     slog.With("component", "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/invoke", s.invoke)
	mux.HandleFunc("GET /v1/items/{service}", s.listKeys)
	mux.HandleFunc("DELETE /v1/items/{service}", s.clear)
	mux.HandleFunc("GET /v1/items/{service}/{key}", s.getItem)
	mux.HandleFunc("PUT /v1/items/{service}/{key}", s.putItem)
	mux.HandleFunc("DELETE /v1/items/{service}/{key}", s.removeItem)
	mux.HandleFunc("GET /v1/health", s.health)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	s.server = &http.Server{Handler: mux}
	return s
}

// ListenUnix starts the server on a Unix socket readable only by the
// current user. A stale socket file at path is removed first.
func (s *Server) ListenUnix(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing stale socket: %w", err)
	}
	ln, err := listenPrivateUnix(path)
	if err != nil {
		return err
	}
	s.logger.Info("API listening", "socket", path)
	return s.server.Serve(ln)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) invoke(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
		return
	}
	if err := validateCall(body); err != nil {
		writeJSON(w, http.StatusBadRequest, dispatch.Result{Outcome: dispatch.OutcomeInvalid, Message: err.Error()})
		return
	}

	var call dispatch.Call
	if err := json.Unmarshal(body, &call); err != nil {
		writeJSON(w, http.StatusBadRequest, dispatch.Result{Outcome: dispatch.OutcomeInvalid, Message: err.Error()})
		return
	}
	s.respond(w, call)
}

// itemBody is the body of PUT /v1/items/{service}/{key}.
type itemBody struct {
	Value  *string        `json:"value"`
	Config map[string]any `json:"config,omitempty"`
}

func (s *Server) putItem(w http.ResponseWriter, r *http.Request) {
	var body itemBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, dispatch.Result{Outcome: dispatch.OutcomeInvalid, Message: "could not parse body: " + err.Error()})
		return
	}
	args := []any{r.PathValue("service"), r.PathValue("key"), nil, nil}
	if body.Value != nil {
		args[2] = *body.Value
	}
	if body.Config != nil {
		args[3] = body.Config
	}
	s.respond(w, dispatch.Call{Action: dispatch.ActionSet, Arguments: args})
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	s.respond(w, dispatch.Call{Action: dispatch.ActionGet, Arguments: []any{r.PathValue("service"), r.PathValue("key")}})
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	s.respond(w, dispatch.Call{Action: dispatch.ActionRemove, Arguments: []any{r.PathValue("service"), r.PathValue("key")}})
}

func (s *Server) listKeys(w http.ResponseWriter, r *http.Request) {
	s.respond(w, dispatch.Call{Action: dispatch.ActionKeys, Arguments: []any{r.PathValue("service")}})
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request) {
	s.respond(w, dispatch.Call{Action: dispatch.ActionClear, Arguments: []any{r.PathValue("service")}})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respond(w http.ResponseWriter, call dispatch.Call) {
	res := s.dispatcher.Dispatch(call)
	writeJSON(w, httpStatus(res), res)
}

// httpStatus maps a dispatch outcome onto an HTTP status code.
func httpStatus(res dispatch.Result) int {
	switch res.Outcome {
	case dispatch.OutcomeOK:
		return http.StatusOK
	case dispatch.OutcomeInvalid:
		return http.StatusBadRequest
	}
	switch securestore.Status(res.Status) {
	case securestore.StatusItemNotFound:
		return http.StatusNotFound
	case securestore.StatusAuthFailed, securestore.StatusUserCanceled, securestore.StatusInteractionNotAllowed:
		return http.StatusForbidden
	case securestore.StatusSuccess:
		// Policy and decoding failures carry no store status.
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
