package server

import (
	"chat_relay/internal/service/history"
	"chat_relay/internal/service/registry"
	"chat_relay/internal/service/relay"
	"chat_relay/internal/utils/log"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type (
	HttpServer struct {
		relay    *relay.Relay
		history  *history.Service
		registry *registry.Registry
		upgrader websocket.Upgrader
		server   *http.Server

		writeTimeout time.Duration
	}

	healthResponse struct {
		Status      string `json:"status"`
		Sessions    int    `json:"sessions"`
		Connections int    `json:"connections"`
	}
)

func NewHttpServer(addr string, rl *relay.Relay, hist *history.Service, reg *registry.Registry) *HttpServer {
	s := &HttpServer{
		relay:    rl,
		history:  hist,
		registry: reg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		writeTimeout: 10 * time.Second,
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *HttpServer) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(cors)

	r.HandleFunc("/ws/{userID}", s.HandleWS()).Methods(http.MethodGet)
	r.HandleFunc("/history/{user1}/{user2}", s.GetHistory()).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/healthz", s.Health()).Methods(http.MethodGet)
	return r
}

// Run blocks serving HTTP until Shutdown.
func (s *HttpServer) Run() error {
	log.Info("relay listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then closes every live session.
// Hijacked websocket connections are not tracked by http.Server, so the
// relay has to close them itself.
func (s *HttpServer) Shutdown(ctx context.Context) error {
	httpErr := s.server.Shutdown(ctx)
	relayErr := s.relay.Shutdown(ctx)
	return errors.Join(httpErr, relayErr)
}

func (s *HttpServer) HandleWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userID"]
		if userID == "" {
			http.Error(w, "userID cannot be empty", http.StatusBadRequest)
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("websocket upgrade failed", zap.String("user", userID), zap.Error(err))
			return
		}

		err = s.relay.Serve(r.Context(), userID, newWSConn(conn, s.writeTimeout))
		if err != nil {
			log.Debug("session ended", zap.String("user", userID), zap.Error(err))
		}
	}
}

func (s *HttpServer) GetHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		vars := mux.Vars(r)
		user1, user2 := vars["user1"], vars["user2"]

		msgs, err := s.history.Between(r.Context(), user1, user2)
		if err != nil {
			log.Error("get history failed", zap.String("user1", user1), zap.String("user2", user2), zap.Error(err))
			http.Error(w, "history unavailable", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, msgs)
	}
}

func (s *HttpServer) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:      "ok",
			Sessions:    s.relay.Len(),
			Connections: s.registry.Len(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("encode response failed", zap.Error(err))
		http.Error(w, "encode response failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
