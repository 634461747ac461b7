/*
Package handler provides the HTTP handlers and routing setup for the chat server.

This file defines the main Router, applying middleware for CORS, request ids,
logging and panic recovery before delegating to the channel REST API, the
WebSocket endpoint and the operational endpoints.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"sdtchat/internal/pkg/limiter"
	"sdtchat/internal/pkg/logx"
	"sdtchat/internal/pkg/resp"
)

const (
	JoinRate     = 0.5
	JoinBurst    = 10
	AccessRate   = 0.1
	AccessBurst  = 5
	serviceLabel = "SDT Chat Server"
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
func Router(deps *AppDeps) http.Handler {
	joinLimiter := limiter.NewIPRateLimiter(rate.Limit(JoinRate), JoinBurst)
	accessLimiter := limiter.NewIPRateLimiter(rate.Limit(AccessRate), AccessBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{
			"status":      "ok",
			"service":     serviceLabel,
			"activeRooms": deps.Directory.ActiveRooms(),
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/channels/{id}", func(api chi.Router) {
		api.Get("/messages", HandleChannelMessages(deps))
		api.Get("/members", HandleMembers(deps))
		api.Get("/members/count", HandleMemberCount(deps))
		api.With(accessLimiter.Middleware).Post("/access", HandleChannelAccess(deps))
	})

	r.Get("/ws/channel/{id}", HandleWebSocket(wsUpgrader, joinLimiter, deps))

	return r
}
