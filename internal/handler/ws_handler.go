/*
Package handler provides the HTTP handler function for WebSocket connection upgrading.

HandleWebSocket rate limits the upgrade, checks that the channel exists and that
the caller may enter it, optionally resolves the caller's login token, and then
hands the connection to the channel's room for the rest of its life.
*/
package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"sdtchat/internal/app/chat"
	"sdtchat/internal/pkg/auth/jwt"
	"sdtchat/internal/pkg/errs"
	"sdtchat/internal/pkg/limiter"
	"sdtchat/internal/pkg/logx"
	"sdtchat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", logx.AnonymizeIP(ip))
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		channel, ok := loadChannel(w, r, deps)
		if !ok {
			return
		}

		query := r.URL.Query()

		if channel.HasPassword() && !jwt.CanAccessChannel(query.Get("access"), deps.Config.JWTSecret, channel.ID) {
			logx.Info("WebSocket connection rejected: Channel access token missing or invalid.", "channel_id", channel.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrChannelPasswordRequired))
			return
		}

		var verifiedIdentity string
		if deps.Config.RequireIdentityToken {
			if deps.Identity == nil {
				logx.Error(errors.New("identity resolver not configured"), "Identity tokens required but no resolver configured")
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
				return
			}

			resolved, err := deps.Identity.Resolve(r.Context(), query.Get("token"))
			if err != nil {
				logx.Info("WebSocket connection rejected: Login token not resolved.", "channel_id", channel.ID, "error", err.Error())
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}
			verifiedIdentity = resolved
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(conn, channel.ID, deps.Config.SessionPongTimeout)
		go client.WritePump()

		session, err := deps.Directory.Connect(channel.ID, client, verifiedIdentity)
		if err != nil {
			logx.Warn("WebSocket session rejected: Directory unavailable.", "channel_id", channel.ID, "error", err.Error())
			client.Close(chat.CloseTryAgain, errs.NewError(errs.ErrServiceUnavailable).Message)
			return
		}

		logx.Debug("WebSocket connection established", "channel_id", channel.ID, "session_id", session.ID)

		client.ReadPump(session)
	}
}
