/*
Package handler provides the REST endpoints of a channel: recent history, the
live roster and member count, and the password check that issues channel access
tokens.
*/
package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"sdtchat/internal/app/chat"
	"sdtchat/internal/app/db"
	"sdtchat/internal/pkg/auth/jwt"
	"sdtchat/internal/pkg/errs"
	"sdtchat/internal/pkg/logx"
	"sdtchat/internal/pkg/randx"
	"sdtchat/internal/pkg/req"
	"sdtchat/internal/pkg/resp"
)

const (
	DefaultHistoryPageSize = 50
	MaxHistoryPageSize     = 100
)

// loadChannel resolves the {id} URL parameter to an existing channel, writing
// the error response itself when that fails.
func loadChannel(w http.ResponseWriter, r *http.Request, deps *AppDeps) (*db.Channel, bool) {
	channelID := chi.URLParam(r, "id")
	if !randx.IsValidChannelID(channelID) {
		resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
		return nil, false
	}

	channel, err := deps.Channels.FindChannel(r.Context(), channelID)
	if err != nil {
		logx.Error(err, "Failed to load channel", "channel_id", channelID)
		resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
		return nil, false
	}
	if channel == nil {
		resp.RespondError(w, r, errs.NewError(errs.ErrChannelNotFound))
		return nil, false
	}

	return channel, true
}

// accessToken reads a channel access token from ?access= or a Bearer header.
func accessToken(r *http.Request) string {
	if token := r.URL.Query().Get("access"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// HandleChannelMessages returns the most recent messages of a channel, oldest first.
func HandleChannelMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel, ok := loadChannel(w, r, deps)
		if !ok {
			return
		}

		if channel.HasPassword() && !jwt.CanAccessChannel(accessToken(r), deps.Config.JWTSecret, channel.ID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrChannelPasswordRequired))
			return
		}

		limit, customErr := req.QueryInt(r, "limit", DefaultHistoryPageSize, 1, MaxHistoryPageSize)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		stored, err := deps.Channels.RecentMessages(r.Context(), channel.ID, limit)
		if err != nil {
			logx.Error(err, "Failed to load channel history", "channel_id", channel.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		messages := make([]chat.MessagePayload, 0, len(stored))
		for _, m := range stored {
			messages = append(messages, chat.HistoryMessage(m))
		}

		resp.RespondSuccess(w, r, map[string]any{
			"channelId": channel.ID,
			"messages":  messages,
		})
	}
}

// HandleMemberCount reports the number of joined sessions of a channel. It
// never creates a room: an inactive channel counts zero.
func HandleMemberCount(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channelID := chi.URLParam(r, "id")
		if !randx.IsValidChannelID(channelID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"channelId": channelID,
			"count":     deps.Directory.MemberCount(channelID),
		})
	}
}

// HandleMembers returns the live roster of a channel. Like the history, it is
// gated by the channel password.
func HandleMembers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel, ok := loadChannel(w, r, deps)
		if !ok {
			return
		}

		if channel.HasPassword() && !jwt.CanAccessChannel(accessToken(r), deps.Config.JWTSecret, channel.ID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrChannelPasswordRequired))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"channelId": channel.ID,
			"members":   deps.Directory.Members(channel.ID),
		})
	}
}

type ChannelAccessInput struct {
	Password string `json:"password" validate:"required,max=128"`
}

// HandleChannelAccess checks a channel password and issues a short-lived access
// token for the WebSocket upgrade and the history endpoint.
func HandleChannelAccess(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input ChannelAccessInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if customErr := req.Validate(input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		channel, ok := loadChannel(w, r, deps)
		if !ok {
			return
		}

		if channel.HasPassword() {
			if err := bcrypt.CompareHashAndPassword([]byte(channel.PasswordHash), []byte(input.Password)); err != nil {
				logx.Info("Channel password rejected", "channel_id", channel.ID)
				resp.RespondError(w, r, errs.NewError(errs.ErrChannelPasswordInvalid))
				return
			}
		}

		tokenString, err := jwt.GenerateToken(&jwt.Payload{Code: channel.ID}, deps.Config.JWTSecret, jwt.ChannelAccessExpiration)
		if err != nil {
			logx.Error(err, "Failed to sign channel access token", "channel_id", channel.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token":     tokenString,
			"expiresIn": int(jwt.ChannelAccessExpiration.Seconds()),
		})
	}
}
