package handler

import (
	"context"

	"sdtchat/internal/app/chat"
	"sdtchat/internal/app/db"
	"sdtchat/internal/app/identity"
	"sdtchat/internal/configs"
)

// ChannelStore is the read side of the channel tables used by the HTTP layer.
type ChannelStore interface {
	FindChannel(ctx context.Context, id string) (*db.Channel, error)
	RecentMessages(ctx context.Context, channelID string, limit int) ([]chat.StoredMessage, error)
}

// AppDeps bundles what the handlers need.
type AppDeps struct {
	Directory *chat.Directory
	Config    *configs.AppConfig
	Channels  ChannelStore

	// Identity resolves login tokens. It is only consulted when
	// Config.RequireIdentityToken is set.
	Identity identity.Resolver
}
