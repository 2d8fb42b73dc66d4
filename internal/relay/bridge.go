// Package relay implements the message flows between the user-facing channel
// and Rocket.Chat livechat: user messages into livechat rooms, agent replies
// back to the originating channel, and room lifecycle around both.
package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/lewisedginton/livechat-bridge/internal/dedup"
	"github.com/lewisedginton/livechat-bridge/internal/rocketchat"
	"github.com/lewisedginton/livechat-bridge/internal/session"
	"github.com/lewisedginton/livechat-bridge/pkg/logger"
	"github.com/lewisedginton/livechat-bridge/pkg/metrics"
	"github.com/lewisedginton/livechat-bridge/pkg/prefixed_uuid"
)

// closeTimeout bounds the platform call made from the watchdog callback,
// which has no inbound request context to inherit.
const closeTimeout = 10 * time.Second

// PlatformClient is the subset of the Rocket.Chat API the relay needs.
type PlatformClient interface {
	Login(ctx context.Context, username string) (rocketchat.Credentials, error)
	CreateOmnichannelContact(ctx context.Context, creds rocketchat.Credentials, visitorToken, username string) error
	CreateLiveChatRoom(ctx context.Context, creds rocketchat.Credentials, visitorToken string) (string, error)
	SendLiveChatMessage(ctx context.Context, visitorToken, roomID, text string) error
	CloseRoom(ctx context.Context, visitorToken, roomID string) error
	PostChannelMessage(ctx context.Context, creds rocketchat.Credentials, roomID, text string) error
}

// Config holds configuration for the Bridge.
type Config struct {
	Client            PlatformClient
	Logger            logger.Logger
	Metrics           *metrics.Metrics
	BotUsername       string
	InactivityTimeout time.Duration
}

// Bridge owns the session store, the dedup guard and the inactivity watchdog,
// and coordinates them around platform calls.
type Bridge struct {
	store    *session.Store
	guard    *dedup.Guard
	watchdog *session.Watchdog
	client   PlatformClient
	metrics  *metrics.Metrics
	log      logger.Logger
}

// NewBridge creates a Bridge with a fresh session store and a watchdog wired
// to close rooms after the configured inactivity timeout.
func NewBridge(config Config) (*Bridge, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("platform client is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if config.Metrics == nil {
		return nil, fmt.Errorf("metrics is required")
	}
	if config.BotUsername == "" {
		return nil, fmt.Errorf("bot username is required")
	}
	if config.InactivityTimeout <= 0 {
		return nil, fmt.Errorf("inactivity timeout must be positive")
	}

	b := &Bridge{
		store:   session.NewStore(),
		guard:   dedup.NewGuard(config.BotUsername),
		client:  config.Client,
		metrics: config.Metrics,
		log:     config.Logger,
	}
	b.watchdog = session.NewWatchdog(config.InactivityTimeout, b.closeInactiveRoom)
	return b, nil
}

// Shutdown cancels all pending inactivity timers. Open rooms are left open;
// they can be swept with CloseAllRooms before calling this.
func (b *Bridge) Shutdown() {
	b.watchdog.StopAll()
}

// closeInactiveRoom is the watchdog expiry callback. A close failure on the
// platform side is logged but local state is cleared regardless, so the next
// user message starts a fresh room instead of writing into a dead one.
func (b *Bridge) closeInactiveRoom(userID string) {
	rec, ok := b.store.Get(userID)
	if !ok || !rec.HasRoom() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := b.client.CloseRoom(ctx, rec.VisitorToken, rec.LiveChatRoomID); err != nil {
		b.log.Error("Failed to close inactive livechat room",
			logger.UserField(userID),
			logger.RoomField(rec.LiveChatRoomID),
			logger.ErrorField(err))
	} else {
		b.log.Info("Closed livechat room after inactivity",
			logger.UserField(userID),
			logger.RoomField(rec.LiveChatRoomID))
	}

	if _, cleared := b.store.ClearRoom(userID); cleared {
		b.metrics.RoomsClosed.WithLabelValues(metrics.CloseReasonInactivity).Inc()
		b.metrics.OpenRooms.Dec()
	}
}

// ensureCredentials logs the user in on first contact and reuses the stored
// token afterwards.
func (b *Bridge) ensureCredentials(ctx context.Context, rec session.Record) (rocketchat.Credentials, error) {
	if rec.AuthToken != "" {
		return rocketchat.Credentials{AuthToken: rec.AuthToken, UserID: rec.PlatformUserID}, nil
	}

	creds, err := b.client.Login(ctx, rec.Username)
	if err != nil {
		return rocketchat.Credentials{}, fmt.Errorf("%w: %v", ErrUpstreamAuth, err)
	}
	b.store.SetCredentials(rec.UserID, creds.AuthToken, creds.UserID)
	return creds, nil
}

func newVisitorToken() string {
	return prefixed_uuid.New("visitor").String()
}
