package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lewisedginton/livechat-bridge/internal/dedup"
	"github.com/lewisedginton/livechat-bridge/pkg/logger"
	"github.com/lewisedginton/livechat-bridge/pkg/metrics"
)

// UserMessage is the payload delivered by the channel-side outgoing webhook
// when an external user sends a message.
type UserMessage struct {
	UserID          string `json:"user_id"`
	Username        string `json:"user_name"`
	Text            string `json:"text"`
	MessageID       string `json:"message_id"`
	ChannelID       string `json:"channel_id"`
	IsSystemMessage bool   `json:"isSystemMessage"`
}

// UserRelayResult describes the outcome of a user-to-agent relay.
type UserRelayResult struct {
	RoomID    string
	Created   bool
	Delivered bool
}

// RelayUserMessage runs the full inbound flow for one user message: dedup and
// loop checks, credential and visitor-token setup, room reuse or creation,
// message forwarding and the inactivity timer reset.
func (b *Bridge) RelayUserMessage(ctx context.Context, msg UserMessage) (UserRelayResult, error) {
	switch b.guard.Check(dedup.Message{ID: msg.MessageID, SenderUsername: msg.Username, IsSystemMessage: msg.IsSystemMessage}) {
	case dedup.Duplicate:
		b.metrics.DroppedMessages.WithLabelValues(metrics.DropReasonDuplicate).Inc()
		return UserRelayResult{}, ErrDuplicateMessage
	case dedup.Loop:
		b.metrics.DroppedMessages.WithLabelValues(metrics.DropReasonLoop).Inc()
		return UserRelayResult{}, ErrLoopPrevented
	}

	rec := b.store.GetOrCreate(msg.UserID, msg.Username)

	// The user is active again: park the timer until the relay completes
	// so a slow platform call cannot race an expiry.
	b.watchdog.Stop(msg.UserID)
	b.store.SetLastMessage(msg.UserID, msg.Text, time.Now())

	creds, err := b.ensureCredentials(ctx, rec)
	if err != nil {
		return UserRelayResult{}, err
	}

	visitorToken := b.store.EnsureVisitorToken(msg.UserID, newVisitorToken)

	rec, _ = b.store.Get(msg.UserID)
	result := UserRelayResult{RoomID: rec.LiveChatRoomID}

	if !rec.HasRoom() {
		if err := b.client.CreateOmnichannelContact(ctx, creds, visitorToken, msg.Username); err != nil {
			return UserRelayResult{}, fmt.Errorf("%w: %v", ErrUpstreamRoomSetup, err)
		}
		roomID, err := b.client.CreateLiveChatRoom(ctx, creds, visitorToken)
		if err != nil {
			return UserRelayResult{}, fmt.Errorf("%w: %v", ErrUpstreamRoomSetup, err)
		}

		b.store.SetRoom(msg.UserID, roomID, msg.ChannelID)
		b.metrics.RoomsOpened.Inc()
		b.metrics.OpenRooms.Inc()
		b.log.Info("Created livechat room",
			logger.UserField(msg.UserID),
			logger.RoomField(roomID))

		result = UserRelayResult{RoomID: roomID, Created: true}
	}

	if err := b.client.SendLiveChatMessage(ctx, visitorToken, result.RoomID, msg.Text); err != nil {
		b.log.Error("Failed to forward user message to livechat",
			logger.UserField(msg.UserID),
			logger.RoomField(result.RoomID),
			logger.ErrorField(err))
		b.metrics.DroppedMessages.WithLabelValues(metrics.DropReasonSendFailed).Inc()
	} else {
		result.Delivered = true
		b.metrics.MessagesRelayed.WithLabelValues("user_to_agent").Inc()
	}

	b.watchdog.Reset(msg.UserID)
	return result, nil
}

// HandleUserMessage is the HTTP handler for the user-to-agent webhook.
func (b *Bridge) HandleUserMessage(w http.ResponseWriter, r *http.Request) {
	log := b.log.WithCorrelationID(logger.GetCorrelationIDFromContext(r.Context()))

	var msg UserMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		log.Error("Failed to decode user webhook payload", logger.ErrorField(err))
		b.metrics.WebhookRequests.WithLabelValues("user_to_agent", metrics.OutcomeError).Inc()
		http.Error(w, "Error capturing details.", http.StatusInternalServerError)
		return
	}
	// Placeholders for missing fields. The defaulted message ID still
	// participates in dedup, so repeated id-less deliveries read as
	// duplicates.
	if msg.UserID == "" {
		msg.UserID = "unknown"
	}
	if msg.Username == "" {
		msg.Username = "unknown"
	}
	if msg.Text == "" {
		msg.Text = "No message"
	}
	if msg.ChannelID == "" {
		msg.ChannelID = "unknown"
	}
	if msg.MessageID == "" {
		msg.MessageID = "unknown"
	}

	result, err := b.RelayUserMessage(r.Context(), msg)
	switch {
	case errors.Is(err, ErrDuplicateMessage):
		log.Debug("Ignoring duplicate message", logger.UserField(msg.UserID))
		b.metrics.WebhookRequests.WithLabelValues("user_to_agent", metrics.OutcomeIgnored).Inc()
		fmt.Fprint(w, "Duplicate message ignored.")
	case errors.Is(err, ErrLoopPrevented):
		log.Debug("Ignoring bot or system message", logger.UserField(msg.UserID))
		b.metrics.WebhookRequests.WithLabelValues("user_to_agent", metrics.OutcomeIgnored).Inc()
		fmt.Fprint(w, "Bot message or system message ignored.")
	case errors.Is(err, ErrUpstreamAuth):
		log.Error("User-to-agent relay failed",
			logger.UserField(msg.UserID),
			logger.ErrorField(err))
		b.metrics.WebhookRequests.WithLabelValues("user_to_agent", metrics.OutcomeError).Inc()
		http.Error(w, "Error capturing details.", http.StatusInternalServerError)
	case err != nil:
		log.Error("User-to-agent relay failed",
			logger.UserField(msg.UserID),
			logger.ErrorField(err))
		b.metrics.WebhookRequests.WithLabelValues("user_to_agent", metrics.OutcomeError).Inc()
		http.Error(w, "Failed to create Omnichannel contact or live chat room.", http.StatusInternalServerError)
	default:
		outcome := metrics.OutcomeRelayed
		if !result.Delivered {
			outcome = metrics.OutcomeError
		}
		b.metrics.WebhookRequests.WithLabelValues("user_to_agent", outcome).Inc()
		if result.Created {
			fmt.Fprintf(w, "Live chat room created successfully with ID: %s", result.RoomID)
		} else {
			fmt.Fprintf(w, "Live chat room already exists with ID: %s", result.RoomID)
		}
	}
}
