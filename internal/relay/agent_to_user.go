package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lewisedginton/livechat-bridge/internal/rocketchat"
	"github.com/lewisedginton/livechat-bridge/pkg/logger"
	"github.com/lewisedginton/livechat-bridge/pkg/metrics"
)

// AgentWebhook is the payload Rocket.Chat's livechat webhook delivers when
// activity happens in a livechat room. Visitor messages echo through the same
// webhook without an agent ID, which is how they are told apart.
type AgentWebhook struct {
	RoomID   string         `json:"_id"`
	Messages []AgentMessage `json:"messages"`
}

// AgentMessage is a single message entry in an agent webhook delivery.
type AgentMessage struct {
	Text    string `json:"msg"`
	AgentID string `json:"agentId"`
	Sender  struct {
		Username string `json:"username"`
	} `json:"u"`
}

// RelayAgentMessages forwards agent-authored messages from a livechat room
// back to the originating user channel. The inactivity timer is deliberately
// untouched here: only user activity keeps a room alive.
func (b *Bridge) RelayAgentMessages(ctx context.Context, hook AgentWebhook) (int, error) {
	rec, ok := b.store.UserByRoom(hook.RoomID)
	if !ok {
		return 0, nil
	}

	creds := rocketchat.Credentials{AuthToken: rec.AuthToken, UserID: rec.PlatformUserID}

	forwarded := 0
	for _, msg := range hook.Messages {
		if msg.AgentID == "" {
			// Visitor echo, not an agent reply.
			continue
		}
		if err := b.client.PostChannelMessage(ctx, creds, rec.OriginRoomID, msg.Text); err != nil {
			return forwarded, fmt.Errorf("failed to forward agent message to %s: %w", rec.OriginRoomID, err)
		}
		forwarded++
		b.metrics.MessagesRelayed.WithLabelValues("agent_to_user").Inc()
	}
	return forwarded, nil
}

// HandleAgentMessage is the HTTP handler for the agent-to-user webhook.
func (b *Bridge) HandleAgentMessage(w http.ResponseWriter, r *http.Request) {
	log := b.log.WithCorrelationID(logger.GetCorrelationIDFromContext(r.Context()))

	var hook AgentWebhook
	if err := json.NewDecoder(r.Body).Decode(&hook); err != nil {
		log.Error("Failed to decode agent webhook payload", logger.ErrorField(err))
		b.metrics.WebhookRequests.WithLabelValues("agent_to_user", metrics.OutcomeError).Inc()
		http.Error(w, "Error capturing details.", http.StatusInternalServerError)
		return
	}

	forwarded, err := b.RelayAgentMessages(r.Context(), hook)
	if err != nil {
		log.Error("Agent-to-user relay failed",
			logger.RoomField(hook.RoomID),
			logger.ErrorField(err))
		b.metrics.WebhookRequests.WithLabelValues("agent_to_user", metrics.OutcomeError).Inc()
		http.Error(w, "Failed to forward agent message.", http.StatusInternalServerError)
		return
	}

	if forwarded == 0 {
		b.metrics.WebhookRequests.WithLabelValues("agent_to_user", metrics.OutcomeIgnored).Inc()
		fmt.Fprint(w, "No agent messages to forward.")
		return
	}

	b.metrics.WebhookRequests.WithLabelValues("agent_to_user", metrics.OutcomeRelayed).Inc()
	fmt.Fprintf(w, "Forwarded %d agent message(s).", forwarded)
}
