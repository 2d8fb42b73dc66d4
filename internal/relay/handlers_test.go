package relay

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleUserMessageCreatesRoom(t *testing.T) {
	platform := newFakePlatform()
	b := newTestBridge(t, platform, time.Hour)

	rec := postJSON(t, b.HandleUserMessage,
		`{"user_id":"user-1","user_name":"alice","text":"hello","message_id":"msg-1","channel_id":"channel-1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Live chat room created successfully with ID: room-1", rec.Body.String())
}

func TestHandleUserMessageExistingRoom(t *testing.T) {
	platform := newFakePlatform()
	b := newTestBridge(t, platform, time.Hour)

	postJSON(t, b.HandleUserMessage,
		`{"user_id":"user-1","user_name":"alice","text":"hello","message_id":"msg-1","channel_id":"channel-1"}`)
	rec := postJSON(t, b.HandleUserMessage,
		`{"user_id":"user-1","user_name":"alice","text":"again","message_id":"msg-2","channel_id":"channel-1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Live chat room already exists with ID: room-1", rec.Body.String())
}

func TestHandleUserMessageDuplicate(t *testing.T) {
	platform := newFakePlatform()
	b := newTestBridge(t, platform, time.Hour)

	body := `{"user_id":"user-1","user_name":"alice","text":"hello","message_id":"msg-1","channel_id":"channel-1"}`
	postJSON(t, b.HandleUserMessage, body)
	rec := postJSON(t, b.HandleUserMessage, body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Duplicate message ignored.", rec.Body.String())
}

func TestHandleUserMessageBotFiltered(t *testing.T) {
	platform := newFakePlatform()
	b := newTestBridge(t, platform, time.Hour)

	rec := postJSON(t, b.HandleUserMessage,
		`{"user_id":"bot","user_name":"rocket.cat","text":"automated","message_id":"msg-1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bot message or system message ignored.", rec.Body.String())
	assert.Empty(t, platform.loginCalls)

	rec = postJSON(t, b.HandleUserMessage,
		`{"user_id":"user-1","user_name":"alice","text":"joined","message_id":"msg-2","isSystemMessage":true}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bot message or system message ignored.", rec.Body.String())
	assert.Empty(t, platform.loginCalls)
}

func TestHandleUserMessageDefaults(t *testing.T) {
	platform := newFakePlatform()
	b := newTestBridge(t, platform, time.Hour)

	rec := postJSON(t, b.HandleUserMessage, `{"user_id":"user-1","message_id":"msg-1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"unknown"}, platform.loginCalls)
	require.Len(t, platform.sent, 1)
	assert.Equal(t, "No message", platform.sent[0].Text)
}

func TestHandleUserMessageMissingIDDedup(t *testing.T) {
	platform := newFakePlatform()
	b := newTestBridge(t, platform, time.Hour)

	first := postJSON(t, b.HandleUserMessage, `{"user_name":"alice","text":"hello"}`)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Contains(t, first.Body.String(), "Live chat room created successfully")

	// Consecutive deliveries without a message ID share the "unknown"
	// placeholder and dedup against each other.
	second := postJSON(t, b.HandleUserMessage, `{"user_name":"alice","text":"hello again"}`)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "Duplicate message ignored.", second.Body.String())
	assert.Len(t, platform.sent, 1)
}

func TestHandleUserMessageMalformedBody(t *testing.T) {
	platform := newFakePlatform()
	b := newTestBridge(t, platform, time.Hour)

	rec := postJSON(t, b.HandleUserMessage, `{not json`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error capturing details.")
}

func TestHandleUserMessagePlatformFailure(t *testing.T) {
	platform := newFakePlatform()
	platform.contactErr = fmt.Errorf("boom")
	b := newTestBridge(t, platform, time.Hour)

	rec := postJSON(t, b.HandleUserMessage,
		`{"user_id":"user-1","user_name":"alice","text":"hello","message_id":"msg-1"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to create Omnichannel contact or live chat room.")
}

func TestHandleUserMessageLoginFailure(t *testing.T) {
	platform := newFakePlatform()
	platform.loginErr = fmt.Errorf("boom")
	b := newTestBridge(t, platform, time.Hour)

	rec := postJSON(t, b.HandleUserMessage,
		`{"user_id":"user-1","user_name":"alice","text":"hello","message_id":"msg-1"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error capturing details.")
}

func TestHandleUserMessageSendFailureCountsError(t *testing.T) {
	platform := newFakePlatform()
	b := newTestBridge(t, platform, time.Hour)

	postJSON(t, b.HandleUserMessage,
		`{"user_id":"user-1","user_name":"alice","text":"hello","message_id":"msg-1","channel_id":"channel-1"}`)
	platform.sendErr = fmt.Errorf("boom")

	rec := postJSON(t, b.HandleUserMessage,
		`{"user_id":"user-1","user_name":"alice","text":"again","message_id":"msg-2","channel_id":"channel-1"}`)

	// The room state response is unchanged, but the failed delivery shows
	// up as an error outcome and a dropped message.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Live chat room already exists with ID: room-1", rec.Body.String())

	scrape := httptest.NewRecorder()
	b.metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), `bridge_dropped_messages_total{reason="send_failed"} 1`)
	assert.Contains(t, scrape.Body.String(), `bridge_webhook_requests_total{direction="user_to_agent",outcome="error"} 1`)
}

func TestHandleAgentMessageForwards(t *testing.T) {
	platform := newFakePlatform()
	b := newTestBridge(t, platform, time.Hour)

	postJSON(t, b.HandleUserMessage,
		`{"user_id":"user-1","user_name":"alice","text":"hello","message_id":"msg-1","channel_id":"channel-1"}`)

	rec := postJSON(t, b.HandleAgentMessage,
		`{"_id":"room-1","messages":[{"msg":"hi there","agentId":"agent-9","u":{"username":"support.sam"}}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Forwarded 1 agent message(s).", rec.Body.String())
	require.Len(t, platform.posted, 1)
	assert.Equal(t, "channel-1", platform.posted[0].RoomID)
}

func TestHandleAgentMessageUnknownRoom(t *testing.T) {
	platform := newFakePlatform()
	b := newTestBridge(t, platform, time.Hour)

	rec := postJSON(t, b.HandleAgentMessage,
		`{"_id":"room-404","messages":[{"msg":"hello?","agentId":"agent-9"}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "No agent messages to forward.", rec.Body.String())
}

func TestHandleAgentMessagePostFailure(t *testing.T) {
	platform := newFakePlatform()
	b := newTestBridge(t, platform, time.Hour)

	postJSON(t, b.HandleUserMessage,
		`{"user_id":"user-1","user_name":"alice","text":"hello","message_id":"msg-1","channel_id":"channel-1"}`)
	platform.postErr = fmt.Errorf("boom")

	rec := postJSON(t, b.HandleAgentMessage,
		`{"_id":"room-1","messages":[{"msg":"hi","agentId":"agent-9"}]}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to forward agent message.")
}

func TestHandleCloseAll(t *testing.T) {
	platform := newFakePlatform()
	b := newTestBridge(t, platform, time.Hour)

	postJSON(t, b.HandleUserMessage,
		`{"user_id":"user-1","user_name":"alice","text":"hello","message_id":"msg-1","channel_id":"channel-1"}`)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	b.HandleCloseAll(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Closed 1 live chat room(s).", rec.Body.String())
	assert.Empty(t, b.store.OpenRooms())
}

func TestHandleCloseAllFailure(t *testing.T) {
	platform := newFakePlatform()
	b := newTestBridge(t, platform, time.Hour)

	postJSON(t, b.HandleUserMessage,
		`{"user_id":"user-1","user_name":"alice","text":"hello","message_id":"msg-1","channel_id":"channel-1"}`)
	platform.closeErr = fmt.Errorf("boom")

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	b.HandleCloseAll(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to close all live chat rooms.")
}
