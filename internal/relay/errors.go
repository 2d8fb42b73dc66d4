package relay

import "errors"

var (
	// ErrDuplicateMessage marks a message dropped because its ID matched
	// the previously processed one.
	ErrDuplicateMessage = errors.New("duplicate message")

	// ErrLoopPrevented marks a message dropped because it originated from
	// the bridge's own bot user or was a system message.
	ErrLoopPrevented = errors.New("bot or system message")

	// ErrUpstreamAuth indicates the platform login failed.
	ErrUpstreamAuth = errors.New("platform login failed")

	// ErrUpstreamRoomSetup indicates contact or room creation failed after
	// a successful login.
	ErrUpstreamRoomSetup = errors.New("failed to create omnichannel contact or livechat room")
)
