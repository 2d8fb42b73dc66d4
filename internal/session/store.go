// Package session tracks per-user conversational state for the bridge:
// platform credentials, visitor tokens, open livechat rooms and the
// inactivity watchdog that closes rooms after user silence.
package session

import (
	"sync"
	"time"
)

// Record holds the bridge-side state for a single external user.
// Records are passed around by value; all mutation goes through the Store
// so the room index stays consistent.
type Record struct {
	// UserID is the external (channel-side) user identifier, the store key.
	UserID   string
	Username string

	// AuthToken and PlatformUserID are set once after the first successful
	// login and reused for every later platform call.
	AuthToken      string
	PlatformUserID string

	// VisitorToken is minted at most once per user and never regenerated
	// while the record exists.
	VisitorToken string

	// LiveChatRoomID is the open livechat room, empty when no room is open.
	// OriginRoomID is the channel the user messaged from, used to route
	// agent replies back.
	LiveChatRoomID string
	OriginRoomID   string

	LastMessageText string
	LastMessageAt   time.Time
}

// HasRoom reports whether the user currently has an open livechat room.
func (r Record) HasRoom() bool {
	return r.LiveChatRoomID != ""
}

// Store is a process-wide table of session records keyed by external user ID,
// with a secondary index from livechat room ID back to the owning user.
// All methods are safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	records   map[string]*Record
	roomIndex map[string]string // livechat room ID -> user ID
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		records:   make(map[string]*Record),
		roomIndex: make(map[string]string),
	}
}

// GetOrCreate returns the record for userID, creating it if absent.
// Creation is idempotent: a user has at most one record at any time.
func (s *Store) GetOrCreate(userID, username string) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		rec = &Record{UserID: userID, Username: username}
		s.records[userID] = rec
	} else if username != "" {
		rec.Username = username
	}
	return *rec
}

// Get returns a copy of the record for userID.
func (s *Store) Get(userID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// UserByRoom resolves the record owning the given livechat room ID.
func (s *Store) UserByRoom(roomID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.roomIndex[roomID]
	if !ok {
		return Record{}, false
	}
	rec, ok := s.records[userID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// SetCredentials stores the platform auth token and user ID after a login.
func (s *Store) SetCredentials(userID, authToken, platformUserID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[userID]; ok {
		rec.AuthToken = authToken
		rec.PlatformUserID = platformUserID
	}
}

// EnsureVisitorToken returns the user's visitor token, minting one with the
// supplied function only if none exists yet. The token is persisted before
// this returns, so a later partial failure reuses the same visitor identity.
func (s *Store) EnsureVisitorToken(userID string, mint func() string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return ""
	}
	if rec.VisitorToken == "" {
		rec.VisitorToken = mint()
	}
	return rec.VisitorToken
}

// SetRoom records a newly created livechat room and the originating channel,
// keeping the reverse index in sync.
func (s *Store) SetRoom(userID, liveChatRoomID, originRoomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return
	}
	if rec.LiveChatRoomID != "" {
		delete(s.roomIndex, rec.LiveChatRoomID)
	}
	rec.LiveChatRoomID = liveChatRoomID
	rec.OriginRoomID = originRoomID
	s.roomIndex[liveChatRoomID] = userID
}

// ClearRoom removes the room association for userID and returns the cleared
// room ID. Clearing an already-clear record is a no-op.
func (s *Store) ClearRoom(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok || rec.LiveChatRoomID == "" {
		return "", false
	}
	roomID := rec.LiveChatRoomID
	delete(s.roomIndex, roomID)
	rec.LiveChatRoomID = ""
	rec.OriginRoomID = ""
	return roomID, true
}

// SetLastMessage records the most recent inbound message and its arrival time.
func (s *Store) SetLastMessage(userID, text string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[userID]; ok {
		rec.LastMessageText = text
		rec.LastMessageAt = at
	}
}

// OpenRooms returns a snapshot of all records with an open livechat room.
func (s *Store) OpenRooms() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open []Record
	for _, rec := range s.records {
		if rec.LiveChatRoomID != "" {
			open = append(open, *rec)
		}
	}
	return open
}

// Remove deletes the record for userID along with its room index entry.
func (s *Store) Remove(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return
	}
	if rec.LiveChatRoomID != "" {
		delete(s.roomIndex, rec.LiveChatRoomID)
	}
	delete(s.records, userID)
}

// Len returns the number of tracked users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
