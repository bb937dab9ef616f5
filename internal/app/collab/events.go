// internal/app/collab/events.go
package collab

import (
	"encoding/json"
	"time"
)

// Inbound realtime events.
const (
	EventJoinRoom              = "joinRoom"
	EventLeaveRoom             = "leaveRoom"
	EventCodeChange            = "codeChange"
	EventCursorMove            = "cursorMove"
	EventLanguageChange        = "languageChange"
	EventTitleChange           = "titleChange"
	EventChatMessage           = "chatMessage"
	EventCollaborationResponse = "collaborationResponse"
	EventStartVideoChat        = "startVideoChat"
	EventJoinVideoChat         = "joinVideoChat"
	EventLeaveVideoChat        = "leaveVideoChat"
	EventEndVideoChat          = "endVideoChat"
)

// Outbound realtime events. EventChatMessage, EventCollaborationRequest and
// the signaling events use the same name in both directions.
const (
	EventUserJoined            = "userJoined"
	EventUserLeft              = "userLeft"
	EventCodeUpdate            = "codeUpdate"
	EventCursorUpdate          = "cursorUpdate"
	EventLanguageUpdate        = "languageUpdate"
	EventTitleUpdate           = "titleUpdate"
	EventCollaboratorUpdate    = "collaboratorUpdate"
	EventCollaborationRequest  = "collaborationRequest"
	EventCollaborationAccepted = "collaborationAccepted"
	EventCollaborationRejected = "collaborationRejected"
	EventVideoChatStarted      = "videoChatStarted"
	EventUserJoinedVideoChat   = "userJoinedVideoChat"
	EventUserLeftVideoChat     = "userLeftVideoChat"
	EventVideoChatEnded        = "videoChatEnded"
)

// WebRTC signaling events, relayed verbatim.
const (
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventIceCandidate = "iceCandidate"
)

// Limits on relayed text.
const (
	MaxChatRunes     = 2000
	MaxTitleRunes    = 200
	MaxLanguageRunes = 32
)

type roomMsg struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type codeChangeMsg struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

type cursorMoveMsg struct {
	RoomID   string          `json:"roomId"`
	UserID   string          `json:"userId"`
	Position json.RawMessage `json:"position"`
}

type languageChangeMsg struct {
	RoomID   string `json:"roomId"`
	Language string `json:"language"`
}

type titleChangeMsg struct {
	RoomID string `json:"roomId"`
	Title  string `json:"title"`
}

type chatMsg struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

type collabRequestMsg struct {
	TargetUserID     string `json:"targetUserId"`
	CodeID           string `json:"codeId"`
	RequestingUserID string `json:"requestingUserId"`
}

type collabResponseMsg struct {
	CodeID   string `json:"codeId"`
	UserID   string `json:"userId"`
	Accepted bool   `json:"accepted"`
}

// signalMsg accepts the payload under "payload" or under the field named
// after the event ("offer", "answer", "candidate").
type signalMsg struct {
	RoomID    string          `json:"roomId"`
	Payload   json.RawMessage `json:"payload"`
	Offer     json.RawMessage `json:"offer"`
	Answer    json.RawMessage `json:"answer"`
	Candidate json.RawMessage `json:"candidate"`
}

type videoMsg struct {
	CodeID string `json:"codeId"`
	UserID string `json:"userId"`
}

// Presence is the payload of userJoined and userLeft.
type Presence struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// CodeUpdate is relayed to the other members of a room.
type CodeUpdate struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

// CursorUpdate carries an opaque editor position.
type CursorUpdate struct {
	RoomID   string          `json:"roomId"`
	UserID   string          `json:"userId"`
	Position json.RawMessage `json:"position,omitempty"`
}

type LanguageUpdate struct {
	RoomID   string `json:"roomId"`
	Language string `json:"language"`
}

type TitleUpdate struct {
	RoomID string `json:"roomId"`
	Title  string `json:"title"`
}

// ChatMessage is delivered to every member of the room, the sender
// included.
type ChatMessage struct {
	RoomID  string    `json:"roomId"`
	UserID  string    `json:"userId"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sentAt"`
}

type CollaboratorUpdate struct {
	RoomID        string   `json:"roomId"`
	Collaborators []string `json:"collaborators"`
}

// CollaborationRequest is sent to the project owner.
type CollaborationRequest struct {
	ID           string `json:"id"`
	RequesterID  string `json:"requesterId"`
	Requester    string `json:"requester"`
	CodeID       string `json:"codeId"`
	ProjectTitle string `json:"projectTitle"`
}

type CollaborationRejected struct {
	CodeID string `json:"codeId"`
}

// Signal wraps a relayed WebRTC message.
type Signal struct {
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

type VideoStarted struct {
	CodeID    string `json:"codeId"`
	Initiator string `json:"initiator"`
}

type VideoParticipant struct {
	CodeID string `json:"codeId"`
	UserID string `json:"userId"`
}

type VideoEnded struct {
	CodeID string `json:"codeId"`
}
