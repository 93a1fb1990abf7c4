// Package protocol defines the signaling messages exchanged over the
// WebSocket channel.
//
// Client-to-server messages are decoded once at the connection boundary
// into a closed set of typed variants; the router dispatches on the
// concrete type rather than re-inspecting raw JSON. Server-to-client
// messages carry their type tag in the payload.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mlindgren/callbridge/pkg/model"
)

// MaxMessageSize is the maximum accepted inbound frame size (64KB).
// SDP offers with many candidates stay well below this.
const MaxMessageSize = 65536

var (
	ErrMissingType   = errors.New("protocol: message has no type")
	ErrUnknownType   = errors.New("protocol: unknown message type")
	ErrMissingTarget = errors.New("protocol: message has no target_user_id")
	ErrMissingField  = errors.New("protocol: missing required field")
)

// Client-to-server message type tags.
const (
	TypeCallUser     = "call_user"
	TypeAnswerCall   = "answer_call"
	TypeICECandidate = "ice_candidate"
	TypeCallDeclined = "call_declined"
	TypeCallEnded    = "call_ended"
)

// Server-to-client message type tags.
const (
	TypeIncomingCall = "incoming_call"
	TypeCallAnswered = "call_answered"
	TypeOnlineUsers  = "online_users"
	TypeError        = "error"
)

// ClientMessage is a decoded client-to-server signaling message.
// Exactly one concrete type exists per accepted wire tag.
type ClientMessage interface {
	clientMessage()
}

// CallUser initiates a call: the opaque SDP offer is relayed to the target.
type CallUser struct {
	TargetUserID int64
	Offer        json.RawMessage
}

// AnswerCall accepts a call: the opaque SDP answer is relayed back.
type AnswerCall struct {
	TargetUserID int64
	Answer       json.RawMessage
}

// ICECandidate relays one ICE candidate to the target.
type ICECandidate struct {
	TargetUserID int64
	Candidate    json.RawMessage
}

// CallDeclined tells the target their call was declined.
type CallDeclined struct {
	TargetUserID int64
}

// CallEnded tells the target the call has been hung up.
type CallEnded struct {
	TargetUserID int64
}

func (CallUser) clientMessage()     {}
func (AnswerCall) clientMessage()   {}
func (ICECandidate) clientMessage() {}
func (CallDeclined) clientMessage() {}
func (CallEnded) clientMessage()    {}

// wireMessage is the raw client frame shape before dispatch.
type wireMessage struct {
	Type         string          `json:"type"`
	TargetUserID int64           `json:"target_user_id"`
	Offer        json.RawMessage `json:"offer"`
	Answer       json.RawMessage `json:"answer"`
	Candidate    json.RawMessage `json:"candidate"`
}

// DecodeClientMessage parses a raw frame into its typed variant.
// Malformed JSON, a missing type tag, or a missing required field yield an
// error; an unrecognized type tag yields ErrUnknownType so the caller can
// drop it silently while treating everything else as malformed.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("protocol: unmarshal: %w", err)
	}
	if w.Type == "" {
		return nil, ErrMissingType
	}

	switch w.Type {
	case TypeCallUser:
		if w.TargetUserID == 0 {
			return nil, ErrMissingTarget
		}
		if len(w.Offer) == 0 {
			return nil, fmt.Errorf("%w: offer", ErrMissingField)
		}
		return CallUser{TargetUserID: w.TargetUserID, Offer: w.Offer}, nil
	case TypeAnswerCall:
		if w.TargetUserID == 0 {
			return nil, ErrMissingTarget
		}
		if len(w.Answer) == 0 {
			return nil, fmt.Errorf("%w: answer", ErrMissingField)
		}
		return AnswerCall{TargetUserID: w.TargetUserID, Answer: w.Answer}, nil
	case TypeICECandidate:
		if w.TargetUserID == 0 {
			return nil, ErrMissingTarget
		}
		if len(w.Candidate) == 0 {
			return nil, fmt.Errorf("%w: candidate", ErrMissingField)
		}
		return ICECandidate{TargetUserID: w.TargetUserID, Candidate: w.Candidate}, nil
	case TypeCallDeclined:
		if w.TargetUserID == 0 {
			return nil, ErrMissingTarget
		}
		return CallDeclined{TargetUserID: w.TargetUserID}, nil
	case TypeCallEnded:
		if w.TargetUserID == 0 {
			return nil, ErrMissingTarget
		}
		return CallEnded{TargetUserID: w.TargetUserID}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, w.Type)
	}
}

// ---- Server-to-client messages ----

// IncomingCall notifies the callee of a call attempt with the caller's offer.
type IncomingCall struct {
	Type         string          `json:"type"`
	FromUserID   int64           `json:"from_user_id"`
	FromUsername string          `json:"from_username"`
	Offer        json.RawMessage `json:"offer"`
}

// CallAnswered delivers the callee's answer to the caller.
type CallAnswered struct {
	Type   string          `json:"type"`
	Answer json.RawMessage `json:"answer"`
}

// ICECandidateEvent delivers a relayed ICE candidate.
type ICECandidateEvent struct {
	Type      string          `json:"type"`
	Candidate json.RawMessage `json:"candidate"`
}

// CallDeclinedEvent notifies the caller who declined.
type CallDeclinedEvent struct {
	Type string `json:"type"`
	By   int64  `json:"by"`
}

// CallEndedEvent notifies the peer the call is over.
type CallEndedEvent struct {
	Type string `json:"type"`
}

// OnlineUsers is the presence snapshot pushed on every connect and
// disconnect. CurrentUserID is personalized per recipient.
type OnlineUsers struct {
	Type          string             `json:"type"`
	Users         []model.OnlineUser `json:"users"`
	CurrentUserID int64              `json:"current_user_id"`
}

// ErrorMessage is an in-band error surfaced to the sender.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewIncomingCall(fromUserID int64, fromUsername string, offer json.RawMessage) IncomingCall {
	return IncomingCall{Type: TypeIncomingCall, FromUserID: fromUserID, FromUsername: fromUsername, Offer: offer}
}

func NewCallAnswered(answer json.RawMessage) CallAnswered {
	return CallAnswered{Type: TypeCallAnswered, Answer: answer}
}

func NewICECandidateEvent(candidate json.RawMessage) ICECandidateEvent {
	return ICECandidateEvent{Type: TypeICECandidate, Candidate: candidate}
}

func NewCallDeclinedEvent(by int64) CallDeclinedEvent {
	return CallDeclinedEvent{Type: TypeCallDeclined, By: by}
}

func NewCallEndedEvent() CallEndedEvent {
	return CallEndedEvent{Type: TypeCallEnded}
}

func NewOnlineUsers(users []model.OnlineUser, currentUserID int64) OnlineUsers {
	return OnlineUsers{Type: TypeOnlineUsers, Users: users, CurrentUserID: currentUserID}
}

func NewErrorMessage(message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message}
}

// Encode serializes a server-to-client message for the wire.
func Encode(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal: %w", err)
	}
	return data, nil
}
