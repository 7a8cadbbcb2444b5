package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WebSocket message types from client.
const (
	MsgTypeJoin        = "join"
	MsgTypeChatMessage = "chat_message"
)

// WebSocket message types to client.
const (
	MsgTypeChatHistory     = "chat_history"
	MsgTypeNewMessage      = "new_message"
	MsgTypeSentimentUpdate = "sentiment_update"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidJoin        = errors.New("join requires participantId and topicId")
)

// envelope is decoded first to dispatch on the type tag.
type envelope struct {
	Type string `json:"type"`
}

// --- Client -> Server payloads ---

// ClientMessage is the closed set of payloads a client may send.
type ClientMessage interface{ isClientMessage() }

type JoinMessage struct {
	Type          string    `json:"type"`
	ParticipantID uuid.UUID `json:"participantId"`
	TopicID       int64     `json:"topicId"`
}

func (JoinMessage) isClientMessage() {}

type ChatMessageIn struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (ChatMessageIn) isClientMessage() {}

// DecodeClientMessage parses a raw frame into one of the typed client
// payloads. Malformed JSON, an unknown type tag, or an incomplete join all
// return an error; callers log and drop the frame without replying.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed payload: %w", err)
	}

	switch env.Type {
	case MsgTypeJoin:
		var msg JoinMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("malformed join payload: %w", err)
		}
		if msg.ParticipantID == uuid.Nil || msg.TopicID == 0 {
			return nil, ErrInvalidJoin
		}
		return msg, nil
	case MsgTypeChatMessage:
		var msg ChatMessageIn
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("malformed chat payload: %w", err)
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}
}

// --- Server -> Client payloads ---

// WireAuthor is the public slice of a user profile sent over the wire.
type WireAuthor struct {
	ID              uuid.UUID `json:"id"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	ProfileImageURL string    `json:"profileImageUrl"`
}

// WireMessage is a chat message as broadcast to viewers, with the sentiment
// score and author profile attached.
type WireMessage struct {
	ID           uuid.UUID  `json:"id"`
	TopicID      int64      `json:"topicId"`
	AuthorID     uuid.UUID  `json:"authorId"`
	Content      string     `json:"content"`
	Sentiment    *float64   `json:"sentiment"`
	CommonGround bool       `json:"commonGround"`
	CreatedAt    time.Time  `json:"createdAt"`
	Author       WireAuthor `json:"author"`
}

type ChatHistoryMessage struct {
	Type     string        `json:"type"`
	Messages []WireMessage `json:"messages"`
}

type NewMessageBroadcast struct {
	Type    string      `json:"type"`
	Message WireMessage `json:"message"`
}

type SentimentUpdateBroadcast struct {
	Type               string  `json:"type"`
	AvgSentiment       float64 `json:"avgSentiment"`
	PositivePercentage float64 `json:"positivePercentage"`
}

// NewWireMessage converts a stored message plus its author profile into the
// wire representation.
func NewWireMessage(msg Message, author User) WireMessage {
	return WireMessage{
		ID:           msg.ID,
		TopicID:      msg.QuestionID,
		AuthorID:     msg.UserID,
		Content:      msg.Content,
		Sentiment:    msg.Sentiment,
		CommonGround: msg.CommonGround,
		CreatedAt:    msg.CreatedAt,
		Author: WireAuthor{
			ID:              author.ID,
			FirstName:       author.FirstName,
			LastName:        author.LastName,
			ProfileImageURL: author.ProfileImageURL,
		},
	}
}

func NewChatHistory(messages []WireMessage) ChatHistoryMessage {
	return ChatHistoryMessage{Type: MsgTypeChatHistory, Messages: messages}
}

func NewNewMessage(msg WireMessage) NewMessageBroadcast {
	return NewMessageBroadcast{Type: MsgTypeNewMessage, Message: msg}
}

func NewSentimentUpdate(avgSentiment, positivePercentage float64) SentimentUpdateBroadcast {
	return SentimentUpdateBroadcast{
		Type:               MsgTypeSentimentUpdate,
		AvgSentiment:       avgSentiment,
		PositivePercentage: positivePercentage,
	}
}
