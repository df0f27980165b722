package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/xelth-com/eckdesk/internal/models"
)

// HistoryLimit is the number of earlier messages sent along with a new question
const HistoryLimit = 20

// Conversation roles understood by the model
const (
	RoleUser  = "user"
	RoleModel = "model"
)

var (
	// ErrEmptyMessage is returned for a blank question
	ErrEmptyMessage = errors.New("message is empty")
	// ErrUnavailable is returned when no model is configured
	ErrUnavailable = errors.New("assistant is not configured")
)

// Turn is one message of the conversation history
type Turn struct {
	Role string
	Text string
}

// Generator produces the assistant's answer
type Generator interface {
	Chat(ctx context.Context, history []Turn, message string) (string, error)
}

// ChatStore keeps the conversation transcripts
type ChatStore interface {
	// Recent returns up to limit of the user's latest messages, oldest first
	Recent(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error)
	Append(ctx context.Context, msgs ...*models.ChatMessage) error
}

// Assistant answers service desk questions and records the transcript
type Assistant struct {
	gen   Generator
	store ChatStore
	now   func() time.Time
}

// NewAssistant creates an assistant. gen may be nil when no model is configured;
// every reply is then the apology text.
func NewAssistant(gen Generator, store ChatStore) *Assistant {
	return &Assistant{gen: gen, store: store, now: time.Now}
}

// Greeting is the bot message that opens an empty conversation
func Greeting() models.ChatMessage {
	return models.ChatMessage{Sender: models.SenderBot, Content: GreetingText}
}

// Transcript returns the user's recent messages, or the greeting when there are none
func (a *Assistant) Transcript(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error) {
	msgs, err := a.store.Recent(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		g := Greeting()
		g.UserID = userID
		g.CreatedAt = a.now().UTC()
		return []models.ChatMessage{g}, nil
	}
	return msgs, nil
}

// Reply answers message in the context of the user's recent conversation. Both turns
// are stored. When the model fails the reply carries the apology text and the error
// is returned alongside it.
func (a *Assistant) Reply(ctx context.Context, userID, message string) (*models.ChatMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	recent, err := a.store.Recent(ctx, userID, HistoryLimit)
	if err != nil {
		return nil, err
	}

	question := &models.ChatMessage{
		UserID:    userID,
		Sender:    models.SenderUser,
		Content:   message,
		CreatedAt: a.now().UTC(),
	}

	var answer string
	var genErr error
	if a.gen == nil {
		genErr = ErrUnavailable
	} else {
		answer, genErr = a.gen.Chat(ctx, BuildHistory(recent), message)
		if genErr == nil && strings.TrimSpace(answer) == "" {
			genErr = fmt.Errorf("empty answer")
		}
	}
	if genErr != nil {
		log.Printf("⚠️ Assistant: generation failed for %s: %v", userID, genErr)
		answer = ApologyText
	}

	reply := &models.ChatMessage{
		UserID:    userID,
		Sender:    models.SenderBot,
		Content:   answer,
		CreatedAt: question.CreatedAt.Add(time.Millisecond),
	}
	if err := a.store.Append(ctx, question, reply); err != nil {
		return nil, fmt.Errorf("failed to store chat turn: %w", err)
	}

	if genErr != nil {
		return reply, fmt.Errorf("assistant reply: %w", genErr)
	}
	return reply, nil
}

// BuildHistory converts stored messages into model turns. The model expects
// alternating roles starting with the user, so leading bot messages are dropped and
// consecutive messages from the same side are merged.
func BuildHistory(msgs []models.ChatMessage) []Turn {
	var turns []Turn
	for _, m := range msgs {
		role := RoleUser
		if m.Sender == models.SenderBot {
			role = RoleModel
		}
		if len(turns) == 0 && role == RoleModel {
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].Role == role {
			turns[n-1].Text += "\n\n" + m.Content
			continue
		}
		turns = append(turns, Turn{Role: role, Text: m.Content})
	}
	// the new question is sent as the next user turn
	if n := len(turns); n > 0 && turns[n-1].Role == RoleUser {
		turns = turns[:n-1]
	}
	return turns
}

// GormChatStore keeps transcripts in PostgreSQL
type GormChatStore struct {
	db *gorm.DB
}

// NewGormChatStore creates a transcript store on db
func NewGormChatStore(db *gorm.DB) *GormChatStore {
	return &GormChatStore{db: db}
}

// Recent returns up to limit of the user's latest messages, oldest first
func (s *GormChatStore) Recent(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Append stores messages in order
func (s *GormChatStore) Append(ctx context.Context, msgs ...*models.ChatMessage) error {
	return s.db.WithContext(ctx).Create(msgs).Error
}
