package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/epathshala/portal-api/internal/models"
	appErrors "github.com/epathshala/portal-api/pkg/errors"
)

const (
	// DestinationPublic receives chat.addUser announcements.
	DestinationPublic = "/topic/public"
	chatSystemSender  = "System"
	chatPreviewRunes  = 120
)

// ChatRoomTopic is the broadcast destination of a room.
func ChatRoomTopic(roomID string) string {
	return "/topic/chat." + roomID
}

type chatRepository interface {
	Save(ctx context.Context, msg *models.ChatMessage) error
	ListByRoom(ctx context.Context, roomID string, limit int) ([]models.ChatMessage, error)
}

type chatNotifier interface {
	Notify(ctx context.Context, in models.NotificationInput) (*models.Notification, error)
}

// ChatService persists room messages and builds the system messages sent on
// join and leave.
type ChatService struct {
	repo         chatRepository
	notifier     chatNotifier
	validator    *validator.Validate
	logger       *zap.Logger
	historyLimit int
	now          func() time.Time
}

// NewChatService constructs the service. notifier may be nil.
func NewChatService(repo chatRepository, notifier chatNotifier, validate *validator.Validate, logger *zap.Logger, historyLimit int) *ChatService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &ChatService{
		repo:         repo,
		notifier:     notifier,
		validator:    validate,
		logger:       logger,
		historyLimit: historyLimit,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func displayName(claims *models.JWTClaims) string {
	if name := strings.TrimSpace(claims.FullName); name != "" {
		return name
	}
	return claims.Email
}

// SendMessage stores a message from sender in the requested room. Thread
// creation is recorded as a system message. A recipient, when given, also
// receives a notification.
func (s *ChatService) SendMessage(ctx context.Context, sender *models.JWTClaims, req models.ChatSendRequest) (*models.ChatMessage, error) {
	if sender == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "You must be logged in to send messages")
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid chat message")
	}

	msg := &models.ChatMessage{
		RoomID:     string(req.ChatRoomID),
		SenderID:   sender.UserID,
		SenderName: displayName(sender),
		Content:    req.Message,
		Type:       models.ChatMessageChat,
		CreatedAt:  s.now(),
	}
	if req.MessageType == models.ChatThreadCreate {
		msg.Content = "New thread created: " + req.Message
		msg.Type = models.ChatMessageSystem
	}
	if err := s.repo.Save(ctx, msg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save chat message")
	}

	if req.RecipientID != "" && req.RecipientID != sender.UserID {
		s.notifyRecipient(ctx, sender, req.RecipientID, msg)
	}
	return msg, nil
}

func (s *ChatService) notifyRecipient(ctx context.Context, sender *models.JWTClaims, recipientID string, msg *models.ChatMessage) {
	if s.notifier == nil {
		return
	}
	senderID := sender.UserID
	actionURL := "/chat"
	actionText := "Open Chat"
	preview := []rune(msg.Content)
	if len(preview) > chatPreviewRunes {
		preview = append(preview[:chatPreviewRunes], '…')
	}
	_, err := s.notifier.Notify(ctx, models.NotificationInput{
		Title:       "New message from " + msg.SenderName,
		Content:     string(preview),
		Type:        models.NotificationTypeChatMessage,
		SenderID:    &senderID,
		RecipientID: recipientID,
		ActionURL:   &actionURL,
		ActionText:  &actionText,
	})
	if err != nil {
		s.logger.Warn("failed to notify chat recipient", zap.String("recipient_id", recipientID), zap.Error(err))
	}
}

// JoinRoom records and returns the JOIN message for the room.
func (s *ChatService) JoinRoom(ctx context.Context, sender *models.JWTClaims, req models.ChatRoomRequest) (*models.ChatMessage, error) {
	return s.roomEvent(ctx, sender, req, models.ChatMessageJoin, " joined the chat")
}

// LeaveRoom records and returns the LEAVE message for the room.
func (s *ChatService) LeaveRoom(ctx context.Context, sender *models.JWTClaims, req models.ChatRoomRequest) (*models.ChatMessage, error) {
	return s.roomEvent(ctx, sender, req, models.ChatMessageLeave, " left the chat")
}

func (s *ChatService) roomEvent(ctx context.Context, sender *models.JWTClaims, req models.ChatRoomRequest, kind models.ChatMessageType, suffix string) (*models.ChatMessage, error) {
	if sender == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Authentication required to join chat")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid room")
	}
	msg := &models.ChatMessage{
		RoomID:     string(req.RoomID),
		SenderID:   sender.UserID,
		SenderName: chatSystemSender,
		Content:    displayName(sender) + suffix,
		Type:       kind,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Save(ctx, msg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record room event")
	}
	return msg, nil
}

// AddUser builds the public greeting for a newly connected user. It is not
// stored.
func (s *ChatService) AddUser(sender *models.JWTClaims) (*models.ChatMessage, error) {
	if sender == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Authentication required to join chat")
	}
	return &models.ChatMessage{
		SenderID:   sender.UserID,
		SenderName: chatSystemSender,
		Content:    displayName(sender) + " joined the chat!",
		Type:       models.ChatMessageSystem,
		CreatedAt:  s.now(),
	}, nil
}

// History returns the most recent messages of a room, oldest first.
func (s *ChatService) History(ctx context.Context, roomID string, limit int) (*models.ChatHistory, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "room id is required")
	}
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	messages, err := s.repo.ListByRoom(ctx, roomID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load chat history")
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	return &models.ChatHistory{RoomID: roomID, Messages: messages}, nil
}
