package edelivery

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NotificationType is what the access point reports about a message.
type NotificationType string

const (
	NotificationReceived    NotificationType = "RECEIVED"
	NotificationSendSuccess NotificationType = "SEND_SUCCESS"
	NotificationSendFailure NotificationType = "SEND_FAILURE"
)

// Notification is one access point event as published on the notification topic.
type Notification struct {
	Type           NotificationType `json:"type"`
	MessageID      string           `json:"messageId"`
	ConversationID string           `json:"conversationId,omitempty"`
	FromPartyID    string           `json:"fromPartyId,omitempty"`
	Body           string           `json:"body,omitempty"`
}

// ParseNotification decodes and checks a notification record.
func ParseNotification(raw []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	n.Type = NotificationType(strings.ToUpper(strings.TrimSpace(string(n.Type))))
	switch n.Type {
	case NotificationReceived:
		if strings.TrimSpace(n.Body) == "" {
			return Notification{}, fmt.Errorf("notification %s has no body", n.MessageID)
		}
	case NotificationSendSuccess, NotificationSendFailure:
	default:
		return Notification{}, fmt.Errorf("unknown notification type %q", n.Type)
	}
	if n.MessageID == "" {
		return Notification{}, fmt.Errorf("notification has no message id")
	}
	return n, nil
}
