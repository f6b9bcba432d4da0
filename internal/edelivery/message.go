package edelivery

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrDispatch marks every failure to hand a message to the access point.
var ErrDispatch = errors.New("edelivery dispatch failed")

const messageIDSuffix = "domibus.eu"

// Message is one outbound peer document.
type Message struct {
	// ConversationID is the Control's requestId; peers echo it back.
	ConversationID string
	Receiver       string
	// MessageID is optional; the access point assigns one when empty.
	MessageID string
	Body      []byte
}

// NewMessageID returns an ebMS message id in the uuid@domibus.eu form.
func NewMessageID() string {
	return uuid.NewString() + "@" + messageIDSuffix
}

// Status is the eDelivery status code carried by peer responses.
type Status string

const (
	StatusOK                  Status = "200"
	StatusBadRequest          Status = "400"
	StatusNotFound            Status = "404"
	StatusInternalServerError Status = "500"
	StatusNotImplemented      Status = "501"
	StatusBadGateway          Status = "502"
	StatusServiceUnavailable  Status = "503"
	StatusGatewayTimeout      Status = "504"
)

// ParseStatus accepts only the codes the peer protocol defines.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.TrimSpace(s)); st {
	case StatusOK, StatusBadRequest, StatusNotFound, StatusInternalServerError,
		StatusNotImplemented, StatusBadGateway, StatusServiceUnavailable, StatusGatewayTimeout:
		return st, true
	}
	return "", false
}
