// Package edelivery builds ebMS3 user messages for the access point web
// service and parses the peer documents gates exchange through it.
package edelivery

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
)

const (
	PartyType     = "urn:oasis:names:tc:ebcore:partyid-type:unregistered"
	RoleInitiator = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/initiator"
	RoleResponder = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/responder"
	Action        = "eftiGateAction"
	PayloadHref   = "cid:message"
	TextXML       = "text/xml"

	propOriginalSender = "originalSender"
	propFinalRecipient = "finalRecipient"
	originalSenderC1   = "urn:oasis:names:tc:ebcore:partyid-type:unregistered:C1"
	finalRecipientC4   = "urn:oasis:names:tc:ebcore:partyid-type:unregistered:C4"
)

// Messaging is the ebMS3 header block.
type Messaging struct {
	XMLName     xml.Name    `xml:"http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/ Messaging"`
	UserMessage UserMessage `xml:"UserMessage"`
}

type UserMessage struct {
	MessageInfo       *MessageInfo      `xml:"MessageInfo,omitempty"`
	PartyInfo         PartyInfo         `xml:"PartyInfo"`
	CollaborationInfo CollaborationInfo `xml:"CollaborationInfo"`
	MessageProperties MessageProperties `xml:"MessageProperties"`
	PayloadInfo       PayloadInfo       `xml:"PayloadInfo"`
}

type MessageInfo struct {
	MessageID string `xml:"MessageId"`
}

type PartyInfo struct {
	From Party `xml:"From"`
	To   Party `xml:"To"`
}

type Party struct {
	PartyID PartyID `xml:"PartyId"`
	Role    string  `xml:"Role"`
}

type PartyID struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type CollaborationInfo struct {
	Service        Service `xml:"Service"`
	Action         string  `xml:"Action"`
	ConversationID string  `xml:"ConversationId"`
}

type Service struct {
	Type  string `xml:"type,attr,omitempty"`
	Value string `xml:",chardata"`
}

type MessageProperties struct {
	Properties []Property `xml:"Property"`
}

type Property struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type PayloadInfo struct {
	PartInfo []PartInfo `xml:"PartInfo"`
}

type PartInfo struct {
	Href           string     `xml:"href,attr"`
	PartProperties []Property `xml:"PartProperties>Property"`
}

// SubmitRequest is the web service body; payload values are base64 encoded.
type SubmitRequest struct {
	XMLName  xml.Name       `xml:"http://eu.domibus.wsplugin/ submitRequest"`
	Payloads []LargePayload `xml:"payload"`
}

type LargePayload struct {
	PayloadID   string `xml:"payloadId,attr"`
	ContentType string `xml:"contentType,attr"`
	Value       string `xml:"value"`
}

type soapEnvelope struct {
	XMLName xml.Name   `xml:"http://www.w3.org/2003/05/soap-envelope Envelope"`
	Header  soapHeader `xml:"http://www.w3.org/2003/05/soap-envelope Header"`
	Body    soapBody   `xml:"http://www.w3.org/2003/05/soap-envelope Body"`
}

type soapHeader struct {
	Messaging Messaging
}

type soapBody struct {
	Submit SubmitRequest
}

// Addressing is the sending party and service every envelope carries.
type Addressing struct {
	Sender       string
	ServiceType  string
	ServiceValue string
}

// NewUserMessage fills the ebMS header for msg. MessageInfo is only set when
// the caller pre-generated an id.
func NewUserMessage(a Addressing, msg Message) UserMessage {
	um := UserMessage{
		PartyInfo: PartyInfo{
			From: Party{PartyID: PartyID{Type: PartyType, Value: a.Sender}, Role: RoleInitiator},
			To:   Party{PartyID: PartyID{Type: PartyType, Value: msg.Receiver}, Role: RoleResponder},
		},
		CollaborationInfo: CollaborationInfo{
			Service:        Service{Type: a.ServiceType, Value: a.ServiceValue},
			Action:         Action,
			ConversationID: msg.ConversationID,
		},
		MessageProperties: MessageProperties{Properties: []Property{
			{Name: propOriginalSender, Value: originalSenderC1},
			{Name: propFinalRecipient, Value: finalRecipientC4},
		}},
		PayloadInfo: PayloadInfo{PartInfo: []PartInfo{{
			Href:           PayloadHref,
			PartProperties: []Property{{Name: "MimeType", Value: TextXML}},
		}}},
	}
	if msg.MessageID != "" {
		um.MessageInfo = &MessageInfo{MessageID: msg.MessageID}
	}
	return um
}

// BuildSubmitRequest renders the complete SOAP request for msg.
func BuildSubmitRequest(a Addressing, msg Message) ([]byte, error) {
	var env soapEnvelope
	env.Header.Messaging.UserMessage = NewUserMessage(a, msg)
	env.Body.Submit.Payloads = []LargePayload{{
		PayloadID:   PayloadHref,
		ContentType: TextXML,
		Value:       base64.StdEncoding.EncodeToString(msg.Body),
	}}
	out, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal submit request: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

type soapResponse struct {
	Body struct {
		Submit *struct {
			MessageIDs []string `xml:"messageID"`
		} `xml:"submitResponse"`
		Fault *struct {
			Reason      string `xml:"Reason>Text"`
			FaultString string `xml:"faultstring"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

// parseSubmitResponse returns the AP-assigned message ids or the fault text.
func parseSubmitResponse(body []byte) (ids []string, fault string, err error) {
	var resp soapResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, "", fmt.Errorf("decode submit response: %w", err)
	}
	if f := resp.Body.Fault; f != nil {
		fault = f.Reason
		if fault == "" {
			fault = f.FaultString
		}
		if fault == "" {
			fault = "unspecified fault"
		}
		return nil, fault, nil
	}
	if resp.Body.Submit != nil {
		for _, id := range resp.Body.Submit.MessageIDs {
			if id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, "", nil
}
