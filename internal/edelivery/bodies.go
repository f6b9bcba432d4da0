package edelivery

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	idmodels "efti-gate/internal/identifiers/models"
)

// Root element names of the peer documents.
const (
	RootUILQuery               = "UILQuery"
	RootUILResponse            = "UILResponse"
	RootIdentifierQuery        = "IdentifierQuery"
	RootIdentifierResponse     = "IdentifierResponse"
	RootPostFollowUpRequest    = "PostFollowUpRequest"
	RootSaveIdentifiersRequest = "SaveIdentifiersRequest"
)

// UIL addresses one dataset on one platform behind one gate.
type UIL struct {
	GateID     string `xml:"gateId"`
	PlatformID string `xml:"platformId"`
	DatasetID  string `xml:"datasetId"`
}

type UILQuery struct {
	XMLName   xml.Name `xml:"UILQuery"`
	RequestID string   `xml:"requestId,attr"`
	UIL       UIL      `xml:"uil"`
	SubsetIDs []string `xml:"subsetId"`
}

// RawXML keeps a dataset fragment byte for byte.
type RawXML struct {
	Inner []byte `xml:",innerxml"`
}

// Fragment wraps a platform document for embedding, dropping its XML
// declaration.
func Fragment(doc []byte) *RawXML {
	doc = bytes.TrimSpace(doc)
	if bytes.HasPrefix(doc, []byte("<?xml")) {
		if end := bytes.Index(doc, []byte("?>")); end >= 0 {
			doc = bytes.TrimSpace(doc[end+2:])
		}
	}
	return &RawXML{Inner: doc}
}

type UILResponse struct {
	XMLName     xml.Name `xml:"UILResponse"`
	RequestID   string   `xml:"requestId,attr"`
	Status      string   `xml:"status,attr"`
	Description string   `xml:"description,omitempty"`
	Consignment *RawXML  `xml:"consignment,omitempty"`
}

type IdentifierQuery struct {
	XMLName                 xml.Name `xml:"IdentifierQuery"`
	RequestID               string   `xml:"requestId,attr"`
	Identifier              string   `xml:"identifier"`
	IdentifierTypes         []string `xml:"identifierType"`
	ModeCode                string   `xml:"modeCode,omitempty"`
	RegistrationCountryCode string   `xml:"registrationCountryCode,omitempty"`
	DangerousGoodsIndicator *bool    `xml:"dangerousGoodsIndicator,omitempty"`
}

type IdentifierResponse struct {
	XMLName      xml.Name               `xml:"IdentifierResponse"`
	RequestID    string                 `xml:"requestId,attr"`
	Status       string                 `xml:"status,attr"`
	Description  string                 `xml:"description,omitempty"`
	Consignments []idmodels.Consignment `xml:"consignment"`
}

type PostFollowUpRequest struct {
	XMLName   xml.Name `xml:"PostFollowUpRequest"`
	RequestID string   `xml:"requestId,attr"`
	UIL       *UIL     `xml:"uil,omitempty"`
	Message   string   `xml:"message"`
}

// SaveIdentifiersRequest is a platform registering a dataset's identifiers.
type SaveIdentifiersRequest struct {
	XMLName     xml.Name             `xml:"SaveIdentifiersRequest"`
	RequestID   string               `xml:"requestId,attr"`
	DatasetID   string               `xml:"datasetId"`
	Consignment idmodels.Consignment `xml:"consignment"`
}

// Marshal renders a peer document with the XML declaration.
func Marshal(v any) ([]byte, error) {
	out, err := xml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return append([]byte(xml.Header), out...), nil
}

// Unmarshal decodes a peer document into v.
func Unmarshal(body []byte, v any) error {
	if err := xml.Unmarshal(body, v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

// RootElement returns the local name of the first element in body.
func RootElement(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", errors.New("no root element")
			}
			return "", fmt.Errorf("read root element: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}
