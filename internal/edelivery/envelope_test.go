package edelivery

import (
	"encoding/base64"
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envelopeView decodes the rendered request by local names only.
type envelopeView struct {
	Header struct {
		Messaging struct {
			UserMessage UserMessage `xml:"UserMessage"`
		} `xml:"Messaging"`
	} `xml:"Header"`
	Body struct {
		Submit struct {
			Payloads []LargePayload `xml:"payload"`
		} `xml:"submitRequest"`
	} `xml:"Body"`
}

func TestBuildSubmitRequest(t *testing.T) {
	a := Addressing{Sender: "borduria", ServiceType: "eDelivery", ServiceValue: "eFTI"}
	msg := Message{
		ConversationID: "0f3e8a6c-1c57-4b3e-9d5e-2f1a3b4c5d6e",
		Receiver:       "syldavia",
		MessageID:      "a1b2@domibus.eu",
		Body:           []byte("<UILQuery/>"),
	}

	out, err := BuildSubmitRequest(a, msg)
	require.NoError(t, err)

	var view envelopeView
	require.NoError(t, xml.Unmarshal(out, &view))
	um := view.Header.Messaging.UserMessage

	require.NotNil(t, um.MessageInfo)
	assert.Equal(t, "a1b2@domibus.eu", um.MessageInfo.MessageID)

	assert.Equal(t, "borduria", um.PartyInfo.From.PartyID.Value)
	assert.Equal(t, PartyType, um.PartyInfo.From.PartyID.Type)
	assert.Equal(t, RoleInitiator, um.PartyInfo.From.Role)
	assert.Equal(t, "syldavia", um.PartyInfo.To.PartyID.Value)
	assert.Equal(t, RoleResponder, um.PartyInfo.To.Role)

	assert.Equal(t, Action, um.CollaborationInfo.Action)
	assert.Equal(t, msg.ConversationID, um.CollaborationInfo.ConversationID)
	assert.Equal(t, "eDelivery", um.CollaborationInfo.Service.Type)
	assert.Equal(t, "eFTI", um.CollaborationInfo.Service.Value)

	require.Len(t, um.MessageProperties.Properties, 2)
	assert.Equal(t, "originalSender", um.MessageProperties.Properties[0].Name)
	assert.Equal(t, "finalRecipient", um.MessageProperties.Properties[1].Name)

	require.Len(t, um.PayloadInfo.PartInfo, 1)
	assert.Equal(t, PayloadHref, um.PayloadInfo.PartInfo[0].Href)
	assert.Equal(t, []Property{{Name: "MimeType", Value: TextXML}}, um.PayloadInfo.PartInfo[0].PartProperties)

	require.Len(t, view.Body.Submit.Payloads, 1)
	p := view.Body.Submit.Payloads[0]
	assert.Equal(t, PayloadHref, p.PayloadID)
	assert.Equal(t, TextXML, p.ContentType)
	decoded, err := base64.StdEncoding.DecodeString(p.Value)
	require.NoError(t, err)
	assert.Equal(t, "<UILQuery/>", string(decoded))
}

func TestBuildSubmitRequestWithoutMessageID(t *testing.T) {
	out, err := BuildSubmitRequest(Addressing{Sender: "borduria"}, Message{ConversationID: "r1", Receiver: "syldavia"})
	require.NoError(t, err)

	var view envelopeView
	require.NoError(t, xml.Unmarshal(out, &view))
	assert.Nil(t, view.Header.Messaging.UserMessage.MessageInfo)
}

func TestParseSubmitResponse(t *testing.T) {
	t.Run("message id", func(t *testing.T) {
		ids, fault, err := parseSubmitResponse([]byte(`<Envelope><Body><submitResponse><messageID>m-1@domibus.eu</messageID></submitResponse></Body></Envelope>`))
		require.NoError(t, err)
		assert.Empty(t, fault)
		assert.Equal(t, []string{"m-1@domibus.eu"}, ids)
	})

	t.Run("soap 1.2 fault", func(t *testing.T) {
		_, fault, err := parseSubmitResponse([]byte(`<Envelope><Body><Fault><Reason><Text>party unknown</Text></Reason></Fault></Body></Envelope>`))
		require.NoError(t, err)
		assert.Equal(t, "party unknown", fault)
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := parseSubmitResponse([]byte("not xml <"))
		assert.Error(t, err)
	})
}

func TestNewMessageID(t *testing.T) {
	a, b := NewMessageID(), NewMessageID()
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^[0-9a-f-]{36}@domibus\.eu$`, a)
}
