package edelivery

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"efti-gate/internal/platform/config"
	"efti-gate/pkg/platform/circuit"
)

type SenderSuite struct {
	suite.Suite
	server   *httptest.Server
	handler  http.HandlerFunc
	calls    atomic.Int32
	now      time.Time
	cfg      config.APConfig
	lastBody []byte
}

func TestSenderSuite(t *testing.T) {
	suite.Run(t, new(SenderSuite))
}

func (s *SenderSuite) SetupTest() {
	s.calls.Store(0)
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.handler = respondWith(http.StatusOK, `<Envelope><Body><submitResponse><messageID>m-1@domibus.eu</messageID></submitResponse></Body></Envelope>`)
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		s.lastBody, _ = io.ReadAll(r.Body)
		s.handler(w, r)
	}))
	s.cfg = config.APConfig{
		URL:             s.server.URL,
		Username:        "gate",
		Password:        "secret",
		ServiceType:     "eDelivery",
		ServiceValue:    "eFTI",
		Timeout:         time.Second,
		BreakerCooldown: 30 * time.Second,
	}
}

func (s *SenderSuite) TearDownTest() {
	s.server.Close()
}

func (s *SenderSuite) sender(opts ...SenderOption) *APSender {
	opts = append([]SenderOption{WithClock(func() time.Time { return s.now })}, opts...)
	return NewAPSender(s.cfg, "borduria", opts...)
}

func respondWith(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/soap+xml")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

var msg = Message{ConversationID: "r1", Receiver: "syldavia", Body: []byte("<UILQuery/>")}

// =============================================================================
// Submission
// =============================================================================

func (s *SenderSuite) TestSendReturnsAssignedMessageID() {
	var user, pass string
	inner := s.handler
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ = r.BasicAuth()
		inner(w, r)
	}

	id, err := s.sender().Send(context.Background(), msg)
	s.Require().NoError(err)
	s.Equal("m-1@domibus.eu", id)
	s.Equal("gate", user)
	s.Equal("secret", pass)

	var view envelopeView
	s.Require().NoError(xml.Unmarshal(s.lastBody, &view))
	s.Equal("r1", view.Header.Messaging.UserMessage.CollaborationInfo.ConversationID)
}

func (s *SenderSuite) TestSendFailures() {
	s.Run("fault", func() {
		s.handler = respondWith(http.StatusInternalServerError, `<Envelope><Body><Fault><Reason><Text>unknown party</Text></Reason></Fault></Body></Envelope>`)
		_, err := s.sender().Send(context.Background(), msg)
		s.ErrorIs(err, ErrDispatch)
		s.Contains(err.Error(), "unknown party")
	})

	s.Run("no message id", func() {
		s.handler = respondWith(http.StatusOK, `<Envelope><Body><submitResponse/></Body></Envelope>`)
		_, err := s.sender().Send(context.Background(), msg)
		s.ErrorIs(err, ErrDispatch)
		s.Contains(err.Error(), "no messageId for request r1")
	})

	s.Run("server error", func() {
		s.handler = respondWith(http.StatusBadGateway, "")
		_, err := s.sender().Send(context.Background(), msg)
		s.ErrorIs(err, ErrDispatch)
	})

	s.Run("unreachable", func() {
		s.cfg.URL = "http://127.0.0.1:1"
		_, err := s.sender().Send(context.Background(), msg)
		s.ErrorIs(err, ErrDispatch)
	})

	s.Run("not configured", func() {
		s.cfg.URL = ""
		_, err := s.sender().Send(context.Background(), msg)
		s.True(IsDispatchError(err))
	})
}

// =============================================================================
// Circuit breaker
// =============================================================================

func (s *SenderSuite) TestOpenCircuitFailsFastUntilCooldown() {
	s.handler = respondWith(http.StatusServiceUnavailable, "")
	sender := s.sender(WithBreaker(circuit.New("ap-connector", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1))))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := sender.Send(ctx, msg)
		s.Require().ErrorIs(err, ErrDispatch)
	}
	s.Equal(int32(2), s.calls.Load())

	_, err := sender.Send(ctx, msg)
	s.ErrorIs(err, ErrDispatch)
	s.Contains(err.Error(), "circuit is open")
	s.Equal(int32(2), s.calls.Load(), "open circuit must not reach the access point")

	s.now = s.now.Add(31 * time.Second)
	s.handler = respondWith(http.StatusOK, `<Envelope><Body><submitResponse><messageID>m-2@domibus.eu</messageID></submitResponse></Body></Envelope>`)
	id, err := sender.Send(ctx, msg)
	s.Require().NoError(err)
	s.Equal("m-2@domibus.eu", id)
	s.Equal(int32(3), s.calls.Load())
}

func (s *SenderSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.sender().Send(ctx, msg)
	s.ErrorIs(err, ErrDispatch)
}
