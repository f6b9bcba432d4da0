package handler

import (
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"efti-gate/internal/control/handler/mocks"
	"efti-gate/internal/control/models"
	"efti-gate/internal/control/service"
	gatemodels "efti-gate/internal/gate/models"
	idmodels "efti-gate/internal/identifiers/models"
	dErrors "efti-gate/pkg/domain-errors"
	"efti-gate/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var payload any
	if body != "" {
		payload = body
	}
	req := testutil.NewJSONRequest(s.T(), method, path, payload)
	return testutil.Serve(s.router, testutil.WithRequestID(req, "http-1"))
}

func (s *HandlerSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	return testutil.DecodeJSON[map[string]any](s.T(), w)
}

// =============================================================================
// UIL intake
// =============================================================================

func (s *HandlerSuite) TestCreateUIL() {
	s.Run("pending foreign control is accepted", func() {
		s.service.EXPECT().CreateUILControl(gomock.Any(), service.UILQuery{
			GateID:     "syldavia",
			PlatformID: "acme",
			DatasetID:  "ds-1",
			SubsetIDs:  []string{"SI01"},
		}).Return(&models.Result{RequestID: "req-1", Status: models.StatusPending}, nil)

		w := s.do(http.MethodPost, "/v1/controls/uil",
			`{"gateId":" syldavia ","platformId":"acme","datasetId":"ds-1","subsetIds":["SI01"," SI01",""]}`)
		s.Equal(http.StatusAccepted, w.Code)
		resp := s.decode(w)
		s.Equal("req-1", resp["requestId"])
		s.Equal("PENDING", resp["status"])
	})

	s.Run("settled local control returns the dataset", func() {
		s.service.EXPECT().CreateUILControl(gomock.Any(), gomock.Any()).
			Return(&models.Result{RequestID: "req-2", Status: models.StatusComplete, Data: []byte("<consignment/>")}, nil)

		w := s.do(http.MethodPost, "/v1/controls/uil", `{"gateId":"borduria","platformId":"acme","datasetId":"ds-1"}`)
		s.Equal(http.StatusOK, w.Code)
		s.Equal(base64.StdEncoding.EncodeToString([]byte("<consignment/>")), s.decode(w)["data"])
	})

	s.Run("validation failures never reach the service", func() {
		cases := []struct{ body, code string }{
			{`{"platformId":"acme","datasetId":"ds-1"}`, "GATE_ID_MISSING"},
			{`{"gateId":"g","datasetId":"ds-1"}`, "PLATFORM_ID_MISSING"},
			{`{"gateId":"g","platformId":"acme"}`, "DATASET_ID_MISSING"},
			{`{"gateId":"g","platformId":"acme","datasetId":"` + strings.Repeat("x", 37) + `"}`, "DATASET_ID_TOO_LONG"},
		}
		for _, tc := range cases {
			w := s.do(http.MethodPost, "/v1/controls/uil", tc.body)
			testutil.AssertError(s.T(), w, http.StatusBadRequest, tc.code)
		}
	})

	s.Run("malformed json", func() {
		w := s.do(http.MethodPost, "/v1/controls/uil", `{`)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

// =============================================================================
// Identifiers intake
// =============================================================================

func (s *HandlerSuite) TestCreateIdentifiers() {
	s.Run("criteria are normalized", func() {
		dangerous := true
		s.service.EXPECT().CreateIdentifiersControl(gomock.Any(), service.IdentifiersQuery{
			Criteria: idmodels.Criteria{
				Identifier:          "ABC123",
				Types:               []idmodels.IdentifierType{idmodels.IdentifierMeans, idmodels.IdentifierCarried},
				ModeCode:            "3",
				RegistrationCountry: "FR",
				DangerousGoods:      &dangerous,
			},
			GateIndicators: []gatemodels.CountryIndicator{"BE", "FR"},
		}).Return(&models.Result{RequestID: "req-3", Status: models.StatusPending}, nil)

		w := s.do(http.MethodPost, "/v1/controls/identifiers", `{
			"identifier":"ABC123",
			"identifierType":["Means","carried","means"],
			"modeCode":"3",
			"registrationCountryCode":"fr",
			"dangerousGoodsIndicator":true,
			"eftiGateIndicator":["BE","FR"]
		}`)
		s.Equal(http.StatusAccepted, w.Code)
	})

	s.Run("validation failures", func() {
		cases := []struct{ body, code string }{
			{`{}`, "IDENTIFIER_MISSING"},
			{`{"identifier":"` + strings.Repeat("A", 256) + `"}`, "IDENTIFIER_TOO_LONG"},
			{`{"identifier":"AB-12"}`, "IDENTIFIER_INCORRECT_FORMAT"},
			{`{"identifier":"AB12","modeCode":"12"}`, "MODE_CODE_INCORRECT_FORMAT"},
			{`{"identifier":"AB12","modeCode":"0"}`, "MODE_CODE_INCORRECT_FORMAT"},
			{`{"identifier":"AB12","registrationCountryCode":"XX"}`, "REGISTRATION_COUNTRY_INCORRECT"},
			{`{"identifier":"AB12","identifierType":["wagon"]}`, "IDENTIFIER_TYPE_INCORRECT"},
			{`{"identifier":"AB12","eftiGateIndicator":["ZZ"]}`, "GATE_INDICATOR_INCORRECT"},
		}
		for _, tc := range cases {
			w := s.do(http.MethodPost, "/v1/controls/identifiers", tc.body)
			testutil.AssertError(s.T(), w, http.StatusBadRequest, tc.code)
		}
	})
}

// =============================================================================
// Results and notes
// =============================================================================

func (s *HandlerSuite) TestGetResult() {
	s.Run("found", func() {
		s.service.EXPECT().GetResult(gomock.Any(), "req-1").Return(&models.Result{
			RequestID:        "req-1",
			Status:           models.StatusError,
			ErrorCode:        models.ErrDataNotFound,
			ErrorDescription: "Data not found.",
		}, nil)

		w := s.do(http.MethodGet, "/v1/controls/req-1", "")
		s.Equal(http.StatusOK, w.Code)
		resp := s.decode(w)
		s.Equal("ERROR", resp["status"])
		s.Equal("DATA_NOT_FOUND", resp["errorCode"])
	})

	s.Run("dataset bytes survive the JSON encoding", func() {
		raw := []byte{0x3c, 0x61, 0xff, 0xfe, 0x2f, 0x3e}
		s.service.EXPECT().GetResult(gomock.Any(), "req-uil").Return(&models.Result{
			RequestID: "req-uil",
			Status:    models.StatusComplete,
			Data:      raw,
		}, nil)

		resp := s.decode(s.do(http.MethodGet, "/v1/controls/req-uil", ""))
		encoded, ok := resp["data"].(string)
		s.Require().True(ok)
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		s.Require().NoError(err)
		s.Equal(raw, decoded)
		s.NotContains(resp, "identifiers")
	})

	s.Run("completed search without matches lists no identifiers", func() {
		s.service.EXPECT().GetResult(gomock.Any(), "req-ids").Return(&models.Result{
			RequestID:   "req-ids",
			Status:      models.StatusComplete,
			Identifiers: []idmodels.Consignment{},
		}, nil)

		resp := s.decode(s.do(http.MethodGet, "/v1/controls/req-ids", ""))
		s.Require().Contains(resp, "identifiers")
		s.Equal([]any{}, resp["identifiers"])
		s.NotContains(resp, "data")
	})

	s.Run("pending result carries no payload fields", func() {
		s.service.EXPECT().GetResult(gomock.Any(), "req-p").
			Return(&models.Result{RequestID: "req-p", Status: models.StatusPending}, nil)

		resp := s.decode(s.do(http.MethodGet, "/v1/controls/req-p", ""))
		s.NotContains(resp, "identifiers")
		s.NotContains(resp, "data")
	})

	s.Run("unknown", func() {
		s.service.EXPECT().GetResult(gomock.Any(), "nope").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "control not found"))

		w := s.do(http.MethodGet, "/v1/controls/nope", "")
		s.Equal(http.StatusNotFound, w.Code)
	})
}

func (s *HandlerSuite) TestSendNote() {
	s.Run("sent", func() {
		s.service.EXPECT().SendNote(gomock.Any(), "req-1", "seal broken").Return(nil)
		w := s.do(http.MethodPost, "/v1/controls/req-1/notes", `{"message":"seal broken"}`)
		s.Equal(http.StatusAccepted, w.Code)
	})

	s.Run("empty message", func() {
		w := s.do(http.MethodPost, "/v1/controls/req-1/notes", `{"message":"  "}`)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("too long is reported by the service", func() {
		s.service.EXPECT().SendNote(gomock.Any(), "req-1", gomock.Any()).
			Return(dErrors.New(dErrors.CodeValidation, "NOTE_TOO_LONG"))
		w := s.do(http.MethodPost, "/v1/controls/req-1/notes", `{"message":"`+strings.Repeat("n", 300)+`"}`)
		testutil.AssertError(s.T(), w, http.StatusBadRequest, "NOTE_TOO_LONG")
	})

	s.Run("peer unreachable", func() {
		s.service.EXPECT().SendNote(gomock.Any(), "req-2", "hello").
			Return(dErrors.New(dErrors.CodeUnavailable, "note was not sent"))
		w := s.do(http.MethodPost, "/v1/controls/req-2/notes", `{"message":"hello"}`)
		s.Equal(http.StatusServiceUnavailable, w.Code)
	})
}