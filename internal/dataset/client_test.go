package dataset

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"efti-gate/internal/platform/config"
	"efti-gate/pkg/platform/sentinel"
	"efti-gate/pkg/testutil"
)

type RestClientSuite struct {
	suite.Suite
	server  *httptest.Server
	handler http.HandlerFunc
	last    *http.Request
	body    []byte
	client  *RestClient
}

func TestRestClientSuite(t *testing.T) {
	suite.Run(t, new(RestClientSuite))
}

func (s *RestClientSuite) SetupTest() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<consignment><id>ds-1</id></consignment>`))
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.last = r
		s.body, _ = io.ReadAll(r.Body)
		s.handler(w, r)
	}))
	s.client = NewRestClient(config.PlatformConfig{
		URL:     s.server.URL + "/",
		IDs:     []string{"acme"},
		Timeout: time.Second,
	})
}

func (s *RestClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *RestClientSuite) status(code int) {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
	}
}

func (s *RestClientSuite) TestKnowsPlatform() {
	s.True(s.client.KnowsPlatform("acme"))
	s.False(s.client.KnowsPlatform("other"))
	s.False(s.client.KnowsPlatform(""))

	open := NewRestClient(config.PlatformConfig{URL: s.server.URL})
	s.True(open.KnowsPlatform("anyone"))
}

func (s *RestClientSuite) TestFetchDataset() {
	s.Run("with subsets", func() {
		doc, err := s.client.FetchDataset(context.Background(), "acme", "ds 1", []string{"SI01", "SI02"})
		s.Require().NoError(err)
		s.Equal(`<consignment><id>ds-1</id></consignment>`, string(doc))
		s.Equal("/consignments/ds%201", s.last.URL.EscapedPath())
		s.Equal([]string{"SI01", "SI02"}, s.last.URL.Query()["subsetId"])
		s.Equal("acme", s.last.Header.Get(platformHeader))
	})

	s.Run("missing dataset", func() {
		s.status(http.StatusNotFound)
		_, err := s.client.FetchDataset(context.Background(), "acme", "ds-2", nil)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("platform failure", func() {
		s.status(http.StatusServiceUnavailable)
		_, err := s.client.FetchDataset(context.Background(), "acme", "ds-2", nil)
		s.ErrorIs(err, sentinel.ErrUnavailable)
		s.NotErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("unconfigured", func() {
		_, err := NewRestClient(config.PlatformConfig{}).FetchDataset(context.Background(), "acme", "ds-1", nil)
		s.ErrorIs(err, sentinel.ErrUnavailable)
	})
}

func (s *RestClientSuite) TestPostNote() {
	s.status(http.StatusAccepted)
	s.Require().NoError(s.client.PostNote(context.Background(), "acme", "ds-1", "seal broken"))
	s.Equal(http.MethodPost, s.last.Method)
	s.Equal("/consignments/ds-1/follow-up", s.last.URL.Path)
	s.JSONEq(`{"message":"seal broken"}`, string(s.body))

	s.status(http.StatusBadRequest)
	s.Error(s.client.PostNote(context.Background(), "acme", "ds-1", "again"))
}

func TestInMemory(t *testing.T) {
	m := NewInMemory()
	ctx := testutil.Context(0)

	testutil.Scenario(t, "dataset lifecycle",
		testutil.Given("a stored dataset", func(t *testing.T) {
			m.Put("acme", "ds-1", []byte("<consignment/>"))
		}),
		testutil.When("it is fetched", func(t *testing.T) {
			doc, err := m.FetchDataset(ctx, "acme", "ds-1", []string{"SI01"})
			require.NoError(t, err)
			assert.Equal(t, "<consignment/>", string(doc))
		}),
		testutil.Then("unknown datasets are not found", func(t *testing.T) {
			_, err := m.FetchDataset(ctx, "acme", "ds-2", nil)
			assert.ErrorIs(t, err, sentinel.ErrNotFound)
		}),
		testutil.Then("notes are recorded against known datasets only", func(t *testing.T) {
			require.NoError(t, m.PostNote(ctx, "acme", "ds-1", "hi"))
			assert.ErrorIs(t, m.PostNote(ctx, "acme", "ds-2", "hi"), sentinel.ErrNotFound)
			assert.Equal(t, []Note{{PlatformID: "acme", DatasetID: "ds-1", Message: "hi"}}, m.Notes())
		}),
	)
}
