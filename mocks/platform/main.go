// Command platform is a stand-in for a member-state platform. It serves a
// generated consignment for any dataset id and records follow-up notes, so a
// gate can be exercised end to end without a real platform behind it.
package main

import (
	"encoding/json"
	"encoding/xml"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

const platformHeader = "X-Efti-Platform-Id"

// missingPrefix marks dataset ids the platform pretends not to know.
const missingPrefix = "missing-"

type consignment struct {
	XMLName    xml.Name `xml:"consignment"`
	DatasetID  string   `xml:"id"`
	PlatformID string   `xml:"platformId"`
	Subsets    []string `xml:"subset"`
}

type note struct {
	PlatformID string    `json:"platformId"`
	DatasetID  string    `json:"datasetId"`
	Message    string    `json:"message"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type server struct {
	log *slog.Logger

	mu    sync.Mutex
	notes []note
}

func newServer(log *slog.Logger) *server {
	return &server{log: log}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/consignments/{datasetId}", s.getConsignment)
	r.Post("/consignments/{datasetId}/follow-up", s.postNote)
	r.Get("/notes", s.listNotes)
	return r
}

func (s *server) getConsignment(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetId")
	platformID := r.Header.Get(platformHeader)
	if strings.HasPrefix(datasetID, missingPrefix) {
		s.log.Info("dataset not found", "dataset_id", datasetID, "platform_id", platformID)
		http.NotFound(w, r)
		return
	}
	doc := consignment{
		DatasetID:  datasetID,
		PlatformID: platformID,
		Subsets:    r.URL.Query()["subsetId"],
	}
	w.Header().Set("Content-Type", "application/xml")
	if err := xml.NewEncoder(w).Encode(doc); err != nil {
		s.log.Error("encode consignment", "error", err)
	}
}

func (s *server) postNote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	n := note{
		PlatformID: r.Header.Get(platformHeader),
		DatasetID:  chi.URLParam(r, "datasetId"),
		Message:    body.Message,
		ReceivedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.notes = append(s.notes, n)
	s.mu.Unlock()
	s.log.Info("note received", "dataset_id", n.DatasetID, "platform_id", n.PlatformID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) listNotes(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	notes := append([]note(nil), s.notes...)
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(notes)
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	addr := os.Getenv("MOCK_PLATFORM_ADDR")
	if addr == "" {
		addr = ":8090"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           newServer(log).routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("mock platform listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Error("mock platform stopped", "error", err)
		os.Exit(1)
	}
}
