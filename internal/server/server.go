package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stealthsense/behaviortrace-agent/internal/analyzer"
	"github.com/stealthsense/behaviortrace-agent/internal/database"
	"github.com/stealthsense/behaviortrace-agent/internal/models"
	"github.com/stealthsense/behaviortrace-agent/internal/tracker"
)

// Server is the agent's HTTP surface: raw host-event ingest feeding the
// tracker, the collection endpoint backing the periodic flush, the
// classification proxy, and the stats document.
type Server struct {
	db          *database.Database
	tracker     *tracker.Tracker
	address     string
	upstreamURL string // classifier; empty disables /api/detect_bot
	httpClient  *http.Client
	server      *http.Server
}

func NewServer(db *database.Database, tr *tracker.Tracker, address, upstreamURL string) *Server {
	return &Server{
		db:          db,
		tracker:     tr,
		address:     address,
		upstreamURL: upstreamURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

// handleIngest accepts a batch of raw host events and feeds them to the
// tracker. Capture must never block or fail the host, so a stopped tracker
// still answers 204.
func (s *Server) handleIngest(w http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var batch models.RawBatch
	if err := json.NewDecoder(request.Body).Decode(&batch); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	for _, event := range batch.Events {
		s.tracker.Handle(event)
	}
	w.WriteHeader(http.StatusNoContent) // success, no body
}

// handleCollect stores one flush payload with derived pattern metrics.
func (s *Server) handleCollect(w http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var payload models.CollectionPayload
	if err := json.NewDecoder(request.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if err := s.db.ValidateSubmission(payload); err != nil {
		http.Error(w, "Invalid data", http.StatusBadRequest)
		return
	}

	metrics := analyzer.Analyze(payload.MouseMovements, payload.ClickPatterns,
		payload.KeystrokePatterns, payload.ScrollPatterns)

	id, err := s.db.InsertBehavior(payload, request.UserAgent(), metrics)
	if err != nil {
		log.Printf("Database error: %v", err)
		http.Error(w, "Failed to store behavioral data", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, models.CollectResponse{Status: "success", DataID: id})
}

// handleDetect forwards the classification payload to the upstream
// classifier, records the verdict, and relays the upstream body verbatim.
// The scoring itself always happens upstream.
func (s *Server) handleDetect(w http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	if s.upstreamURL == "" {
		http.Error(w, "No classifier configured", http.StatusBadGateway)
		return
	}

	body, err := io.ReadAll(request.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	var payload models.ClassificationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if payload.SessionID == "" {
		http.Error(w, "Invalid data", http.StatusBadRequest)
		return
	}

	start := time.Now()
	upstreamReq, err := http.NewRequestWithContext(request.Context(), http.MethodPost, s.upstreamURL, bytes.NewReader(body))
	if err != nil {
		http.Error(w, "Failed to build upstream request", http.StatusInternalServerError)
		return
	}
	upstreamReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(upstreamReq)
	if err != nil {
		log.Printf("Classifier unreachable: %v", err)
		http.Error(w, "Classifier unreachable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	verdictBody, err := io.ReadAll(resp.Body)
	if err != nil {
		http.Error(w, "Failed to read classifier response", http.StatusBadGateway)
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("Classifier returned status %d", resp.StatusCode)
		http.Error(w, "Classifier error", http.StatusBadGateway)
		return
	}

	var verdict models.DetectionResult
	if err := json.Unmarshal(verdictBody, &verdict); err == nil && verdict.Prediction != "" {
		actionType := payload.ActionType
		if actionType == "" {
			actionType = "task_completion"
		}
		record := models.DetectionRecord{
			SessionID:    payload.SessionID,
			Prediction:   verdict.Prediction,
			Confidence:   verdict.Confidence,
			ActionType:   actionType,
			PageURL:      payload.PageURL,
			ProcessingMS: time.Since(start).Milliseconds(),
			CreatedUTC:   time.Now().UTC().Unix(),
		}
		if err := s.db.InsertDetection(record); err != nil {
			log.Printf("Failed to record detection: %v", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(verdictBody)
}

func (s *Server) handleStats(w http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	stats, err := s.db.Stats()
	if err != nil {
		log.Printf("Database error: %v", err)
		http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMetrics(w http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Metrics())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/events", s.handleIngest)
	mux.HandleFunc("/api/behavioral_data", s.handleCollect)
	mux.HandleFunc("/api/detect_bot", s.handleDetect)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	return mux
}

func (s *Server) Start() error {
	mux := s.setupRoutes()
	s.server = &http.Server{
		Addr:         s.address,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	shutdownChannel := make(chan os.Signal, 1)
	signal.Notify(shutdownChannel, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("BehaviorTrace agent listening on %s", s.address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start:", err)
		}
	}()

	<-shutdownChannel
	log.Println("Shutting down server...")

	shutdownContext, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownContext); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
	return nil
}
