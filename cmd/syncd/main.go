package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chaitanyakelkar27/AarogyaSense/internal/config"
	"github.com/chaitanyakelkar27/AarogyaSense/internal/model"
	"github.com/chaitanyakelkar27/AarogyaSense/internal/notify"
	"github.com/chaitanyakelkar27/AarogyaSense/internal/offline"
	"github.com/chaitanyakelkar27/AarogyaSense/internal/remote"
	"github.com/chaitanyakelkar27/AarogyaSense/internal/risk"
	"github.com/chaitanyakelkar27/AarogyaSense/internal/storage"
)

const (
	defaultListenAddr   = ":8080"
	defaultSyncURL      = "http://localhost:9000/api"
	defaultSyncInterval = 5 * time.Minute
	defaultAuditTopic   = "case-changes"
)

// ---------- Setup ----------

func newKeyValueStore() storage.KeyValueStore {
	switch dsn := config.Get("AAROGYA_DB_DSN", ""); dsn {
	case "":
		log.Println("No AAROGYA_DB_DSN set, using in-memory storage")
		return storage.NewMemory()
	case "none":
		log.Println("Persistent storage disabled, running in no-op storage mode")
		return storage.NewNoop()
	default:
		store, err := storage.OpenGorm(dsn)
		if err != nil {
			log.Fatalf("failed to connect to DB: %v", err)
		}
		log.Println("Connected to database")
		return store
	}
}

func newChangePublisher() *notify.ChangePublisher {
	brokers := config.Get("AAROGYA_KAFKA_BROKERS", "")
	if brokers == "" {
		return nil
	}
	topic := config.Get("AAROGYA_AUDIT_TOPIC", defaultAuditTopic)
	log.Printf("Publishing change log to Kafka topic %s", topic)
	return notify.NewChangePublisher(strings.Split(brokers, ","), topic)
}

func newEscalationDispatcher(ctx context.Context, deviceID string) *notify.EscalationDispatcher {
	queueName := config.Get("AAROGYA_ALERT_QUEUE", "")
	if queueName == "" {
		return nil
	}
	dispatcher, err := notify.NewEscalationDispatcher(ctx, queueName, deviceID)
	if err != nil {
		log.Fatalf("failed to set up escalation queue: %v", err)
	}
	log.Printf("Escalation alerts go to SQS queue %s", queueName)
	return dispatcher
}

// ---------- HTTP API ----------

type Server struct {
	store      *offline.DataStore
	orch       *offline.Orchestrator
	dispatcher *notify.EscalationDispatcher
}

type caseRequest struct {
	PatientID          string           `json:"patientId"`
	Symptoms           []string         `json:"symptoms"`
	VitalSigns         *risk.VitalSigns `json:"vitalSigns,omitempty"`
	Age                *float64         `json:"age,omitempty"`
	ExistingConditions []string         `json:"existingConditions,omitempty"`
	AIConfidence       *float64         `json:"aiConfidence,omitempty"`
	AIPrediction       string           `json:"aiPrediction,omitempty"`
	Notes              string           `json:"notes,omitempty"`
}

type caseResponse struct {
	ID         string          `json:"id"`
	Assessment risk.Assessment `json:"assessment"`
}

func (s *Server) createCaseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req caseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	assessment := risk.Calculate(risk.Factors{
		Symptoms:           req.Symptoms,
		VitalSigns:         req.VitalSigns,
		Age:                req.Age,
		ExistingConditions: req.ExistingConditions,
		AIConfidence:       req.AIConfidence,
		AIPrediction:       req.AIPrediction,
	})

	payload := map[string]any{
		"patientId":       req.PatientID,
		"symptoms":        req.Symptoms,
		"notes":           req.Notes,
		"riskScore":       assessment.Score,
		"riskLevel":       string(assessment.Level),
		"priority":        assessment.Priority,
		"factors":         assessment.Factors,
		"recommendations": assessment.Recommendations,
	}

	id, err := s.store.Save(r.Context(), model.CollectionCases, payload, model.OpCreate)
	if err != nil {
		status := http.StatusInternalServerError
		if _, ok := err.(*model.ValidationError); ok {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(r.Context(), id, assessment); err != nil {
			log.Printf("failed to dispatch escalation for case %s: %v", id, err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(caseResponse{ID: id, Assessment: assessment})
}

func (s *Server) queryCasesHandler(w http.ResponseWriter, r *http.Request) {
	filter := map[string]any{}
	if patientID := r.URL.Query().Get("patientId"); patientID != "" {
		filter["patientId"] = patientID
	}
	if level := r.URL.Query().Get("riskLevel"); level != "" {
		filter["riskLevel"] = level
	}

	cases, err := s.store.Query(r.Context(), model.CollectionCases, filter)
	if err != nil {
		http.Error(w, fmt.Sprintf("query failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cases)
}

func (s *Server) casesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.queryCasesHandler(w, r)
		return
	}
	s.createCaseHandler(w, r)
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.orch.Status())
}

func (s *Server) syncHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.orch.SyncNow(r.Context()); err != nil {
		log.Printf("sync cycle failed: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.orch.Status())
}

func (s *Server) integrityHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.store.ValidateIntegrity(r.Context(), model.CollectionCases)
	if err != nil {
		http.Error(w, fmt.Sprintf("integrity check failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func (s *Server) conflictsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.store.OpenConflicts())
}

type resolveRequest struct {
	RecordID string             `json:"recordId"`
	Strategy offline.Resolution `json:"strategy"`
	Merged   map[string]any     `json:"mergedPayload,omitempty"`
}

func (s *Server) resolveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if err := s.store.ResolveConflict(r.Context(), req.RecordID, req.Strategy, req.Merged); err != nil {
		http.Error(w, fmt.Sprintf("resolve failed: %v", err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------- Main ----------

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadEnv(); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}

	kv := newKeyValueStore()
	store := offline.New(kv, offline.Config{
		DeviceID: config.Get("AAROGYA_DEVICE_ID", ""),
		Actor:    config.Get("AAROGYA_ACTOR", "chw"),
	})
	log.Printf("Device ID: %s", store.DeviceID())

	syncURL := config.Get("AAROGYA_SYNC_URL", defaultSyncURL)
	syncer := remote.NewHTTPSyncer(syncURL, config.Get("AAROGYA_SYNC_API_KEY", ""))
	network := remote.NewHealthProbe(syncURL)

	orch := offline.NewOrchestrator(store, syncer, network, offline.OrchestratorConfig{
		Interval:    config.GetDuration("AAROGYA_SYNC_INTERVAL", defaultSyncInterval),
		Collections: []string{model.CollectionCases, model.CollectionPatients},
	})
	orch.OnStatus(func(state offline.CycleState) {
		log.Printf("Sync status: %s", state)
	})
	orch.OnConflict(func(conflict model.SyncConflict) {
		log.Printf("Conflict detected for record %s (%s)", conflict.RecordID, conflict.Type)
	})

	if publisher := newChangePublisher(); publisher != nil {
		defer publisher.Close()
		store.OnChange(func(entry model.ChangeLogEntry) {
			if !network.Online() {
				return
			}
			if err := publisher.Publish(ctx, entry); err != nil {
				log.Printf("failed to publish change %s: %v", entry.ID, err)
			}
		})
	}

	server := &Server{
		store:      store,
		orch:       orch,
		dispatcher: newEscalationDispatcher(ctx, store.DeviceID()),
	}

	go func() {
		if err := orch.Run(ctx); err != nil {
			log.Fatalf("sync loop stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/cases", server.casesHandler)
	mux.HandleFunc("/status", server.statusHandler)
	mux.HandleFunc("/sync", server.syncHandler)
	mux.HandleFunc("/integrity", server.integrityHandler)
	mux.HandleFunc("/conflicts", server.conflictsHandler)
	mux.HandleFunc("/conflicts/resolve", server.resolveHandler)

	addr := config.Get("AAROGYA_LISTEN_ADDR", defaultListenAddr)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("Starting HTTP server on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}
}
