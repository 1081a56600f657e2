package httpctrl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fermlab/fermentd/internal/batch"
	"github.com/fermlab/fermentd/internal/ports"
	"github.com/fermlab/fermentd/internal/thermal"
)

type Server struct {
	svc  ports.BatchService
	sink ports.SampleSink
	srv  *http.Server
}

// New returns a runnable server.
func New(svc ports.BatchService, sink ports.SampleSink, addr string) *Server {
	mux := http.NewServeMux()
	s := &Server{svc: svc, sink: sink}

	// Read
	mux.HandleFunc("GET /v1/batches", s.handleListBatches)
	mux.HandleFunc("GET /v1/batches/{id}", s.handleGetBatch)
	mux.HandleFunc("GET /v1/batches/{id}/decision", s.handleGetDecision)

	// Write
	mux.HandleFunc("POST /v1/batches", s.handleCreateBatch)
	mux.HandleFunc("POST /v1/batches/{id}/target", s.handlePostTarget)
	mux.HandleFunc("POST /v1/batches/{id}/readings", s.handlePostReading)
	mux.HandleFunc("POST /v1/batches/{id}/learn", s.handlePostLearn)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ---- DTOs ----

type batchDTO struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	TargetTemp float64   `json:"target_temp"`
	CreatedAt  time.Time `json:"created_at"`
}

func toDTO(b batch.Batch) batchDTO {
	return batchDTO{
		ID:         b.ID,
		Name:       b.Name,
		TargetTemp: b.TargetTemp,
		CreatedAt:  b.CreatedAt,
	}
}

type readingDTO struct {
	Temp     *float64   `json:"temp"`
	Ambient  *float64   `json:"ambient"`
	HeaterOn bool       `json:"heater_on"`
	CoolerOn *bool      `json:"cooler_on,omitempty"`
	At       *time.Time `json:"at"`
}

// ---- Handlers ----

func (s *Server) handleListBatches(w http.ResponseWriter, _ *http.Request) {
	batches := s.svc.List()
	out := make([]batchDTO, 0, len(batches))
	for _, b := range batches {
		out = append(out, toDTO(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	b, ok := s.svc.Get(r.PathValue("id"))
	if !ok {
		writeErr(w, http.StatusNotFound, "batch not found")
		return
	}
	writeJSON(w, http.StatusOK, toDTO(b))
}

func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.svc.Get(id); !ok {
		writeErr(w, http.StatusNotFound, "batch not found")
		return
	}
	a, ok := s.svc.LastDecision(id)
	if !ok {
		writeErr(w, http.StatusNotFound, "no decision yet")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       *string  `json:"name"`
		TargetTemp *float64 `json:"target_temp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == nil || req.TargetTemp == nil {
		writeErr(w, http.StatusBadRequest, "missing field 'name' or 'target_temp'")
		return
	}
	b, err := s.svc.Create(*req.Name, *req.TargetTemp)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toDTO(b))
}

func (s *Server) handlePostTarget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	postValue(w, r, func(v float64) error {
		return s.svc.SetTarget(id, v)
	})
}

func (s *Server) handlePostReading(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req readingDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Temp == nil || req.Ambient == nil {
		writeErr(w, http.StatusBadRequest, "missing field 'temp' or 'ambient'")
		return
	}
	at := time.Now().UTC()
	if req.At != nil {
		at = *req.At
	}

	err := s.sink.Record(id, batch.Reading{
		Temp:     *req.Temp,
		Ambient:  *req.Ambient,
		HeaterOn: req.HeaterOn,
		CoolerOn: req.CoolerOn,
		At:       at,
	})
	if errors.Is(err, batch.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "batch not found")
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handlePostLearn(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Learn(r.PathValue("id"))
	if errors.Is(err, batch.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "batch not found")
		return
	}
	if err != nil && !thermal.IsRecoverable(err) {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	// Too little data is a normal outcome, mirrored in the result body.
	writeJSON(w, http.StatusOK, res)
}

// ---- generic helpers ----

func postValue[T any](w http.ResponseWriter, r *http.Request, apply func(T) error) {
	dec := json.NewDecoder(r.Body)
	var req struct {
		Value *T `json:"value"`
	}
	if err := dec.Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Value == nil {
		writeErr(w, http.StatusBadRequest, "missing field 'value'")
		return
	}

	if err := apply(*req.Value); err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, batch.ErrNotFound) {
			code = http.StatusNotFound
		}
		writeErr(w, code, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
