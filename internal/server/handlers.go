package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/etl"
	"github.com/raaihank/pii-sentinel/internal/privacy"
	"github.com/raaihank/pii-sentinel/internal/websocket"
)

// maxBatchRecords bounds a single batch request
const maxBatchRecords = 10000

// RedactRequest carries one record. The payload is either a JSON object in
// Data or its serialized form in DataJSON.
type RedactRequest struct {
	RecordID string          `json:"record_id"`
	Data     json.RawMessage `json:"data,omitempty"`
	DataJSON *string         `json:"data_json,omitempty"`
}

// RedactResponse is the redacted form of a RedactRequest
type RedactResponse struct {
	RecordID         string            `json:"record_id"`
	RedactedData     json.RawMessage   `json:"redacted_data"`
	RedactedDataJSON string            `json:"redacted_data_json"`
	IsPII            bool              `json:"is_pii"`
	Composite        bool              `json:"composite"`
	Findings         []privacy.Finding `json:"findings"`
}

// BatchRequest carries several records
type BatchRequest struct {
	Records []RedactRequest `json:"records"`
}

// BatchResponse holds results in request order
type BatchResponse struct {
	Results []RedactResponse `json:"results"`
}

// ErrorResponse is returned for rejected requests
type ErrorResponse struct {
	Error string `json:"error"`
}

var errMissingPayload = errors.New("record needs data or data_json")

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":            "pii-sentinel",
		"version":         version,
		"privacy_enabled": s.detector.Enabled(),
		"enabled_rules":   s.detector.GetEnabledRules(),
		"uptime":          time.Since(s.startedAt).Round(time.Second).String(),
		"ws_clients":      s.wsHub.GetStats().ActiveConnections,
	})
}

// handleRedact redacts a single record
func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	var req RedactRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := s.redact(r, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRedactBatch redacts every record of a batch
func (s *Server) handleRedactBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Records) > maxBatchRecords {
		writeError(w, http.StatusRequestEntityTooLarge, "too many records in batch")
		return
	}

	resp := BatchResponse{Results: make([]RedactResponse, 0, len(req.Records))}
	for _, record := range req.Records {
		result, err := s.redact(r, record)
		if err != nil {
			writeError(w, http.StatusBadRequest, record.RecordID+": "+err.Error())
			return
		}
		resp.Results = append(resp.Results, result)
	}
	writeJSON(w, http.StatusOK, resp)
}

// redact runs one record through the engine, records metrics and
// broadcasts a detection event
func (s *Server) redact(r *http.Request, req RedactRequest) (RedactResponse, error) {
	var payload string
	switch {
	case req.DataJSON != nil:
		payload = *req.DataJSON
	case len(req.Data) > 0:
		payload = string(req.Data)
	default:
		return RedactResponse{}, errMissingPayload
	}

	start := time.Now()
	out := etl.Redact(s.detector, etl.InputRecord{RecordID: req.RecordID, DataJSON: payload})
	s.metrics.ObserveResult(out.Result, out.DecodeFailed)

	requestID := getRequestID(r.Context())
	if out.DecodeFailed {
		s.logger.WithRequestID(requestID).Warn("Record payload could not be decoded, emitting empty mapping",
			zap.String("record_id", req.RecordID))
	}

	if out.Result.IsPII {
		s.wsHub.BroadcastEvent(websocket.Event{
			Type:      websocket.EventTypePIIDetection,
			Timestamp: time.Now(),
			RequestID: requestID,
			Data: websocket.PIIDetectionEvent{
				RecordID:         req.RecordID,
				Findings:         out.Result.Findings,
				Categories:       out.Result.CategoryCounts(),
				Composite:        out.Result.Composite,
				QuasiIdentifiers: out.Result.QuasiIdentifiers,
				ProcessingMS:     float64(time.Since(start).Microseconds()) / 1000,
			},
		})
	}

	return RedactResponse{
		RecordID:         req.RecordID,
		RedactedData:     json.RawMessage(out.Output.RedactedDataJSON),
		RedactedDataJSON: out.Output.RedactedDataJSON,
		IsPII:            out.Output.IsPII,
		Composite:        out.Result.Composite,
		Findings:         out.Result.Findings,
	}, nil
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
