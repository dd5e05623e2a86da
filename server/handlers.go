// Package server - Request handlers of the HTTP classification service.
package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/images"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/inference"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/postprocess"
)

// handleClassify accepts one photo, runs the pipeline and returns the
// prediction. Three intakes are supported, selected by Content-Type:
// JSON {"image": "<base64>"}, multipart form field "image", or the raw
// request body for anything else.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)

	imgBytes, err := readImageBytes(r)
	if err != nil {
		s.logger.Printf("request %s rejected: %v", requestID, err)
		sendErrorResponse(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}
	if len(imgBytes) == 0 {
		s.logger.Printf("request %s rejected: empty image payload", requestID)
		sendErrorResponse(w, "invalid_request", "empty image payload", http.StatusBadRequest)
		return
	}

	pred, err := s.classifier.Classify(r.Context(), imgBytes)
	if err != nil {
		s.logger.Printf("request %s failed: %v", requestID, err)
		code, message, status := mapClassifyError(err)
		sendErrorResponse(w, code, message, status)
		return
	}

	parking := "skipped"
	if pred.Parking != nil {
		parking = fmt.Sprintf("%dms", pred.Parking.ElapsedMillis)
	}
	s.logger.Printf("request %s: label=%s presence=%dms parking=%s total=%dms",
		requestID, pred.Label, pred.Presence.ElapsedMillis, parking, pred.TotalElapsedMillis)

	sendJSON(w, http.StatusOK, newClassifyResponse(requestID, pred))
}

// handleHealthz reports liveness and which models are loaded.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		PresenceModel: true,
		ParkingModel:  s.classifier.HasParkingStage(),
	})
}

// handleMetrics reports pipeline counters and per-session latency totals.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	resp := MetricsResponse{
		UptimeSeconds: time.Since(s.started).Seconds(),
		Pipeline:      s.classifier.Metrics(),
	}
	if s.sessionStats != nil {
		resp.Sessions = s.sessionStats()
	}
	sendJSON(w, http.StatusOK, resp)
}

// readImageBytes extracts the photo payload according to Content-Type.
func readImageBytes(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")

	switch {
	case strings.HasPrefix(contentType, "application/json"):
		return readJSONImage(r)
	case strings.HasPrefix(contentType, "multipart/form-data"):
		return readMultipartImage(r)
	default:
		return io.ReadAll(r.Body)
	}
}

func readJSONImage(r *http.Request) ([]byte, error) {
	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("malformed JSON body")
	}
	data, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		return nil, errors.New("image field is not valid base64")
	}
	return data, nil
}

func readMultipartImage(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		return nil, errors.New("malformed multipart body")
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, errors.New("multipart field \"image\" is missing")
	}
	defer file.Close()

	return io.ReadAll(file)
}

// mapClassifyError translates pipeline error kinds onto HTTP codes without
// losing the kind.
func mapClassifyError(err error) (code, message string, status int) {
	var decodeErr *images.DecodeError
	if errors.As(err, &decodeErr) {
		return "invalid_image", "image bytes could not be decoded", http.StatusBadRequest
	}

	var notReady *inference.SessionNotReadyError
	var loadErr *inference.ModelLoadError
	if errors.As(err, &notReady) || errors.As(err, &loadErr) {
		return "model_unavailable", "classification model is not available", http.StatusServiceUnavailable
	}

	var infErr *inference.InferenceError
	if errors.As(err, &infErr) {
		return "inference_failed", "model execution failed", http.StatusBadGateway
	}

	var violation *postprocess.InvariantViolation
	if errors.As(err, &violation) {
		return "internal_error", "internal contract violation", http.StatusInternalServerError
	}

	return "internal_error", "classification failed", http.StatusInternalServerError
}

func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func sendErrorResponse(w http.ResponseWriter, code, message string, status int) {
	sendJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
