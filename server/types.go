// Package server - Response types of the HTTP classification service.
package server

import (
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/classify"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/inference"
)

// StageResponse is the wire form of one executed classifier stage.
type StageResponse struct {
	// ClassID is the winning class index.
	ClassID int `json:"class_id"`
	// Confidence is the probability assigned to the winning class.
	Confidence float32 `json:"confidence"`
	// ElapsedMillis is the model execution time for this stage.
	ElapsedMillis int64 `json:"elapsed_ms"`
}

// ClassifyResponse is the wire form of one completed classification.
type ClassifyResponse struct {
	// RequestID identifies the request in logs.
	RequestID string `json:"request_id"`
	// Label is the merged categorical outcome.
	Label string `json:"label"`
	// Presence is the outcome of the presence stage.
	Presence StageResponse `json:"presence"`
	// Parking is the outcome of the parking stage, null when it did not run.
	Parking *StageResponse `json:"parking"`
	// TotalElapsedMillis sums the execution time of the stages that ran.
	TotalElapsedMillis int64 `json:"total_elapsed_ms"`
}

// ErrorResponse is the wire form of a failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse reports service and model readiness.
type HealthResponse struct {
	Status        string `json:"status"`
	PresenceModel bool   `json:"presence_model"`
	ParkingModel  bool   `json:"parking_model"`
}

// MetricsResponse reports pipeline and session counters.
type MetricsResponse struct {
	UptimeSeconds float64           `json:"uptime_seconds"`
	Pipeline      classify.Metrics  `json:"pipeline"`
	Sessions      []inference.Stats `json:"sessions"`
}

// newClassifyResponse converts a pipeline prediction into its wire form.
func newClassifyResponse(requestID string, pred *classify.Prediction) ClassifyResponse {
	resp := ClassifyResponse{
		RequestID: requestID,
		Label:     pred.Label,
		Presence: StageResponse{
			ClassID:       pred.Presence.Class,
			Confidence:    pred.Presence.Confidence,
			ElapsedMillis: pred.Presence.ElapsedMillis,
		},
		TotalElapsedMillis: pred.TotalElapsedMillis,
	}
	if pred.Parking != nil {
		resp.Parking = &StageResponse{
			ClassID:       pred.Parking.Class,
			Confidence:    pred.Parking.Confidence,
			ElapsedMillis: pred.Parking.ElapsedMillis,
		}
	}
	return resp
}
