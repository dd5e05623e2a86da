package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/classify"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/images"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/inference"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/postprocess"
)

// stubClassifier plays the pipeline with a canned prediction or error.
type stubClassifier struct {
	pred      *classify.Prediction
	err       error
	parking   bool
	metrics   classify.Metrics
	lastBytes []byte
	calls     int
}

func (c *stubClassifier) Classify(_ context.Context, raw []byte) (*classify.Prediction, error) {
	c.calls++
	c.lastBytes = raw
	if c.err != nil {
		return nil, c.err
	}
	return c.pred, nil
}

func (c *stubClassifier) HasParkingStage() bool { return c.parking }

func (c *stubClassifier) Metrics() classify.Metrics { return c.metrics }

func insidePrediction() *classify.Prediction {
	return &classify.Prediction{
		Presence:           classify.StagePrediction{Class: 2, Confidence: 0.94, ElapsedMillis: 41},
		Parking:            &classify.StagePrediction{Class: 1, Confidence: 0.88, ElapsedMillis: 27},
		Label:              "inside",
		TotalElapsedMillis: 68,
	}
}

func newTestServer(t *testing.T, classifier Classifier) *Server {
	t.Helper()

	srv, err := NewServer(NewServerArgs{
		Classifier: classifier,
		Logger:     log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	return srv
}

func doRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestClassifyRawBody(t *testing.T) {
	stub := &stubClassifier{pred: insidePrediction(), parking: true}
	srv := newTestServer(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/v1/classify", bytes.NewReader([]byte("raw photo bytes")))
	req.Header.Set("Content-Type", "image/jpeg")
	rec := doRequest(srv, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("raw photo bytes"), stub.lastBytes)

	var resp ClassifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "inside", resp.Label)
	assert.Equal(t, 2, resp.Presence.ClassID)
	require.NotNil(t, resp.Parking)
	assert.Equal(t, 1, resp.Parking.ClassID)
	assert.Equal(t, int64(68), resp.TotalElapsedMillis)
}

func TestClassifyJSONBody(t *testing.T) {
	stub := &stubClassifier{pred: insidePrediction(), parking: true}
	srv := newTestServer(t, stub)

	payload := fmt.Sprintf(`{"image": %q}`, base64.StdEncoding.EncodeToString([]byte("json photo bytes")))
	req := httptest.NewRequest(http.MethodPost, "/v1/classify", bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")
	rec := doRequest(srv, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("json photo bytes"), stub.lastBytes)
}

func TestClassifyMultipartBody(t *testing.T) {
	stub := &stubClassifier{pred: insidePrediction(), parking: true}
	srv := newTestServer(t, stub)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "scooter.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("multipart photo bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/classify", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := doRequest(srv, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("multipart photo bytes"), stub.lastBytes)
}

func TestClassifyRejectsBadIntake(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
	}{
		{name: "bad base64", contentType: "application/json", body: []byte(`{"image": "%%%not-base64%%%"}`)},
		{name: "malformed json", contentType: "application/json", body: []byte(`{"image": `)},
		{name: "empty raw body", contentType: "image/png", body: nil},
		{name: "multipart without image field", contentType: "multipart/form-data; boundary=x", body: []byte("--x--\r\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubClassifier{pred: insidePrediction()}
			srv := newTestServer(t, stub)

			req := httptest.NewRequest(http.MethodPost, "/v1/classify", bytes.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := doRequest(srv, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, 0, stub.calls, "rejected intake must not reach the pipeline")

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "invalid_request", resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestClassifyRejectsOversizedBody(t *testing.T) {
	stub := &stubClassifier{pred: insidePrediction()}
	srv, err := NewServer(NewServerArgs{
		Classifier:   stub,
		Logger:       log.New(io.Discard, "", 0),
		MaxBodyBytes: 64,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/classify", bytes.NewReader(bytes.Repeat([]byte{'x'}, 128)))
	req.Header.Set("Content-Type", "image/jpeg")
	rec := doRequest(srv, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, stub.calls, "oversized body must not reach the pipeline")

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_request", resp.Code)
	assert.NotEmpty(t, resp.Message)
}

func TestClassifyErrorMapping(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode string
		expectedHTTP int
	}{
		{
			name:         "decode error",
			err:          &images.DecodeError{Reason: "unrecognized image data"},
			expectedCode: "invalid_image",
			expectedHTTP: http.StatusBadRequest,
		},
		{
			name:         "session not ready",
			err:          &inference.SessionNotReadyError{Name: "presence"},
			expectedCode: "model_unavailable",
			expectedHTTP: http.StatusServiceUnavailable,
		},
		{
			name:         "model load failure",
			err:          &inference.ModelLoadError{Path: "presence.onnx", Err: fmt.Errorf("rejected")},
			expectedCode: "model_unavailable",
			expectedHTTP: http.StatusServiceUnavailable,
		},
		{
			name:         "inference failure",
			err:          &inference.InferenceError{Name: "presence", Err: fmt.Errorf("native failure")},
			expectedCode: "inference_failed",
			expectedHTTP: http.StatusBadGateway,
		},
		{
			name:         "invariant violation",
			err:          &postprocess.InvariantViolation{Message: "4 scores"},
			expectedCode: "internal_error",
			expectedHTTP: http.StatusInternalServerError,
		},
		{
			name:         "unclassified error",
			err:          fmt.Errorf("something else"),
			expectedCode: "internal_error",
			expectedHTTP: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &stubClassifier{err: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/v1/classify", bytes.NewReader([]byte("photo")))
			req.Header.Set("Content-Type", "image/jpeg")
			rec := doRequest(srv, req)

			require.Equal(t, tt.expectedHTTP, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedCode, resp.Code)
		})
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubClassifier{parking: true})

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.PresenceModel)
	assert.True(t, resp.ParkingModel)
}

func TestHealthzWithoutParkingModel(t *testing.T) {
	srv := newTestServer(t, &stubClassifier{parking: false})

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.ParkingModel)
}

func TestMetrics(t *testing.T) {
	stub := &stubClassifier{
		metrics: classify.Metrics{Requests: 12, Failures: 2, Degraded: 1},
	}
	srv, err := NewServer(NewServerArgs{
		Classifier: stub,
		Logger:     log.New(io.Discard, "", 0),
		SessionStats: func() []inference.Stats {
			return []inference.Stats{{Name: "presence", RunCount: 10, TotalMillis: 420, AverageMillis: 42}}
		},
	})
	require.NoError(t, err)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MetricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(12), resp.Pipeline.Requests)
	assert.Equal(t, int64(1), resp.Pipeline.Degraded)
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, "presence", resp.Sessions[0].Name)
	assert.Equal(t, int64(10), resp.Sessions[0].RunCount)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, 0.0)
}

func TestClassifyRejectsWrongMethod(t *testing.T) {
	srv := newTestServer(t, &stubClassifier{pred: insidePrediction()})

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/v1/classify", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNewServerRequiresClassifier(t *testing.T) {
	_, err := NewServer(NewServerArgs{})
	require.Error(t, err)
}
