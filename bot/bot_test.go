package bot

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/classify"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/images"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/models"
)

const testChatID int64 = 42

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		s.sent = append(s.sent, msg)
	}
	return tgbotapi.Message{}, s.err
}

type fakeDownloader struct {
	data    []byte
	err     error
	fileIDs []string
}

func (d *fakeDownloader) Download(fileID string) ([]byte, error) {
	d.fileIDs = append(d.fileIDs, fileID)
	if d.err != nil {
		return nil, d.err
	}
	return d.data, nil
}

type stubClassifier struct {
	pred     *classify.Prediction
	err      error
	received [][]byte
}

func (c *stubClassifier) Classify(_ context.Context, raw []byte) (*classify.Prediction, error) {
	c.received = append(c.received, raw)
	if c.err != nil {
		return nil, c.err
	}
	return c.pred, nil
}

func newTestHandler(t *testing.T, classifier Classifier, sender Sender, downloader FileDownloader) *Handler {
	t.Helper()

	handler, err := NewHandler(NewHandlerArgs{
		Classifier: classifier,
		Sender:     sender,
		Downloader: downloader,
		Logger:     log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	return handler
}

func commandUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: testChatID},
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(text)},
		},
	}}
}

func textUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: testChatID},
	}}
}

func photoUpdate() tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: testChatID},
		Photo: []tgbotapi.PhotoSize{
			{FileID: "thumb", Width: 90, Height: 90},
			{FileID: "full", Width: 1280, Height: 960},
		},
	}}
}

func insidePrediction() *classify.Prediction {
	return &classify.Prediction{
		Presence: classify.StagePrediction{Class: 1, Confidence: 0.97, ElapsedMillis: 12},
		Parking: &classify.StagePrediction{
			Class: int(models.ParkingInside), Confidence: 0.91, ElapsedMillis: 9,
		},
		Label:              models.LabelInside,
		TotalElapsedMillis: 21,
	}
}

func TestHandleUpdateCommands(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		expected string
	}{
		{name: "start", text: "/start", expected: msgStart},
		{name: "help", text: "/help", expected: msgHelp},
		{name: "unknown", text: "/frobnicate", expected: msgUnknownCommand},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sender := &fakeSender{}
			handler := newTestHandler(t, &stubClassifier{}, sender, &fakeDownloader{})

			handler.HandleUpdate(context.Background(), commandUpdate(tc.text))

			require.Len(t, sender.sent, 1)
			assert.Equal(t, tc.expected, sender.sent[0].Text)
			assert.Equal(t, testChatID, sender.sent[0].ChatID)
		})
	}
}

func TestHandleUpdateTextPromptsForPhoto(t *testing.T) {
	sender := &fakeSender{}
	classifier := &stubClassifier{}
	handler := newTestHandler(t, classifier, sender, &fakeDownloader{})

	handler.HandleUpdate(context.Background(), textUpdate("где мой самокат?"))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, msgSendPhoto, sender.sent[0].Text)
	assert.Empty(t, classifier.received)
}

func TestHandleUpdatePhoto(t *testing.T) {
	sender := &fakeSender{}
	downloader := &fakeDownloader{data: []byte("photo-bytes")}
	classifier := &stubClassifier{pred: insidePrediction()}
	handler := newTestHandler(t, classifier, sender, downloader)

	handler.HandleUpdate(context.Background(), photoUpdate())

	// The largest rendition is the last one Telegram lists.
	assert.Equal(t, []string{"full"}, downloader.fileIDs)
	require.Len(t, classifier.received, 1)
	assert.Equal(t, []byte("photo-bytes"), classifier.received[0])

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "в разрешённой зоне")
	assert.Contains(t, sender.sent[0].Text, "91%")
}

func TestHandleUpdatePhotoReplies(t *testing.T) {
	testCases := []struct {
		name     string
		pred     *classify.Prediction
		expected string
	}{
		{
			name: "no scooter",
			pred: &classify.Prediction{
				Presence: classify.StagePrediction{Class: 0, Confidence: 0.88},
				Label:    models.LabelNoScooter,
			},
			expected: "Самокат на фото не найден",
		},
		{
			name: "outside",
			pred: &classify.Prediction{
				Presence: classify.StagePrediction{Class: 1, Confidence: 0.95},
				Parking:  &classify.StagePrediction{Class: int(models.ParkingOutside), Confidence: 0.83},
				Label:    models.LabelOutside,
			},
			expected: "вне разрешённой зоны",
		},
		{
			name: "hard to say with parking stage",
			pred: &classify.Prediction{
				Presence: classify.StagePrediction{Class: 1, Confidence: 0.95},
				Parking:  &classify.StagePrediction{Class: int(models.ParkingUndetermined), Confidence: 0.52},
				Label:    models.LabelHardToSay,
			},
			expected: "однозначно определить не получилось",
		},
		{
			name: "hard to say after degrade",
			pred: &classify.Prediction{
				Presence: classify.StagePrediction{Class: 1, Confidence: 0.95},
				Label:    models.LabelHardToSay,
			},
			expected: "однозначно определить не получилось",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sender := &fakeSender{}
			downloader := &fakeDownloader{data: []byte("photo")}
			handler := newTestHandler(t, &stubClassifier{pred: tc.pred}, sender, downloader)

			handler.HandleUpdate(context.Background(), photoUpdate())

			require.Len(t, sender.sent, 1)
			assert.Contains(t, sender.sent[0].Text, tc.expected)
		})
	}
}

func TestHandleUpdatePhotoDecodeError(t *testing.T) {
	sender := &fakeSender{}
	downloader := &fakeDownloader{data: []byte("not an image")}
	classifier := &stubClassifier{err: &images.DecodeError{Reason: "unsupported format"}}
	handler := newTestHandler(t, classifier, sender, downloader)

	handler.HandleUpdate(context.Background(), photoUpdate())

	require.Len(t, sender.sent, 1)
	assert.Equal(t, msgNotAPhoto, sender.sent[0].Text)
}

func TestHandleUpdatePhotoClassifierError(t *testing.T) {
	sender := &fakeSender{}
	downloader := &fakeDownloader{data: []byte("photo")}
	classifier := &stubClassifier{err: errors.New("model exploded")}
	handler := newTestHandler(t, classifier, sender, downloader)

	handler.HandleUpdate(context.Background(), photoUpdate())

	require.Len(t, sender.sent, 1)
	assert.Equal(t, msgProcessingError, sender.sent[0].Text)
}

func TestHandleUpdatePhotoDownloadError(t *testing.T) {
	sender := &fakeSender{}
	downloader := &fakeDownloader{err: errors.New("telegram unreachable")}
	classifier := &stubClassifier{pred: insidePrediction()}
	handler := newTestHandler(t, classifier, sender, downloader)

	handler.HandleUpdate(context.Background(), photoUpdate())

	assert.Empty(t, classifier.received)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, msgProcessingError, sender.sent[0].Text)
}

func TestHandleUpdateIgnoresNonMessages(t *testing.T) {
	sender := &fakeSender{}
	handler := newTestHandler(t, &stubClassifier{}, sender, &fakeDownloader{})

	handler.HandleUpdate(context.Background(), tgbotapi.Update{})

	assert.Empty(t, sender.sent)
}

func TestNewHandlerValidation(t *testing.T) {
	classifier := &stubClassifier{}
	sender := &fakeSender{}
	downloader := &fakeDownloader{}

	testCases := []struct {
		name string
		args NewHandlerArgs
	}{
		{name: "missing classifier", args: NewHandlerArgs{Sender: sender, Downloader: downloader}},
		{name: "missing sender", args: NewHandlerArgs{Classifier: classifier, Downloader: downloader}},
		{name: "missing downloader", args: NewHandlerArgs{Classifier: classifier, Sender: sender}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewHandler(tc.args)
			assert.Error(t, err)
		})
	}
}

func TestFormatPredictionRoundsConfidence(t *testing.T) {
	pred := &classify.Prediction{
		Presence: classify.StagePrediction{Class: 0, Confidence: 0.876},
		Label:    models.LabelNoScooter,
	}

	assert.Contains(t, formatPrediction(pred), "88%")
}
