// Package bot - Telegram intake for the classification pipeline.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/classify"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/images"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/models"
)

const (
	msgStart = `👋 Привет! Я проверяю парковку самокатов по фото.

📸 Отправьте фото самоката, и я определю, стоит ли он в разрешённой зоне.

📋 Команды:
/help — справка`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Сфотографируйте самокат целиком
2️⃣ Отправьте фото в чат
3️⃣ Получите ответ: в зоне парковки или нет

💡 Снимайте при хорошем освещении, самокат должен полностью попадать в кадр.`

	msgSendPhoto       = "📸 Отправьте фото самоката для проверки парковки."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgNotAPhoto       = "⚠️ Не получилось прочитать это изображение. Отправьте обычное фото."
	msgProcessingError = "⚠️ Не удалось обработать фото. Попробуйте ещё раз чуть позже."
)

// Classifier is the pipeline surface the handler depends on.
// *classify.Pipeline satisfies it.
type Classifier interface {
	Classify(ctx context.Context, raw []byte) (*classify.Prediction, error)
}

// Sender posts replies back to a chat. *tgbotapi.BotAPI satisfies it;
// tests substitute a fake.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// FileDownloader fetches a photo rendition by its Telegram file ID.
type FileDownloader interface {
	Download(fileID string) ([]byte, error)
}

// NewHandlerArgs represents the dependencies of the update handler.
type NewHandlerArgs struct {
	// Classifier runs the two-stage pipeline. Required.
	Classifier Classifier
	// Sender posts replies. Required.
	Sender Sender
	// Downloader fetches photo bytes. Required.
	Downloader FileDownloader
	// Logger receives processing failures. Nil uses the default logger.
	Logger *log.Logger
}

// Handler turns incoming Telegram updates into classification requests and
// replies. It owns the user-facing wording; the pipeline owns the error
// kinds.
type Handler struct {
	classifier Classifier
	sender     Sender
	downloader FileDownloader
	logger     *log.Logger
}

// NewHandler wires the update handler from injected parts.
func NewHandler(args NewHandlerArgs) (*Handler, error) {
	if args.Classifier == nil {
		return nil, errors.New("handler requires a classifier")
	}
	if args.Sender == nil {
		return nil, errors.New("handler requires a sender")
	}
	if args.Downloader == nil {
		return nil, errors.New("handler requires a downloader")
	}
	logger := args.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		classifier: args.Classifier,
		sender:     args.Sender,
		downloader: args.Downloader,
		logger:     logger,
	}, nil
}

// HandleUpdate processes one update to completion. The caller invokes it
// sequentially, so at most one classification is in flight at a time.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		return
	}

	if msg.IsCommand() {
		h.handleCommand(msg)
		return
	}

	if len(msg.Photo) > 0 {
		h.handlePhoto(ctx, msg)
		return
	}

	h.send(msg.Chat.ID, msgSendPhoto)
}

// handleCommand replies to the known commands with usage help.
func (h *Handler) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		h.send(msg.Chat.ID, msgStart)
	case "help":
		h.send(msg.Chat.ID, msgHelp)
	default:
		h.send(msg.Chat.ID, msgUnknownCommand)
	}
}

// handlePhoto downloads the photo, classifies it and replies with the
// outcome. A photo the pipeline cannot decode gets a dedicated reply; any
// other failure gets a retry-later reply.
func (h *Handler) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	// Telegram orders renditions small to large; the last is the largest.
	photo := msg.Photo[len(msg.Photo)-1]

	data, err := h.downloader.Download(photo.FileID)
	if err != nil {
		h.logger.Printf("downloading photo %s failed: %v", photo.FileID, err)
		h.send(msg.Chat.ID, msgProcessingError)
		return
	}

	pred, err := h.classifier.Classify(ctx, data)
	if err != nil {
		var decodeErr *images.DecodeError
		if errors.As(err, &decodeErr) {
			h.send(msg.Chat.ID, msgNotAPhoto)
			return
		}
		h.logger.Printf("classification failed: %v", err)
		h.send(msg.Chat.ID, msgProcessingError)
		return
	}

	h.send(msg.Chat.ID, formatPrediction(pred))
}

// formatPrediction renders the pipeline outcome for the chat.
func formatPrediction(pred *classify.Prediction) string {
	switch pred.Label {
	case models.LabelNoScooter:
		return fmt.Sprintf("🛴 Самокат на фото не найден.\nУверенность: %d%%",
			percent(pred.Presence.Confidence))
	case models.LabelInside:
		return fmt.Sprintf("✅ Самокат припаркован в разрешённой зоне.\nУверенность: %d%%",
			percent(stageConfidence(pred)))
	case models.LabelOutside:
		return fmt.Sprintf("🚫 Самокат припаркован вне разрешённой зоны.\nУверенность: %d%%",
			percent(stageConfidence(pred)))
	default:
		return "🤔 Самокат видно, но парковку однозначно определить не получилось. Попробуйте снять с другого ракурса."
	}
}

// stageConfidence prefers the parking confidence when that stage ran.
func stageConfidence(pred *classify.Prediction) float32 {
	if pred.Parking != nil {
		return pred.Parking.Confidence
	}
	return pred.Presence.Confidence
}

func percent(confidence float32) int {
	return int(confidence*100 + 0.5)
}

func (h *Handler) send(chatID int64, text string) {
	if _, err := h.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.logger.Printf("sending message failed: %v", err)
	}
}
