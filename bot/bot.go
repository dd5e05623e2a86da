package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// NewBotArgs represents the arguments for creating a Telegram bot.
type NewBotArgs struct {
	// Token authenticates against the Bot API. Required.
	Token string
	// Classifier runs the two-stage pipeline. Required.
	Classifier Classifier
	// PollTimeoutSeconds is the long-poll timeout. Zero uses 30.
	PollTimeoutSeconds int
	// Logger receives bot lifecycle messages. Nil uses the default logger.
	Logger *log.Logger
}

// Bot owns the Telegram connection and feeds updates to the handler one at
// a time.
type Bot struct {
	api         *tgbotapi.BotAPI
	handler     *Handler
	logger      *log.Logger
	pollTimeout int
}

// NewBot connects to the Bot API and wires the update handler.
//
// Arguments:
//   - args: bot dependencies, see NewBotArgs.
//
// Returns:
//   - *Bot: the connected bot.
//   - error: an error if the token is rejected or a dependency is missing.
func NewBot(args NewBotArgs) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(args.Token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}

	logger := args.Logger
	if logger == nil {
		logger = log.Default()
	}

	handler, err := NewHandler(NewHandlerArgs{
		Classifier: args.Classifier,
		Sender:     api,
		Downloader: &apiDownloader{api: api},
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	pollTimeout := args.PollTimeoutSeconds
	if pollTimeout <= 0 {
		pollTimeout = 30
	}

	logger.Printf("authorized as @%s", api.Self.UserName)
	return &Bot{
		api:         api,
		handler:     handler,
		logger:      logger,
		pollTimeout: pollTimeout,
	}, nil
}

// Run consumes updates until the context is cancelled. Updates are handled
// sequentially so the pipeline sees at most one request at a time.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handler.HandleUpdate(ctx, update)
		}
	}
}

// apiDownloader fetches photo bytes through the Telegram file API.
type apiDownloader struct {
	api *tgbotapi.BotAPI
}

func (d *apiDownloader) Download(fileID string) ([]byte, error) {
	file, err := d.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("resolving file: %w", err)
	}

	resp, err := http.Get(file.Link(d.api.Token))
	if err != nil {
		return nil, fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading file: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading file body: %w", err)
	}
	return data, nil
}
