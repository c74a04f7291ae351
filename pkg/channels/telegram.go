package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/assistant-api/assistant-api/pkg/httpclient"
	"github.com/assistant-api/assistant-api/pkg/logger"
)

const (
	telegramHost        = "https://api.telegram.org"
	telegramPollSeconds = 30
)

// TelegramAdapter polls the Bot API with getUpdates and answers with
// sendMessage. The /start command gets the agent's greeting.
type TelegramAdapter struct {
	token      string
	host       string
	httpClient *httpclient.Client
	offset     int64
	log        *slog.Logger
}

// NewTelegramAdapter creates an adapter for one bot token.
func NewTelegramAdapter(token string) *TelegramAdapter {
	return &TelegramAdapter{
		token: token,
		host:  telegramHost,
		httpClient: httpclient.New(
			// The long poll holds the connection open for the full
			// poll window; the client timeout must outlast it.
			httpclient.WithHTTPClient(&http.Client{Timeout: (telegramPollSeconds + 10) * time.Second}),
			httpclient.WithHeaderParser(httpclient.ParseRetryAfterHeader),
		),
		log: logger.WithComponent("telegram"),
	}
}

func (a *TelegramAdapter) Name() string { return ChannelTelegram }

// telegramUpdate is the subset of the Bot API update we consume.
type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Text string `json:"text"`
	} `json:"message"`
}

// Run polls until the context is canceled. Poll errors back off and
// retry; they never stop the loop.
func (a *TelegramAdapter) Run(ctx context.Context, h Handler) error {
	a.log.Info("telegram adapter started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := a.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.log.Warn("getUpdates failed", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, update := range updates {
			a.offset = update.UpdateID + 1
			if update.Message == nil || update.Message.Text == "" {
				continue
			}

			userID := strconv.FormatInt(update.Message.From.ID, 10)
			chatID := update.Message.Chat.ID

			var reply string
			if strings.HasPrefix(update.Message.Text, "/start") {
				reply = h.Hello(ctx)
			} else {
				reply = h.Handle(ctx, ChannelTelegram, userID, update.Message.Text)
			}

			if err := a.sendMessage(ctx, chatID, reply); err != nil {
				a.log.Error("sendMessage failed", "chat_id", chatID, "error", err)
			}
		}
	}
}

func (a *TelegramAdapter) getUpdates(ctx context.Context) ([]telegramUpdate, error) {
	url := fmt.Sprintf("%s/bot%s/getUpdates?timeout=%d&offset=%d",
		a.host, a.token, telegramPollSeconds, a.offset)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	body, err := a.call(req)
	if err != nil {
		return nil, err
	}

	var result struct {
		OK     bool             `json:"ok"`
		Result []telegramUpdate `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse updates: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("getUpdates returned ok=false")
	}
	return result.Result, nil
}

func (a *TelegramAdapter) sendMessage(ctx context.Context, chatID int64, text string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", a.host, a.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = a.call(req)
	return err
}

func (a *TelegramAdapter) call(req *http.Request) ([]byte, error) {
	resp, err := a.httpClient.Do(req)
	if resp == nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram API returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
