package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/assistant-api/assistant-api/pkg/httpclient"
	"github.com/assistant-api/assistant-api/pkg/logger"
)

// GreenAPIAdapter polls a GreenAPI WhatsApp instance with
// receiveNotification and acknowledges each notification with
// deleteNotification. First contact from a user gets the greeting
// before the reply.
type GreenAPIAdapter struct {
	instanceID string
	token      string
	host       string
	httpClient *httpclient.Client
	seen       map[string]bool
	log        *slog.Logger
}

// NewGreenAPIAdapter creates an adapter for one WhatsApp instance.
// nums selects the GreenAPI API subdomain tier.
func NewGreenAPIAdapter(instanceID, token string, nums int) *GreenAPIAdapter {
	if nums == 0 {
		nums = 7105
	}
	return &GreenAPIAdapter{
		instanceID: instanceID,
		token:      token,
		host:       fmt.Sprintf("https://%d.api.greenapi.com", nums),
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
			httpclient.WithHeaderParser(httpclient.ParseRetryAfterHeader),
		),
		seen: make(map[string]bool),
		log:  logger.WithComponent("greenapi"),
	}
}

func (a *GreenAPIAdapter) Name() string { return ChannelWhatsApp }

// notification is one receiveNotification result.
type notification struct {
	ReceiptID int64 `json:"receiptId"`
	Body      struct {
		TypeWebhook string `json:"typeWebhook"`
		SenderData  struct {
			Sender string `json:"sender"`
			ChatID string `json:"chatId"`
		} `json:"senderData"`
		MessageData struct {
			TypeMessage     string `json:"typeMessage"`
			TextMessageData struct {
				TextMessage string `json:"textMessage"`
			} `json:"textMessageData"`
		} `json:"messageData"`
	} `json:"body"`
}

// Run polls until the context is canceled.
func (a *GreenAPIAdapter) Run(ctx context.Context, h Handler) error {
	a.log.Info("greenapi adapter started", "instance_id", a.instanceID)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := a.receiveNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.log.Warn("receiveNotification failed", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}
		if n == nil {
			continue
		}

		a.process(ctx, h, n)

		if err := a.deleteNotification(ctx, n.ReceiptID); err != nil {
			a.log.Warn("deleteNotification failed", "receipt_id", n.ReceiptID, "error", err)
		}
	}
}

func (a *GreenAPIAdapter) process(ctx context.Context, h Handler, n *notification) {
	if n.Body.TypeWebhook != "incomingMessageReceived" {
		return
	}

	userID := senderToUserID(n.Body.SenderData.Sender)
	chatID := n.Body.SenderData.ChatID
	if userID == "" || chatID == "" {
		return
	}

	if n.Body.MessageData.TypeMessage != "textMessage" {
		// Media and stickers are out of scope; tell the user.
		if err := a.sendMessage(ctx, chatID, "I received your media message, but I can only process text."); err != nil {
			a.log.Error("sendMessage failed", "chat_id", chatID, "error", err)
		}
		return
	}

	text := n.Body.MessageData.TextMessageData.TextMessage
	if text == "" {
		return
	}

	if !a.seen[userID] {
		a.seen[userID] = true
		if err := a.sendMessage(ctx, chatID, h.Hello(ctx)); err != nil {
			a.log.Error("sendMessage failed", "chat_id", chatID, "error", err)
		}
	}

	reply := h.Handle(ctx, ChannelWhatsApp, userID, text)
	if err := a.sendMessage(ctx, chatID, reply); err != nil {
		a.log.Error("sendMessage failed", "chat_id", chatID, "error", err)
	}
}

// senderToUserID strips the @c.us suffix from a GreenAPI sender id.
func senderToUserID(sender string) string {
	if i := strings.Index(sender, "@"); i >= 0 {
		return sender[:i]
	}
	return sender
}

// receiveNotification returns the next queued notification, or nil
// when the queue is empty.
func (a *GreenAPIAdapter) receiveNotification(ctx context.Context) (*notification, error) {
	url := fmt.Sprintf("%s/waInstance%s/receiveNotification/%s", a.host, a.instanceID, a.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	body, err := a.call(req)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 || string(bytes.TrimSpace(body)) == "null" {
		return nil, nil
	}

	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("failed to parse notification: %w", err)
	}
	return &n, nil
}

func (a *GreenAPIAdapter) deleteNotification(ctx context.Context, receiptID int64) error {
	url := fmt.Sprintf("%s/waInstance%s/deleteNotification/%s/%d", a.host, a.instanceID, a.token, receiptID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	_, err = a.call(req)
	return err
}

func (a *GreenAPIAdapter) sendMessage(ctx context.Context, chatID, message string) error {
	payload, err := json.Marshal(map[string]string{
		"chatId":  chatID,
		"message": message,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/waInstance%s/sendMessage/%s", a.host, a.instanceID, a.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = a.call(req)
	return err
}

func (a *GreenAPIAdapter) call(req *http.Request) ([]byte, error) {
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
		return nil, fmt.Errorf("greenapi returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
