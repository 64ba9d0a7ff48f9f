package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	appconfig "rektflow/config"
	"rektflow/logger"
)

// Notifier delivers a rendered alert somewhere.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// TelegramNotifier sends HTML-formatted messages to one chat via the bot
// API.
type TelegramNotifier struct {
	apiURL string
	token  string
	chatID string
	client *http.Client
	log    *logger.Log
}

func NewTelegramNotifier(cfg appconfig.TelegramConfig) *TelegramNotifier {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "https://api.telegram.org"
	}
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &TelegramNotifier{
		apiURL: apiURL,
		token:  cfg.BotToken,
		chatID: cfg.ChatID,
		client: &http.Client{Timeout: timeout},
		log:    logger.GetLogger(),
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func (n *TelegramNotifier) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.apiURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var parsed sendMessageResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("telegram returned status %d with unparseable body", resp.StatusCode)
	}
	if !parsed.OK {
		return fmt.Errorf("telegram api error %d: %s", parsed.ErrorCode, parsed.Description)
	}

	logger.IncrementAlertSent(len(body))
	return nil
}

// LogNotifier writes alerts to the log instead of an external chat. Used
// when telegram is disabled, so the rest of the pipeline keeps running.
type LogNotifier struct {
	log *logger.Log
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.GetLogger()}
}

func (n *LogNotifier) Send(ctx context.Context, text string) error {
	n.log.WithComponent("alert_log_notifier").WithFields(logger.Fields{
		"message": text,
	}).Info("alert (telegram disabled)")
	logger.IncrementAlertSent(len(text))
	return nil
}
