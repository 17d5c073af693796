package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"scene-studio/internal/dataurl"
)

const (
	maxMessageBytes = 4096
	maxCaptionBytes = 1024
	maxPhotoBytes   = 20 << 20
)

type Options struct {
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Debug      bool
}

type Client struct {
	bot        *tgbotapi.BotAPI
	httpClient *http.Client
	logger     *slog.Logger
}

// Button is one inline keyboard button; Data comes back in the callback query.
type Button struct {
	Text string
	Data string
}

type Update = tgbotapi.Update

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if opts.HTTPClient == nil {
		return nil, errors.New("http client is nil")
	}

	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, tgbotapi.APIEndpoint, opts.HTTPClient)
	if err != nil {
		return nil, err
	}
	bot.Debug = opts.Debug

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{bot: bot, httpClient: opts.HTTPClient, logger: logger}, nil
}

func (c *Client) Username() string {
	return c.bot.Self.UserName
}

func (c *Client) Updates(timeout time.Duration) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	if timeout > 0 {
		u.Timeout = int(timeout.Seconds())
	}
	return c.bot.GetUpdatesChan(u)
}

func (c *Client) StopUpdates() {
	c.bot.StopReceivingUpdates()
}

func (c *Client) SendTyping(chatID int64) {
	_, _ = c.bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatUploadPhoto))
}

// SendText splits long text into several messages on rune boundaries.
func (c *Client) SendText(chatID int64, text string) error {
	for _, chunk := range splitByBytes(text, maxMessageBytes) {
		if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return err
		}
	}
	return nil
}

// SendTextWithKeyboard sends text with one inline button per row.
func (c *Client) SendTextWithKeyboard(chatID int64, text string, buttons []Button) error {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data)))
	}
	msg := tgbotapi.NewMessage(chatID, truncateByBytes(text, maxMessageBytes))
	if len(rows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	_, err := c.bot.Send(msg)
	return err
}

// AnswerCallback stops the client-side spinner on an inline button.
func (c *Client) AnswerCallback(callbackID, text string) error {
	_, err := c.bot.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

// SendPhotoDataURL uploads an image given as a data URL.
func (c *Client) SendPhotoDataURL(chatID int64, value string, caption string) error {
	img, ok := dataurl.Parse(value)
	if !ok {
		return errors.New("invalid data url")
	}
	raw, err := img.Bytes()
	if err != nil {
		return fmt.Errorf("decode photo: %w", err)
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: fileNameFor(img.MIMEType), Bytes: raw})
	if caption != "" {
		photo.Caption = truncateByBytes(caption, maxCaptionBytes)
	}
	_, err = c.bot.Send(photo)
	return err
}

// DownloadPhoto fetches a Telegram file and returns it as a data URL image.
func (c *Client) DownloadPhoto(ctx context.Context, fileID string) (dataurl.Image, error) {
	fileURL, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return dataurl.Image{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return dataurl.Image{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return dataurl.Image{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return dataurl.Image{}, fmt.Errorf("telegram file download %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes+1))
	if err != nil {
		return dataurl.Image{}, err
	}
	if len(raw) > maxPhotoBytes {
		return dataurl.Image{}, fmt.Errorf("telegram file %s exceeds %d bytes", fileID, maxPhotoBytes)
	}

	return dataurl.FromBytes(sniffMIMEType(resp.Header.Get("content-type"), raw), raw), nil
}

func sniffMIMEType(header string, raw []byte) string {
	mimeType := stripParams(header)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = stripParams(http.DetectContentType(raw))
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}
	return mimeType
}

func stripParams(value string) string {
	value, _, _ = strings.Cut(value, ";")
	return strings.TrimSpace(value)
}

func fileNameFor(mimeType string) string {
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		return "image" + exts[0]
	}
	return "image.png"
}
