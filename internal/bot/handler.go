// Package bot drives studio sessions from Telegram chats.
package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"scene-studio/internal/dataurl"
	"scene-studio/internal/mediagroup"
	"scene-studio/internal/presets"
	"scene-studio/internal/session"
	"scene-studio/internal/studio"
	"scene-studio/internal/telegram"
)

const presetCallbackPrefix = "preset:"

// Messenger is the part of the Telegram client the bot talks through.
type Messenger interface {
	SendTyping(chatID int64)
	SendText(chatID int64, text string) error
	SendTextWithKeyboard(chatID int64, text string, buttons []telegram.Button) error
	SendPhotoDataURL(chatID int64, dataURL string, caption string) error
	AnswerCallback(callbackID, text string) error
	DownloadPhoto(ctx context.Context, fileID string) (dataurl.Image, error)
}

type Options struct {
	Messenger Messenger
	Editor    studio.Editor
	Sessions  *session.Store
	Presets   *presets.Catalog
	Logger    *slog.Logger
}

type Handler struct {
	tg       Messenger
	editor   studio.Editor
	sessions *session.Store
	presets  *presets.Catalog
	logger   *slog.Logger
	albums   *mediagroup.Collector

	mu      sync.Mutex
	targets map[int64]photoTarget
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	catalog := opts.Presets
	if catalog == nil {
		catalog = presets.Default()
	}

	return &Handler{
		tg:       opts.Messenger,
		editor:   opts.Editor,
		sessions: opts.Sessions,
		presets:  catalog,
		logger:   logger,
		targets:  make(map[int64]photoTarget),
	}
}

func (h *Handler) SetAlbumCollector(c *mediagroup.Collector) {
	h.albums = c
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return nil
	}

	switch {
	case msg.IsCommand():
		return h.handleCommand(msg)
	case len(msg.Photo) > 0:
		return h.handlePhoto(ctx, msg)
	case strings.TrimSpace(msg.Text) != "":
		return h.submit(ctx, msg.Chat.ID, msg.Text)
	}
	return nil
}

func (h *Handler) handleCommand(msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start", "help":
		return h.tg.SendText(chatID, helpText)
	case "scene":
		h.setTarget(chatID, targetScene)
		return h.tg.SendText(chatID, "Send the photo of the room. It will replace the current scene.")
	case "product":
		if strings.EqualFold(strings.TrimSpace(msg.CommandArguments()), "clear") {
			h.sessions.Get(chatID).ClearProducts()
			return h.tg.SendText(chatID, "Product slots cleared.")
		}
		h.setTarget(chatID, targetProduct)
		return h.tg.SendText(chatID, "Send the product photo.")
	case "presets":
		return h.sendPresets(chatID)
	case "history":
		turns := h.sessions.Get(chatID).History().Len() / 2
		return h.tg.SendText(chatID, historyText(turns))
	case "reset":
		h.sessions.Reset(chatID)
		h.setTarget(chatID, targetAuto)
		return h.tg.SendText(chatID, "Session cleared. Send a scene photo to start again.")
	default:
		return h.tg.SendText(chatID, "Unknown command. See /help.")
	}
}

func (h *Handler) sendPresets(chatID int64) error {
	all := h.presets.All()
	buttons := make([]telegram.Button, 0, len(all))
	for _, p := range all {
		buttons = append(buttons, telegram.Button{Text: p.Label, Data: presetCallbackPrefix + p.Key})
	}
	return h.tg.SendTextWithKeyboard(chatID, "Pick a preset to apply to the current image:", buttons)
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q.Message == nil || q.Message.Chat == nil {
		return nil
	}
	key, ok := strings.CutPrefix(q.Data, presetCallbackPrefix)
	if !ok {
		return h.tg.AnswerCallback(q.ID, "")
	}

	p, ok := h.presets.Get(key)
	if !ok {
		return h.tg.AnswerCallback(q.ID, "Unknown preset.")
	}
	if err := h.tg.AnswerCallback(q.ID, p.Label); err != nil {
		h.logger.Warn("answer callback failed", "err", err)
	}
	return h.submit(ctx, q.Message.Chat.ID, p.Text)
}

// submit runs one edit for the chat and replies with the result photo.
func (h *Handler) submit(ctx context.Context, chatID int64, prompt string) error {
	sess := h.sessions.Get(chatID)
	if sess.EditTarget() == "" {
		return h.tg.SendText(chatID, "Send a scene photo first.")
	}

	h.tg.SendTyping(chatID)
	res, err := sess.Submit(ctx, h.editor, prompt)
	switch {
	case err == nil:
		return h.tg.SendPhotoDataURL(chatID, res.Image, strings.TrimSpace(prompt))
	case errors.Is(err, studio.ErrSessionReset):
		return nil
	case errors.Is(err, context.Canceled):
		return err
	}

	h.logger.Error("edit failed", "chat_id", chatID, "err", err)
	return h.tg.SendText(chatID, errorText(err))
}
