package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"scene-studio/internal/compose"
	"scene-studio/internal/dataurl"
	"scene-studio/internal/editor"
	"scene-studio/internal/mediagroup"
	"scene-studio/internal/studio"
)

type photoTarget int

const (
	targetAuto photoTarget = iota
	targetScene
	targetProduct
)

func (h *Handler) setTarget(chatID int64, t photoTarget) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t == targetAuto {
		delete(h.targets, chatID)
		return
	}
	h.targets[chatID] = t
}

// takeTarget returns the chat's requested target once.
func (h *Handler) takeTarget(chatID int64) photoTarget {
	h.mu.Lock()
	defer h.mu.Unlock()
	t := h.targets[chatID]
	delete(h.targets, chatID)
	return t
}

func (h *Handler) handlePhoto(ctx context.Context, msg *tgbotapi.Message) error {
	fileID := msg.Photo[len(msg.Photo)-1].FileID

	if msg.MediaGroupID != "" && h.albums != nil {
		h.albums.Add(mediagroup.Photo{
			ChatID:  msg.Chat.ID,
			GroupID: msg.MediaGroupID,
			FileID:  fileID,
			Caption: msg.Caption,
		})
		return nil
	}

	return h.processPhotos(ctx, msg.Chat.ID, []string{fileID}, msg.Caption)
}

// HandleAlbum places a released album into the chat's session.
func (h *Handler) HandleAlbum(ctx context.Context, album mediagroup.Album) {
	if err := h.processPhotos(ctx, album.ChatID, album.FileIDs, album.Caption); err != nil {
		h.logger.Error("album processing failed", "chat_id", album.ChatID, "err", err)
	}
}

func (h *Handler) processPhotos(ctx context.Context, chatID int64, fileIDs []string, caption string) error {
	images := make([]dataurl.Image, len(fileIDs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, fileID := range fileIDs {
		i, fileID := i, fileID
		eg.Go(func() error {
			img, err := h.tg.DownloadPhoto(egCtx, fileID)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		h.logger.Error("photo download failed", "chat_id", chatID, "err", err)
		return h.tg.SendText(chatID, "Could not download the photo. Please send it again.")
	}

	summary, err := h.place(chatID, images)
	if errors.Is(err, studio.ErrBusy) {
		return h.tg.SendText(chatID, busyText)
	}
	if err != nil {
		return err
	}
	if err := h.tg.SendText(chatID, summary); err != nil {
		return err
	}

	if strings.TrimSpace(caption) != "" {
		return h.submit(ctx, chatID, caption)
	}
	return nil
}

// place puts the first photo into the scene when the chat asked for it or no
// scene is set yet; every other photo goes to a free product slot.
func (h *Handler) place(chatID int64, images []dataurl.Image) (string, error) {
	sess := h.sessions.Get(chatID)
	target := h.takeTarget(chatID)
	hasScene := sess.Snapshot().Scene != ""

	var lines []string
	ignored := 0
	for i, img := range images {
		if i == 0 && (target == targetScene || (target == targetAuto && !hasScene)) {
			var size *compose.SceneSize
			if s, ok := editor.SceneSizeOf(img); ok {
				size = &s
			}
			if err := sess.SetScene(img.String(), size); err != nil {
				return "", err
			}
			lines = append(lines, sceneText(size))
			continue
		}

		slot, err := sess.AddProduct(img.String())
		if errors.Is(err, studio.ErrSlotsFull) {
			ignored++
			continue
		}
		if err != nil {
			return "", err
		}
		lines = append(lines, fmt.Sprintf("Product saved in slot %d.", slot+1))
	}
	if ignored > 0 {
		lines = append(lines, fmt.Sprintf("Both product slots are taken, %d photo(s) ignored. Use /product clear to free them.", ignored))
	}
	return strings.Join(lines, "\n"), nil
}
