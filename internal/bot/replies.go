package bot

import (
	"errors"
	"fmt"

	"scene-studio/internal/compose"
	"scene-studio/internal/gemini"
	"scene-studio/internal/remoteimage"
	"scene-studio/internal/studio"
)

const helpText = "Scene Studio\n\n" +
	"1. Send a photo of the room. It becomes the scene.\n" +
	"2. Optionally send up to two product photos.\n" +
	"3. Describe the change, or pick one of the /presets.\n\n" +
	"Each new prompt edits the latest result.\n\n" +
	"/scene - the next photo replaces the scene\n" +
	"/product - the next photo becomes a product (/product clear empties the slots)\n" +
	"/presets - ready-made edits\n" +
	"/history - number of edits so far\n" +
	"/reset - start over"

const busyText = "Still working on the previous edit, please wait."

func sceneText(size *compose.SceneSize) string {
	if size.Known() {
		return fmt.Sprintf("Scene saved (%dx%d).", size.Width, size.Height)
	}
	return "Scene saved."
}

func historyText(turns int) string {
	switch turns {
	case 0:
		return "No edits yet."
	case 1:
		return "1 edit in this session."
	default:
		return fmt.Sprintf("%d edits in this session.", turns)
	}
}

func errorText(err error) string {
	var apiErr *gemini.APIError
	var fetchErr *remoteimage.FetchError

	switch {
	case errors.Is(err, studio.ErrBusy):
		return busyText
	case errors.Is(err, studio.ErrEmptyPrompt):
		return "Please describe the change."
	case errors.Is(err, gemini.ErrMissingAPIKey):
		return "The image service is not configured."
	case errors.Is(err, gemini.ErrNoImage):
		return "No image returned from API. Try rephrasing the prompt."
	case errors.As(err, &apiErr):
		return fmt.Sprintf("Image service error (%d): %s", apiErr.StatusCode, apiErr.Message)
	case errors.As(err, &fetchErr):
		return "Could not fetch a product image: " + fetchErr.Error()
	default:
		return "Edit failed: " + err.Error()
	}
}
