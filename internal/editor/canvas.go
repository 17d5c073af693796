package editor

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"scene-studio/internal/compose"
	"scene-studio/internal/dataurl"
)

// SceneSizeOf reads the pixel size from the image header without decoding it.
func SceneSizeOf(img dataurl.Image) (compose.SceneSize, bool) {
	raw, err := img.Bytes()
	if err != nil {
		return compose.SceneSize{}, false
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return compose.SceneSize{}, false
	}
	size := compose.SceneSize{Width: cfg.Width, Height: cfg.Height}
	return size, size.Known()
}

// fitToScene stretches the generated image over a white canvas of the scene
// size and returns it as base64 PNG.
func fitToScene(b64 string, size compose.SceneSize) (string, error) {
	if !size.Known() {
		return "", fmt.Errorf("scene size %dx%d out of range", size.Width, size.Height)
	}
	raw, err := dataurl.Image{Data: b64}.Bytes()
	if err != nil {
		return "", err
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decode generated image: %w", err)
	}
	if b := src.Bounds(); b.Dx() == size.Width && b.Dy() == size.Height {
		return b64, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
