// Package dataurl parses and builds base64 data URLs of the form
// data:<mime>;base64,<payload>.
package dataurl

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

// PNGMIMEType is the MIME type used for every generated image.
const PNGMIMEType = "image/png"

var pattern = regexp.MustCompile(`^data:(.+?);base64,(.+)$`)

// Image is an inline image reference. Data holds the base64 payload verbatim.
type Image struct {
	MIMEType string
	Data     string
}

// Parse recognizes a data URL. It reports false for anything that does not
// have the data:<mime>;base64,<payload> shape; callers skip such values.
func Parse(value string) (Image, bool) {
	m := pattern.FindStringSubmatch(value)
	if len(m) != 3 {
		return Image{}, false
	}
	return Image{MIMEType: m[1], Data: m[2]}, true
}

// Encode builds a data URL from a MIME type and a base64 payload.
func Encode(mimeType, data string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, data)
}

// PNG wraps a base64 payload as a PNG data URL.
func PNG(data string) string {
	return Encode(PNGMIMEType, data)
}

// FromBytes base64-encodes raw image bytes.
func FromBytes(mimeType string, raw []byte) Image {
	return Image{MIMEType: mimeType, Data: base64.StdEncoding.EncodeToString(raw)}
}

func (img Image) String() string {
	return Encode(img.MIMEType, img.Data)
}

// Bytes decodes the payload. Unpadded payloads are accepted.
func (img Image) Bytes() ([]byte, error) {
	data := strings.TrimSpace(img.Data)
	raw, err := base64.StdEncoding.DecodeString(data)
	if err == nil {
		return raw, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "=")); rawErr == nil {
		return raw, nil
	}
	return nil, fmt.Errorf("decode base64: %w", err)
}
