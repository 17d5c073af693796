package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey is returned before any network activity when no key is configured.
	ErrMissingAPIKey = errors.New("GEMINI_API_KEY is not configured")
	// ErrNoImage means the upstream call succeeded but carried no inline image.
	ErrNoImage = errors.New("no image returned from API")
)

// APIError is a non-success answer from the generateContent endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini API %d: %s", e.StatusCode, e.Message)
}

// Blob is inline binary data; Data is base64.
type Blob struct {
	MIMEType string
	Data     string
}

// Part is one element of a content turn: either inline data or text.
// A Part with InlineData set is an image part; otherwise it is a text part,
// and an empty Text is still sent.
type Part struct {
	Text       string
	InlineData *Blob

	// snakeCase is set when InlineData was decoded from "inline_data".
	snakeCase bool
}

func TextPart(text string) Part {
	return Part{Text: text}
}

func ImagePart(mimeType, data string) Part {
	return Part{InlineData: &Blob{MIMEType: mimeType, Data: data}}
}

// IsImage reports whether the part carries non-empty inline data.
func (p Part) IsImage() bool {
	return p.InlineData != nil && p.InlineData.Data != ""
}

type wireBlob struct {
	MIMEType      string `json:"mimeType,omitempty"`
	MIMETypeSnake string `json:"mime_type,omitempty"`
	Data          string `json:"data"`
}

func (b *wireBlob) blob() *Blob {
	if b == nil || b.Data == "" {
		return nil
	}
	mimeType := b.MIMEType
	if mimeType == "" {
		mimeType = b.MIMETypeSnake
	}
	return &Blob{MIMEType: mimeType, Data: b.Data}
}

func (p Part) MarshalJSON() ([]byte, error) {
	if p.InlineData != nil {
		return json.Marshal(struct {
			InlineData wireBlob `json:"inlineData"`
		}{wireBlob{MIMEType: p.InlineData.MIMEType, Data: p.InlineData.Data}})
	}
	return json.Marshal(struct {
		Text string `json:"text"`
	}{p.Text})
}

// UnmarshalJSON reads inline data from "inlineData" and falls back to
// "inline_data"; the API is not consistent about the casing.
func (p *Part) UnmarshalJSON(data []byte) error {
	var raw struct {
		Text            string    `json:"text"`
		InlineData      *wireBlob `json:"inlineData"`
		InlineDataSnake *wireBlob `json:"inline_data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Text = raw.Text
	p.InlineData = raw.InlineData.blob()
	p.snakeCase = false
	if p.InlineData == nil {
		p.InlineData = raw.InlineDataSnake.blob()
		p.snakeCase = p.InlineData != nil
	}
	return nil
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type Response struct {
	Candidates []Candidate `json:"candidates"`
}

// FirstImage returns an image part of the first candidate. Parts sent as
// "inlineData" are searched first; "inline_data" parts are only used when no
// camel-case image is present.
func (r Response) FirstImage() (Blob, error) {
	if len(r.Candidates) == 0 {
		return Blob{}, ErrNoImage
	}
	parts := r.Candidates[0].Content.Parts
	for _, snake := range []bool{false, true} {
		for _, p := range parts {
			if p.IsImage() && p.snakeCase == snake {
				return *p.InlineData, nil
			}
		}
	}
	return Blob{}, ErrNoImage
}

type generateContentRequest struct {
	Contents []Content `json:"contents"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}
