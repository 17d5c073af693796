package gemini

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPart_UnmarshalCasing(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Part
	}{
		{
			name: "camel case",
			raw:  `{"inlineData":{"mimeType":"image/png","data":"AAAA"}}`,
			want: Part{InlineData: &Blob{MIMEType: "image/png", Data: "AAAA"}},
		},
		{
			name: "snake case",
			raw:  `{"inline_data":{"mime_type":"image/jpeg","data":"BBBB"}}`,
			want: Part{InlineData: &Blob{MIMEType: "image/jpeg", Data: "BBBB"}, snakeCase: true},
		},
		{
			name: "empty camel falls back to snake",
			raw:  `{"inlineData":{"data":""},"inline_data":{"data":"CCCC"}}`,
			want: Part{InlineData: &Blob{Data: "CCCC"}, snakeCase: true},
		},
		{
			name: "text",
			raw:  `{"text":"here you go"}`,
			want: Part{Text: "here you go"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Part
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResponse_FirstImage(t *testing.T) {
	tests := []struct {
		name  string
		parts string
		want  string
	}{
		{
			name:  "camel case wins over an earlier snake case part",
			parts: `[{"text":"done"},{"inline_data":{"data":"SNAKE"}},{"inlineData":{"data":"CAMEL"}}]`,
			want:  "CAMEL",
		},
		{
			name:  "first camel case part",
			parts: `[{"inlineData":{"data":"ONE"}},{"inlineData":{"data":"TWO"}}]`,
			want:  "ONE",
		},
		{
			name:  "snake case when no camel case image",
			parts: `[{"text":"done"},{"inlineData":{"data":""}},{"inline_data":{"data":"SNAKE"}}]`,
			want:  "SNAKE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"candidates":[{"content":{"parts":` + tt.parts + `}},{"content":{"parts":[{"inlineData":{"data":"OTHER"}}]}}]}`
			var resp Response
			require.NoError(t, json.Unmarshal([]byte(raw), &resp))

			img, err := resp.FirstImage()
			require.NoError(t, err)
			assert.Equal(t, tt.want, img.Data)
		})
	}
}

func TestResponse_FirstImageOnlyLooksAtFirstCandidate(t *testing.T) {
	raw := `{"candidates":[
		{"content":{"parts":[{"text":"no"}]}},
		{"content":{"parts":[{"inlineData":{"data":"OTHER"}}]}}
	]}`
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))

	_, err := resp.FirstImage()
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestPart_Marshal(t *testing.T) {
	raw, err := json.Marshal([]Part{ImagePart("image/png", "AAAA"), TextPart("")})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"inlineData":{"mimeType":"image/png","data":"AAAA"}},{"text":""}]`, string(raw))
}
