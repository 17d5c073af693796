package compose

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplate_Compose(t *testing.T) {
	tpl := DefaultTemplate()
	rules := strings.Join(tpl.Rules, " ")

	tests := []struct {
		name   string
		prompt string
		size   *SceneSize
		want   string
	}{
		{name: "prompt and size", prompt: "  make walls green ", size: &SceneSize{Width: 800, Height: 600},
			want: "make walls green Keep the canvas exactly 800x600 pixels. " + rules},
		{name: "no size", prompt: "make walls green", want: "make walls green " + rules},
		{name: "zero size ignored", prompt: "rug", size: &SceneSize{}, want: "rug " + rules},
		{name: "empty prompt", prompt: "   ", size: &SceneSize{Width: 10, Height: 20},
			want: "Keep the canvas exactly 10x20 pixels. " + rules},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tpl.Compose(tt.prompt, tt.size))
		})
	}
}

func TestTemplate_RulesMentionInvariants(t *testing.T) {
	text := DefaultTemplate().Compose("", nil)
	for _, want := range []string{"furniture", "resize, crop or pad", "natural repetition", "perspective"} {
		assert.Contains(t, text, want)
	}
}

func TestLookup(t *testing.T) {
	tpl, err := Lookup(" Placement ")
	require.NoError(t, err)
	assert.Equal(t, TemplatePlacement, tpl.Name)
	assert.Contains(t, tpl.Compose("add the chair", &SceneSize{Width: 1, Height: 2}), "add the chair Keep the canvas exactly 1x2 pixels. Use the first image")

	_, err = Lookup("nope")
	assert.Error(t, err)
}

func TestSceneSize_Known(t *testing.T) {
	var nilSize *SceneSize
	assert.False(t, nilSize.Known())
	assert.False(t, (&SceneSize{Width: 5}).Known())
	assert.True(t, (&SceneSize{Width: 5, Height: 5}).Known())
	assert.True(t, (&SceneSize{Width: MaxSceneSide, Height: MaxSceneSide}).Known())
	assert.False(t, (&SceneSize{Width: 40000, Height: 40000}).Known())
	assert.False(t, (&SceneSize{Width: 800, Height: MaxSceneSide + 1}).Known())
	assert.False(t, (&SceneSize{Width: 1 << 30, Height: 1 << 30}).Known())
}

func TestCompose_OversizedSceneHasNoCanvasDirective(t *testing.T) {
	got := DefaultTemplate().Compose("rug", &SceneSize{Width: 40000, Height: 40000})
	assert.NotContains(t, got, "40000")
	assert.NotContains(t, got, "Keep the canvas exactly")
}
