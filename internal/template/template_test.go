package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		params map[string]any
		want   string
	}{
		{"simple", "ZSH={{ .FrameworkDirHomeRel }}", map[string]any{"FrameworkDirHomeRel": "$HOME/.oh-my-zsh"}, "ZSH=$HOME/.oh-my-zsh"},
		{"multiple", "{{ .a }} and {{ .b }}", map[string]any{"a": "x", "b": "y"}, "x and y"},
		{"no template", "plain $ZSH_CUSTOM text", map[string]any{"x": "y"}, "plain $ZSH_CUSTOM text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.input, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderErrors(t *testing.T) {
	_, err := Render("{{ .bad", nil)
	assert.Error(t, err)

	_, err = Render("{{ .Missing }}", map[string]any{})
	assert.Error(t, err)
}

func TestParams(t *testing.T) {
	p := Params(Paths{
		Home:         "/home/u",
		FrameworkDir: "/home/u/.oh-my-zsh",
		CustomDir:    "/opt/zsh-custom",
		FontDir:      "/home/u/.local/share/fonts",
	})
	assert.Equal(t, "$HOME/.oh-my-zsh", p["FrameworkDirHomeRel"])
	assert.Equal(t, "/opt/zsh-custom", p["CustomDirHomeRel"])
	assert.Equal(t, "/home/u/.oh-my-zsh", p["FrameworkDir"])
	assert.Equal(t, "$HOME", homeRel("/home/u", "/home/u"))
	assert.Equal(t, "/home/u2/x", homeRel("/home/u", "/home/u2/x"))
}
