package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTargets(t *testing.T) {
	engines, err := ParseTargets([]string{"chrome87", " Safari15.4 ", "ios14"})
	require.NoError(t, err)
	assert.Equal(t, []api.Engine{
		{Name: api.EngineChrome, Version: "87"},
		{Name: api.EngineSafari, Version: "15.4"},
		{Name: api.EngineIOS, Version: "14"},
	}, engines)

	_, err = ParseTargets([]string{"netscape4"})
	require.Error(t, err)
	_, err = ParseTargets([]string{"chrome"})
	require.Error(t, err)
}

func TestValidateLowerFeatures(t *testing.T) {
	require.NoError(t, ValidateLowerFeatures(DefaultLowerFeatures))
	require.Error(t, ValidateLowerFeatures([]string{"teleportation"}))
}

func TestNestingStage(t *testing.T) {
	out, err := NewNestingStage().Transform(context.Background(), ".a { color: blue; &:hover { color: red; } }", "a.css", "")
	require.NoError(t, err)
	assert.Contains(t, out, ".a:hover")
	assert.Contains(t, out, "color: red")
	assert.NotContains(t, out, "&")
}

func TestLowerStage(t *testing.T) {
	out, err := NewLowerStage(DefaultLowerFeatures).Transform(context.Background(), ".a { color: rgb(0 0 0 / 50%); }", "a.css", "")
	require.NoError(t, err)
	assert.Contains(t, out, "rgba(")
	assert.NotContains(t, out, "/ 50%")
}

func TestPrefixStage(t *testing.T) {
	engines, err := ParseTargets([]string{"safari14"})
	require.NoError(t, err)

	out, err := NewPrefixStage(engines).Transform(context.Background(), ".a { user-select: none; }", "a.css", "")
	require.NoError(t, err)
	assert.Contains(t, out, "-webkit-user-select: none")
	assert.Contains(t, out, "user-select: none")
}

func TestEsbuildErrorMapping(t *testing.T) {
	stage := &esbuildStage{name: StageNesting}
	te := stage.transformError("/p/a.css", []api.Message{
		{Text: "Expected \"}\"", Location: &api.Location{File: "/p/a.css", Line: 3, Column: 4}},
		{Text: "second"},
	})

	assert.Equal(t, StageNesting, te.Stage)
	assert.Equal(t, 3, te.Line)
	assert.Equal(t, 5, te.Column)
	assert.Equal(t, "Expected \"}\" (and 1 more)", te.Message)
}

func TestDefaultStageOrder(t *testing.T) {
	p, err := Default(Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultStages, p.StageNames())
}

func TestDefaultRejectsBadOptions(t *testing.T) {
	_, err := Default(Options{Targets: []string{"lynx2"}})
	require.Error(t, err)
	_, err = Default(Options{LowerFeatures: []string{"nope"}})
	require.Error(t, err)
}

func TestDefaultPipelineEndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "styles", "source")
	writeFile(t, filepath.Join(src, "base.css"), "/* base reset */\nbody { margin: 0; }\n")
	global := "/* stylelint-disable */\n@import \"base.css\";\n/* drop me */\n.nav {\n  user-select: none;\n  &:hover { color: red; }\n}\n"

	p, err := Default(Options{Targets: []string{"safari14"}})
	require.NoError(t, err)

	out, err := p.Compile(context.Background(), global, filepath.Join(src, "global.css"), filepath.Join(dir, "styles", "global.css"))
	require.NoError(t, err)
	assert.Contains(t, out, "/* stylelint-disable */")
	assert.Contains(t, out, "margin: 0")
	assert.Contains(t, out, ".nav:hover")
	assert.Contains(t, out, "-webkit-user-select: none")
	assert.NotContains(t, out, "@import")
	assert.NotContains(t, out, "drop me")
	assert.NotContains(t, out, "base reset")
}

func TestPrefixStageDoesNotLowerSyntax(t *testing.T) {
	engines, err := ParseTargets(DefaultTargets)
	require.NoError(t, err)

	out, err := NewPrefixStage(engines).Transform(context.Background(), ".a { inset: 0; color: rebeccapurple; }", "a.css", "")
	require.NoError(t, err)
	assert.Contains(t, out, "inset: 0")
	assert.Contains(t, out, "rebeccapurple")
	assert.NotContains(t, out, "top: 0")
}

func TestDefaultKeepsAllowListedCommentsInsideRules(t *testing.T) {
	p, err := Default(Options{})
	require.NoError(t, err)

	tests := []struct {
		name     string
		in       string
		contains []string
	}{
		{
			name:     "declaration list",
			in:       ".a {\n  /* stylelint-disable-next-line */\n  color: red;\n}\n",
			contains: []string{"/* stylelint-disable-next-line */", "color: red"},
		},
		{
			name:     "nested rule",
			in:       ".a { & .b { /* @preserve keep */ color: red; } }\n",
			contains: []string{"/* @preserve keep */", ".a .b", "color: red"},
		},
		{
			name:     "inside media block",
			in:       "@media (min-width: 1px) {\n  /* stylelint-disable */\n  .a { color: red; }\n}\n",
			contains: []string{"/* stylelint-disable */", "@media (min-width: 1px)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := p.Compile(context.Background(), tt.in, "a.css", "")
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			assert.NotContains(t, out, keepPropPrefix)
			assert.NotContains(t, out, "/*!")
		})
	}
}

func TestDefaultResolvesCustomMediaAndColorMix(t *testing.T) {
	p, err := Default(Options{})
	require.NoError(t, err)

	in := "@custom-media --small (max-width: 30em);\n@media (--small) {\n  .a { color: color-mix(in srgb, red 50%, blue); }\n}\n"
	out, err := p.Compile(context.Background(), in, "a.css", "")
	require.NoError(t, err)
	assert.Contains(t, out, "@media (max-width: 30em)")
	assert.Contains(t, out, "#800080")
	assert.NotContains(t, out, "@custom-media")
	assert.NotContains(t, out, "--small")
	assert.NotContains(t, out, "color-mix")
}
