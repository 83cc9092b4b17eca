package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/cssbuilder/internal/logfields"
)

// DefaultTargets is the browser baseline used for vendor prefixing.
var DefaultTargets = []string{"chrome87", "edge88", "firefox78", "safari14", "ios14"}

// DefaultLowerFeatures is the feature set lowered regardless of targets. Nesting rules,
// custom media queries and modern color syntax are lowered explicitly. Every other
// feature is left untouched.
var DefaultLowerFeatures = []string{
	"nesting", "color-functions", "hwb", "hex-rgba", "modern-rgb-hsl", FeatureCustomMedia, FeatureColorMix,
}

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

// ParseTargets converts entries such as "chrome87" or "safari15.4" into esbuild engines.
func ParseTargets(targets []string) ([]api.Engine, error) {
	engines := make([]api.Engine, 0, len(targets))
	for _, raw := range targets {
		t := strings.ToLower(strings.TrimSpace(raw))
		idx := strings.IndexFunc(t, unicode.IsDigit)
		if idx <= 0 {
			return nil, fmt.Errorf("invalid browser target %q: expected <browser><version>", raw)
		}
		name, ok := engineNames[t[:idx]]
		if !ok {
			return nil, fmt.Errorf("unknown browser %q in target %q", t[:idx], raw)
		}
		engines = append(engines, api.Engine{Name: name, Version: t[idx:]})
	}
	return engines, nil
}

// esbuildFeatures are the CSS features esbuild can lower.
var esbuildFeatures = []string{
	"color-functions", "gradient-double-position", "gradient-interpolation", "gradient-midpoints",
	"hex-rgba", "hwb", "inline-style", "inset-property", "is-pseudo-class", "media-range", "modern-rgb-hsl",
	"nesting", "rebecca-purple",
}

// KnownLowerFeatures lists the feature names accepted by NewLowerStage.
var KnownLowerFeatures = append(slices.Clone(esbuildFeatures), FeatureCustomMedia, FeatureColorMix)

// esbuildStage runs esbuild's CSS transform with fixed options. esbuild drops
// ordinary comments, so when preserve is set the comments it would keep are
// carried through as placeholders and restored afterwards.
type esbuildStage struct {
	name     string
	opts     api.TransformOptions
	preserve *CommentFilter
}

func baseOptions() api.TransformOptions {
	return api.TransformOptions{
		Loader:        api.LoaderCSS,
		LegalComments: api.LegalCommentsInline,
		Charset:       api.CharsetUTF8,
		LogLevel:      api.LogLevelSilent,
	}
}

// NewNestingStage desugars nested rules into flat selectors.
func NewNestingStage() Stage {
	opts := baseOptions()
	opts.Supported = map[string]bool{"nesting": false}
	return &esbuildStage{name: StageNesting, opts: opts}
}

// ValidateLowerFeatures rejects feature names esbuild does not understand.
func ValidateLowerFeatures(features []string) error {
	for _, f := range features {
		if !slices.Contains(KnownLowerFeatures, f) {
			return fmt.Errorf("unknown lower feature %q (known: %s)", f, strings.Join(KnownLowerFeatures, ", "))
		}
	}
	return nil
}

// NewLowerStage lowers exactly the listed features, independent of browser targets.
func NewLowerStage(features []string) Stage {
	opts := baseOptions()
	opts.Supported = make(map[string]bool, len(features))
	for _, f := range features {
		if slices.Contains(esbuildFeatures, f) {
			opts.Supported[f] = false
		}
	}
	return &lowerStage{
		customMedia: slices.Contains(features, FeatureCustomMedia),
		colorMix:    slices.Contains(features, FeatureColorMix),
		esbuild:     &esbuildStage{name: StageLower, opts: opts},
	}
}

// NewPrefixStage adds vendor prefixes required by the given engines. Syntax
// lowering belongs to the lower stage, so every feature is marked supported.
func NewPrefixStage(engines []api.Engine) Stage {
	opts := baseOptions()
	opts.Engines = engines
	opts.Supported = make(map[string]bool, len(esbuildFeatures))
	for _, f := range esbuildFeatures {
		opts.Supported[f] = true
	}
	return &esbuildStage{name: StagePrefix, opts: opts}
}

func (s *esbuildStage) Name() string { return s.name }

func (s *esbuildStage) Transform(_ context.Context, text, from, _ string) (string, error) {
	opts := s.opts
	opts.Sourcefile = from
	var kept []string
	if s.preserve != nil {
		text, kept = s.preserve.protect(text)
	}

	result := api.Transform(text, opts)
	for _, w := range result.Warnings {
		slog.Debug("Stage warning", logfields.Stage(s.name), logfields.Path(from), slog.String("warning", w.Text))
	}
	if len(result.Errors) > 0 {
		return "", s.transformError(from, result.Errors)
	}
	out := string(result.Code)
	if s.preserve != nil {
		out = s.preserve.restore(out, kept)
	}
	return out, nil
}

// preserving returns stage with kept comments protected, when stage is esbuild-backed.
func preserving(stage Stage, filter *CommentFilter) Stage {
	switch s := stage.(type) {
	case *esbuildStage:
		clone := *s
		clone.preserve = filter
		return &clone
	case *lowerStage:
		clone := *s
		clone.esbuild = preserving(s.esbuild, filter).(*esbuildStage)
		return &clone
	}
	return stage
}

func (s *esbuildStage) transformError(from string, msgs []api.Message) *TransformError {
	first := msgs[0]
	te := &TransformError{Stage: s.name, Message: first.Text, File: from}
	if loc := first.Location; loc != nil {
		te.Line = loc.Line
		te.Column = loc.Column + 1
		if loc.File != "" {
			te.File = loc.File
		}
	}
	if len(msgs) > 1 {
		te.Message = fmt.Sprintf("%s (and %d more)", te.Message, len(msgs)-1)
	}
	return te
}
