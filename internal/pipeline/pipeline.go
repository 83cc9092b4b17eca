package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Canonical stage names.
const (
	StageImport   = "import"
	StageNesting  = "nesting"
	StageLower    = "lower"
	StagePrefix   = "prefix"
	StageComments = "comments"
)

// Stage is one text transform. Implementations must not write to the filesystem.
// from and to are the source and destination paths, for resolution and diagnostics.
type Stage interface {
	Name() string
	Transform(ctx context.Context, text, from, to string) (string, error)
}

// StageFunc adapts a function to the Stage interface.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, text, from, to string) (string, error)
}

func (s StageFunc) Name() string { return s.StageName }

func (s StageFunc) Transform(ctx context.Context, text, from, to string) (string, error) {
	return s.Fn(ctx, text, from, to)
}

// Pipeline is an ordered, immutable sequence of stages.
type Pipeline struct {
	stages []Stage
}

// New returns a pipeline running stages in the given order.
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: slices.Clone(stages)}
}

// StageNames lists the stages in execution order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.Name())
	}
	return names
}

// Compile runs src through every stage. Any stage failure is returned as a
// *TransformError naming the stage.
func (p *Pipeline) Compile(ctx context.Context, src, from, to string) (string, error) {
	text := src
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := runStage(ctx, stage, text, from, to)
		if err != nil {
			return "", err
		}
		text = out
	}
	return text, nil
}

func runStage(ctx context.Context, stage Stage, text, from, to string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TransformError{Stage: stage.Name(), Message: fmt.Sprintf("panic: %v", r), File: from}
		}
	}()

	out, err = stage.Transform(ctx, text, from, to)
	if err == nil {
		return out, nil
	}
	var te *TransformError
	if errors.As(err, &te) {
		if te.Stage == "" {
			te.Stage = stage.Name()
		}
		return "", te
	}
	return "", &TransformError{Stage: stage.Name(), Message: err.Error(), File: from, Err: err}
}
