package pipeline

// DefaultStages is the fixed stage order of the default pipeline.
var DefaultStages = []string{StageImport, StageNesting, StageLower, StagePrefix, StageComments}

// Options configures the default pipeline. Nil slices select the package defaults.
type Options struct {
	Targets       []string
	LowerFeatures []string
	KeepComments  []string
	// ReadFile overrides how the import stage loads files; nil uses os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

// Default builds the standard five-stage pipeline.
func Default(opts Options) (*Pipeline, error) {
	targets := opts.Targets
	if targets == nil {
		targets = DefaultTargets
	}
	engines, err := ParseTargets(targets)
	if err != nil {
		return nil, err
	}
	features := opts.LowerFeatures
	if features == nil {
		features = DefaultLowerFeatures
	}
	if err := ValidateLowerFeatures(features); err != nil {
		return nil, err
	}

	comments := NewCommentFilter(opts.KeepComments)
	return New(
		&ImportInliner{ReadFile: opts.ReadFile},
		preserving(NewNestingStage(), comments),
		preserving(NewLowerStage(features), comments),
		preserving(NewPrefixStage(engines), comments),
		comments,
	), nil
}
