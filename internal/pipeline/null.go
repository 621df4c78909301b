package pipeline

// Null builds pipelines that accept every call and move no media. It
// suits a control plane whose media path is driven out of process.
type Null struct{}

func (Null) Build(Spec) (Pipeline, error) { return nullPipeline{}, nil }

type nullPipeline struct{}

func (nullPipeline) Preroll() error          { return nil }
func (nullPipeline) Play() error             { return nil }
func (nullPipeline) Stop() error             { return nil }
func (nullPipeline) AttachInput(Input) error { return nil }
func (nullPipeline) Apply(Settings) error    { return nil }
