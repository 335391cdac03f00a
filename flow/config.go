package flow

// FlowConfig is the config-object authoring style: a host type implements
// Configure to emit the same builder calls a fluent chain would. It
// compiles to identical IR — there is no separate interpreter for
// FlowConfig-authored flows.
type FlowConfig[S any] interface {
	Configure(b *FlowBuilder[S]) *FlowBuilder[S]
}

// BuildConfig constructs a Flow[S] from a FlowConfig by running Configure
// against a fresh builder named name.
func BuildConfig[S any](name string, cfg FlowConfig[S]) (*Flow[S], error) {
	b := cfg.Configure(Create[S](name))
	return b.Build()
}
