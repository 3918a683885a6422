package core

// ConfigValues is the set of compile & link flags a config (or a target's own
// config-like fields) can contribute.
type ConfigValues struct {
	Cflags      []string
	CflagsC     []string
	CflagsCC    []string
	Defines     []string
	IncludeDirs []string
	Ldflags     []string
	Libs        []string
	LibDirs     []string
	Frameworks  []string
}

// IsEmpty returns true if no field is set.
func (v *ConfigValues) IsEmpty() bool {
	return len(v.Cflags) == 0 && len(v.CflagsC) == 0 && len(v.CflagsCC) == 0 &&
		len(v.Defines) == 0 && len(v.IncludeDirs) == 0 && len(v.Ldflags) == 0 &&
		len(v.Libs) == 0 && len(v.LibDirs) == 0 && len(v.Frameworks) == 0
}

// A Config is a named bundle of flags declared with config("name") { ... }.
// Targets list configs by label; the resolver replaces those references with
// pointers to these records.
type Config struct {
	Label *Label
	// Where the config was declared, for error reporting.
	Loc Location
	// The flag values this config contributes to targets that list it.
	Values ConfigValues
	// Labels of configs this one includes, in order.
	Configs []*Label
	// Filled in by the resolver.
	resolvedConfigs []*Config
}

// SubConfigs returns the resolved configs that this one includes.
func (c *Config) SubConfigs() []*Config {
	return c.resolvedConfigs
}
