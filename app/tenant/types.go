package tenant

// Config holds the per-tenant settings each unit of work runs against.
// Tasks receive it as an explicit parameter rather than reading process-wide
// state, so one worker can serve many tenants concurrently.
type Config struct {
	ID       string         // Derived from filename (without .yml extension)
	Name     string         `yaml:"name"`
	Settings ConfigSettings `yaml:"settings"`
}

type ConfigSettings struct {
	EnforceTiers       bool `yaml:"enforce_tiers"`
	VideoLimit         int  `yaml:"video_limit"`
	ForceLowercaseTags bool `yaml:"force_lowercase_tags"`
	RefreshInterval    int  `yaml:"refresh_interval"` // seconds
	Timeout            int  `yaml:"timeout"`          // seconds
}
