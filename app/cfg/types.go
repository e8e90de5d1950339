package cfg

type Cfg struct {
	// Storage configuration
	DBPath          string
	SearchIndexPath string

	// Application configuration
	TenantsDir        string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
