package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	LogLevel           string // sets the log level (zap log level values)
	LogFormat          string // text vs json
	LogFilter          string // zapfilter rules applied to the logger
	EnableTelemetry    bool   // enable telemetry
	TelemetryEndpoint  string // endpoint for telemetry ("stdout" prints to console)
	NatsURL            string // URL of NATS server (empty disables NATS integration)
	WaitForServices    string // duration to wait for other services to be ready
	RosterFile         string // path to driver roster yaml (empty uses builtin roster)
	ServerAddr         string // listen addr for HTTP server
	LapInterval        string // wall clock duration between two laps in server mode
	Iterations         int    // number of Monte Carlo iterations for reports
	Workers            int    // max number of concurrent projection workers
	NarrationTimeout   string // max time to wait for narration service
	WeatherCacheExpiry string // how long resolved weather conditions are cached
)

// Config holds the configuration values which are used by the application
type Config struct {
	Seed         uint64 // seed for random source; 0 means seed from system entropy
	ReportEvery  int    // generate a strategy report every n laps
	StopOnFailed bool   // halt race when hero tyres fail
}
