package config

import "flag"

// Flags are the command-line overrides shared by the patrol commands. A flag
// only overrides the file when it is given explicitly.
type Flags struct {
	ConfigPath     *string
	Backend        *string
	BackendURL     *string
	GridSize       *int
	RangerCount    *int
	MaxSteps       *int
	AnimationDelay *string
	Seed           *int64
	Listen         *string
	RequestTimeout *string
	DevListen      *string
	DevDBPath      *string
}

// RegisterFlags defines the override flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		ConfigPath:     fs.String("config", "", "Path to a JSON config file (optional)"),
		Backend:        fs.String("backend", DefaultBackend, "Backend layout: rest or mode"),
		BackendURL:     fs.String("backend-url", DefaultBackendURL, "REST base URL, or the single endpoint URL for -backend=mode"),
		GridSize:       fs.Int("grid-size", DefaultGridSize, "Side length of generated maps"),
		RangerCount:    fs.Int("rangers", DefaultRangerCount, "Number of rangers per run"),
		MaxSteps:       fs.Int("max-steps", DefaultMaxSteps, "Maximum steps per ranger"),
		AnimationDelay: fs.String("delay", DefaultAnimationDelay.String(), "Delay between animation steps"),
		Seed:           fs.Int64("seed", 0, "Map generator seed (default: time based)"),
		Listen:         fs.String("listen", DefaultListen, "HTTP listen address"),
		RequestTimeout: fs.String("timeout", DefaultRequestTimeout.String(), "Backend request timeout"),
		DevListen:      fs.String("dev-listen", DefaultDevListen, "Development backend listen address"),
		DevDBPath:      fs.String("db", DefaultDevDBPath, "Development backend SQLite database"),
	}
}

// Load reads the config file named by -config (if any), applies the flags
// that were set on fs and validates the result. fs must already be parsed.
func (f *Flags) Load(fs *flag.FlagSet) (*PatrolConfig, error) {
	cfg := EmptyConfig()
	if *f.ConfigPath != "" {
		var err error
		if cfg, err = LoadConfig(*f.ConfigPath); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "backend":
			cfg.Backend = f.Backend
		case "backend-url":
			cfg.BackendURL = f.BackendURL
		case "grid-size":
			cfg.GridSize = f.GridSize
		case "rangers":
			cfg.RangerCount = f.RangerCount
		case "max-steps":
			cfg.MaxSteps = f.MaxSteps
		case "delay":
			cfg.AnimationDelay = f.AnimationDelay
		case "seed":
			cfg.Seed = f.Seed
		case "listen":
			cfg.Listen = f.Listen
		case "timeout":
			cfg.RequestTimeout = f.RequestTimeout
		case "dev-listen":
			cfg.DevListen = f.DevListen
		case "db":
			cfg.DevDBPath = f.DevDBPath
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
