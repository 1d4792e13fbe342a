package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/annlab/data/datasets.db"
	}
	if cfg.Generator.Provider == "" {
		cfg.Generator.Provider = "gemini"
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = "gemini-2.5-flash"
	}
	if cfg.Generator.FallbackSize == 0 {
		cfg.Generator.FallbackSize = 30
	}
	if cfg.Index.Clusters == 0 {
		cfg.Index.Clusters = 5
	}
	if cfg.Index.MaxIterations == 0 {
		cfg.Index.MaxIterations = 20
	}
	if cfg.Index.MaxClusters == 0 {
		cfg.Index.MaxClusters = 100
	}
	// Unset bounds mean the [0,100] square generated datasets live in.
	if cfg.Index.Bounds == (BoundsConfig{}) {
		cfg.Index.Bounds = BoundsConfig{MinX: 0, MaxX: 100, MinY: 0, MaxY: 100}
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 5
	}
	if cfg.Search.NProbes == 0 {
		cfg.Search.NProbes = 2
	}
	if cfg.Search.Mode == "" {
		cfg.Search.Mode = "approx"
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 100
	}
	if cfg.Search.QueryX == 0 && cfg.Search.QueryY == 0 {
		cfg.Search.QueryX = 50
		cfg.Search.QueryY = 50
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 400
	}
}
