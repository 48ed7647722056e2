package config

// PersistenceConfig selects the storage backend for identities and tokens.
// With "file" persistence the service runs without a database, which is
// handy for demos and local development.
type PersistenceConfig struct {
	Type    string `env:"ACCOUNTD_PERSISTENCE" env-default:"postgres"`
	DataDir string `env:"ACCOUNTD_DATA_DIR" env-default:"./data"`
}

// NewPersistenceConfigFromEnv creates a PersistenceConfig from environment variables
func NewPersistenceConfigFromEnv() PersistenceConfig {
	return PersistenceConfig{
		Type:    GetEnvOrDefault("ACCOUNTD_PERSISTENCE", "postgres"),
		DataDir: GetEnvOrDefault("ACCOUNTD_DATA_DIR", "./data"),
	}
}
