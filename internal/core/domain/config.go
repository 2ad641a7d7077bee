package domain

// DefaultRepoURL is the recipe repository used when no configuration file
// exists yet.
const DefaultRepoURL = "https://github.com/ravenpm/raven-recipes.git"

// Config is the persisted user configuration.
type Config struct {
	RepoURL string `toml:"repo_url"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() *Config {
	return &Config{RepoURL: DefaultRepoURL}
}
