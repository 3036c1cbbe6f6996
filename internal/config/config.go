package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the full configuration for the console and the simulator.
type Config struct {
	Backend BackendConfig
	Agent   AgentConfig
	Session SessionConfig
	Sim     SimConfig
	Redis   RedisConfig
	Logging LoggingConfig
}

// BackendConfig configures the clearance backend API client.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// AgentConfig configures the local signing agent connection.
type AgentConfig struct {
	Addr         string
	SignTimeout  time.Duration
	ProbeTimeout time.Duration
	Culture      string
}

// SessionConfig configures document session defaults.
type SessionConfig struct {
	Role     string
	Kind     string
	PageSize int
}

// SimConfig configures the backend simulator.
type SimConfig struct {
	Host      string
	Port      string
	AgentPort string
	AgentMode string
	// PollsBeforeResolve is how many clearance checks a submitted document
	// stays pending before the simulator resolves it.
	PollsBeforeResolve int
}

// RedisConfig configures the simulator document store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Embedded bool
}

// LoggingConfig configures logging output.
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	config := &Config{
		Backend: BackendConfig{
			BaseURL: getEnv("DGI_BACKEND_URL", "http://localhost:8081"),
			Timeout: getEnvAsDuration("DGI_BACKEND_TIMEOUT", 15*time.Second),
		},
		Agent: AgentConfig{
			Addr:         getEnv("DGI_AGENT_ADDR", "127.0.0.1:9341"),
			SignTimeout:  getEnvAsDuration("DGI_AGENT_SIGN_TIMEOUT", 30*time.Second),
			ProbeTimeout: getEnvAsDuration("DGI_AGENT_PROBE_TIMEOUT", 3*time.Second),
			Culture:      getEnv("DGI_AGENT_CULTURE", "fr-MA"),
		},
		Session: SessionConfig{
			Role:     getEnv("DGI_ROLE", "clerk"),
			Kind:     getEnv("DGI_KIND", "invoice"),
			PageSize: getEnvAsInt("DGI_PAGE_SIZE", 20),
		},
		Sim: SimConfig{
			Host:               getEnv("SIM_HOST", "0.0.0.0"),
			Port:               getEnv("SIM_PORT", "8081"),
			AgentPort:          getEnv("SIM_AGENT_PORT", "9341"),
			AgentMode:          getEnv("SIM_AGENT_MODE", "ok"),
			PollsBeforeResolve: getEnvAsInt("SIM_POLLS_BEFORE_RESOLVE", 2),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Embedded: getEnvAsBool("REDIS_EMBEDDED", true),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	return config, nil
}

// SimAddr returns the listen address of the simulator API.
func (c *Config) SimAddr() string {
	return c.Sim.Host + ":" + c.Sim.Port
}

// SimAgentAddr returns the listen address of the simulated signing agent.
func (c *Config) SimAgentAddr() string {
	return c.Sim.Host + ":" + c.Sim.AgentPort
}

// getEnv reads an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as an integer.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool reads an environment variable as a boolean.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration reads an environment variable as a duration.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
