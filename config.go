package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	configDirPathEnv     = "PAYMENTCORE_CONFIG_DIR_PATH"
	defaultConfigDirPath = "."
)

// Config is the immutable snapshot every long-lived component is handed at
// startup, per §6's environment variable list.
type Config struct {
	DB Database

	JWTSecret        string `env:"JWT_SECRET"`
	JWTDurationHours int    `env:"JWT_DURATION_HOURS" env-default:"24"`
	AllowedIPs       string `env:"ALLOWED_IPS" env-default:""`

	BTCPayURL            string `env:"BTCPAY_URL" env-default:""`
	BTCPayAPIKey         string `env:"BTCPAY_API_KEY" env-default:""`
	BTCPayDefaultStoreID string `env:"BTCPAY_DEFAULT_STORE_ID" env-default:""`

	MoneroWalletRPC      string `env:"MONERO_WALLET_RPC" env-default:""`
	MoneroWalletUser     string `env:"MONERO_WALLET_USER" env-default:""`
	MoneroWalletPassword string `env:"MONERO_WALLET_PASSWORD" env-default:""`

	TorSocksProxy string `env:"TOR_SOCKS_PROXY" env-default:""`

	// BankAPIKeys is populated outside the cleanenv struct tags, since the
	// set of integrated banks (and therefore the set of <BANK>_API_KEY
	// variables) is not known at compile time (§6).
	BankAPIKeys map[string]string
}

// Database aliases DatabaseConfig to keep the field name short on Config
// without renaming the type defined in database.go.
type Database = DatabaseConfig

// AllowedIPList splits the comma-separated ALLOWED_IPS value.
func (c *Config) AllowedIPList() []string {
	if c.AllowedIPs == "" {
		return nil
	}
	parts := strings.Split(c.AllowedIPs, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// LoadConfig builds configuration from the environment, following the same
// .env-then-cleanenv sequencing the teacher's LoadConfig used.
func LoadConfig(logger Logger) (*Config, error) {
	logger = logger.NewSystem("config")

	configDirPath := os.Getenv(configDirPathEnv)
	if configDirPath == "" {
		configDirPath = defaultConfigDirPath
	}

	configDotEnvPath := filepath.Join(configDirPath, ".env")
	logger.Info("loading .env file", "path", configDotEnvPath)
	if err := godotenv.Load(configDotEnvPath); err != nil {
		logger.Warn(".env file not found")
	}

	var dbConf DatabaseConfig
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		parsed, err := ParseConnectionString(dbURL)
		if err != nil {
			logger.Error("failed to parse DATABASE_URL", "error", err)
			return nil, err
		}
		dbConf = parsed
	} else if err := cleanenv.ReadEnv(&dbConf); err != nil {
		logger.Error("failed to read database env vars", "error", err)
		return nil, err
	}

	cfg := Config{DB: dbConf}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		logger.Error("failed to read env", "error", err)
		return nil, err
	}
	cfg.DB = dbConf

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set; token verification is out of core scope but downstream services will need it")
	}

	cfg.BankAPIKeys = loadBankAPIKeys()

	return &cfg, nil
}

// loadBankAPIKeys scans the process environment for <BANK>_API_KEY
// variables and indexes them by the bank identifier, since the set of
// integrated banks is configured, not compiled in (§6).
func loadBankAPIKeys() map[string]string {
	keys := make(map[string]string)
	for _, kv := range os.Environ() {
		name, value, found := strings.Cut(kv, "=")
		if !found || !strings.HasSuffix(name, "_API_KEY") {
			continue
		}
		if name == "BTCPAY_API_KEY" {
			continue
		}
		bank := strings.TrimSuffix(name, "_API_KEY")
		keys[bank] = value
	}
	return keys
}
