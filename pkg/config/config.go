package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	NodeID     int64  `mapstructure:"NODE_ID"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string        `mapstructure:"TYPE"`
		Host           string        `mapstructure:"HOST"`
		Port           string        `mapstructure:"PORT"`
		DBNAME         string        `mapstructure:"DBNAME"`
		User           string        `mapstructure:"USER"`
		Password       string        `mapstructure:"PASSWORD"`
		SSLMode        string        `mapstructure:"SSLMODE"`
		Timezone       string        `mapstructure:"TIMEZONE"`
		SlowThreshold  time.Duration `mapstructure:"SLOW_THRESHOLD"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Auth struct {
		JWTSecret string `mapstructure:"JWT_SECRET"`
		Issuer    string `mapstructure:"ISSUER"`
	} `mapstructure:"AUTH"`
	Otel struct {
		Endpoint    string  `mapstructure:"ENDPOINT"`
		Protocol    string  `mapstructure:"PROTOCOL"`
		Insecure    bool    `mapstructure:"INSECURE"`
		SampleRatio float64 `mapstructure:"SAMPLE_RATIO"`
	} `mapstructure:"OTEL"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Flagsmith struct {
		Addr   string `mapstructure:"ADDR"`
		ApiKey string `mapstructure:"API_KEY"`
	} `mapstructure:"FLAGSMITH"`
	Ledger struct {
		Currency          string        `mapstructure:"CURRENCY"`
		CommissionRate    float64       `mapstructure:"COMMISSION_RATE"`
		ClearancePeriod   time.Duration `mapstructure:"CLEARANCE_PERIOD"`
		ClearanceSchedule string        `mapstructure:"CLEARANCE_SCHEDULE"`
	} `mapstructure:"LEDGER"`
	Payout struct {
		MaxAmount             float64       `mapstructure:"MAX_AMOUNT"`
		AutoApproveThreshold  float64       `mapstructure:"AUTO_APPROVE_THRESHOLD"`
		MinCompletedPayouts   int64         `mapstructure:"MIN_COMPLETED_PAYOUTS"`
		FailedLookback        time.Duration `mapstructure:"FAILED_LOOKBACK"`
		ExactReservation      bool          `mapstructure:"EXACT_RESERVATION"`
		ExactReservationLimit int           `mapstructure:"EXACT_RESERVATION_LIMIT"`
		Queue                 string        `mapstructure:"QUEUE"`
		MaxRetry              int           `mapstructure:"MAX_RETRY"`
		WebhookSecret         string        `mapstructure:"WEBHOOK_SECRET"`
		DisbursementURL       string        `mapstructure:"DISBURSEMENT_URL"`
		DisbursementTimeout   time.Duration `mapstructure:"DISBURSEMENT_TIMEOUT"`
		DisbursementAPIKey    string        `mapstructure:"DISBURSEMENT_API_KEY"`
	} `mapstructure:"PAYOUT"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

var defaults = map[string]any{
	"APP_ENV":     "development",
	"APP_NAME":    "marketplace-ledger",
	"APP_VERSION": "dev",
	"NODE_ID":     1,

	"TLS.ENABLE":    false,
	"TLS.CERT_PATH": "",
	"TLS.KEY_PATH":  "",

	"HTTP_SERVER.ADDR":          "8080",
	"HTTP_SERVER.READ_TIMEOUT":  15 * time.Second,
	"HTTP_SERVER.WRITE_TIMEOUT": 15 * time.Second,
	"HTTP_SERVER.IDLE_TIMEOUT":  60 * time.Second,

	"DATABASE.TYPE":                               "postgres",
	"DATABASE.HOST":                               "127.0.0.1",
	"DATABASE.PORT":                               "5432",
	"DATABASE.DBNAME":                             "marketplace",
	"DATABASE.USER":                               "postgres",
	"DATABASE.PASSWORD":                           "",
	"DATABASE.SSLMODE":                            "disable",
	"DATABASE.TIMEZONE":                           "UTC",
	"DATABASE.SLOW_THRESHOLD":                     200 * time.Millisecond,
	"DATABASE.CONNECTION_POOL.MAX_IDLE_CONN":      10,
	"DATABASE.CONNECTION_POOL.MAX_OPEN_CONNS":     50,
	"DATABASE.CONNECTION_POOL.CONN_MAX_LIFETIME":  time.Hour,
	"DATABASE.CONNECTION_POOL.CONN_MAX_IDLE_TIME": 10 * time.Minute,

	"REDIS.ADDR":         "127.0.0.1:6379",
	"REDIS.PASSWORD":     "",
	"REDIS.DB":           0,
	"REDIS.POOL_SIZE":    10,
	"REDIS.POOL_TIMEOUT": 5 * time.Second,

	"AUTH.JWT_SECRET": "",
	"AUTH.ISSUER":     "",

	"OTEL.ENDPOINT":     "",
	"OTEL.PROTOCOL":     "http",
	"OTEL.INSECURE":     true,
	"OTEL.SAMPLE_RATIO": 1.0,

	"PYROSCOPE.ADDR": "",

	"FLAGSMITH.ADDR":    "",
	"FLAGSMITH.API_KEY": "",

	"LEDGER.CURRENCY":           "NGN",
	"LEDGER.COMMISSION_RATE":    0.15,
	"LEDGER.CLEARANCE_PERIOD":   72 * time.Hour,
	"LEDGER.CLEARANCE_SCHEDULE": "*/15 * * * *",

	"PAYOUT.MAX_AMOUNT":              5_000_000,
	"PAYOUT.AUTO_APPROVE_THRESHOLD":  50_000,
	"PAYOUT.MIN_COMPLETED_PAYOUTS":   3,
	"PAYOUT.FAILED_LOOKBACK":         30 * 24 * time.Hour,
	"PAYOUT.EXACT_RESERVATION":       false,
	"PAYOUT.EXACT_RESERVATION_LIMIT": 64,
	"PAYOUT.QUEUE":                   "payouts",
	"PAYOUT.MAX_RETRY":               5,
	"PAYOUT.WEBHOOK_SECRET":          "",
	"PAYOUT.DISBURSEMENT_URL":        "",
	"PAYOUT.DISBURSEMENT_TIMEOUT":    20 * time.Second,
	"PAYOUT.DISBURSEMENT_API_KEY":    "",
}

// LoadConfig reads config.yaml when present and lets the environment
// override any key, e.g. PAYOUT_MAX_AMOUNT or DATABASE_HOST.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		zap.L().Debug("no .env file loaded", zap.Error(err))
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.TLS.Enable && (cfg.TLS.CertPath == "" || cfg.TLS.KeyPath == "") {
		return nil, fmt.Errorf("tls enabled but TLS_CERT_PATH or TLS_KEY_PATH not provided")
	}

	switch cfg.Otel.Protocol {
	case "http", "grpc":
	default:
		return nil, fmt.Errorf("unsupported OTEL_PROTOCOL %q", cfg.Otel.Protocol)
	}

	return &cfg, nil
}
