package temporalx

import (
	"time"

	"github.com/yungbote/frontline-backend/internal/platform/envutil"
)

type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	// AutoRegisterNamespace creates the namespace on start; local and self-hosted only.
	AutoRegisterNamespace bool
	RetentionDays         int

	DialTimeout  time.Duration
	DialMaxWait  time.Duration
	StartMaxWait time.Duration
	Concurrency  int
}

func LoadConfig() Config {
	return Config{
		Address:   envutil.String("TEMPORAL_ADDRESS", ""),
		Namespace: envutil.String("TEMPORAL_NAMESPACE", "frontline"),
		TaskQueue: envutil.String("TEMPORAL_TASK_QUEUE", "frontline"),

		ClientCertPath: envutil.String("TEMPORAL_CLIENT_CERT_PATH", ""),
		ClientKeyPath:  envutil.String("TEMPORAL_CLIENT_KEY_PATH", ""),
		ClientCAPath:   envutil.String("TEMPORAL_CLIENT_CA_PATH", ""),

		AutoRegisterNamespace: envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false),
		RetentionDays:         envutil.Int("TEMPORAL_NAMESPACE_RETENTION_DAYS", 7),

		DialTimeout:  envutil.Duration("TEMPORAL_DIAL_TIMEOUT", 5*time.Second),
		DialMaxWait:  envutil.Duration("TEMPORAL_DIAL_MAX_WAIT", time.Minute),
		StartMaxWait: envutil.Duration("TEMPORAL_WORKER_START_MAX_WAIT", time.Minute),
		Concurrency:  envutil.Int("WORKER_CONCURRENCY", 4),
	}
}

// Enabled reports whether a Temporal frontend is configured.
func (c Config) Enabled() bool { return c.Address != "" }
