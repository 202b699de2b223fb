package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// EnvPrefix prefixes every environment variable, e.g. CHATQL_DATABASE_DSN.
const EnvPrefix = "CHATQL"

const defaultDatabaseName = "chat"

var defineFlagsOnce sync.Once

// Load loads configuration from multiple sources with the following precedence:
// 1. Explicit overrides (v.Set) – used only for secret files and the password prompt
// 2. Command line flags
// 3. Environment variables
// 4. Config file
// 5. Default values
func Load() (*Config, error) {
	defineFlags()
	if !pflag.Parsed() {
		pflag.Parse()
	}
	cfgPath, _ := pflag.CommandLine.GetString("config")

	v := viper.New()
	setDefaults(v)
	if err := readConfigFile(v, cfgPath); err != nil {
		return nil, err
	}
	bindEnv(v)
	bindChangedFlagsToViper(v)

	return resolve(v)
}

func readConfigFile(v *viper.Viper, cfgPath string) error {
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("chat-graphql")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/chat-graphql/")
		v.AddConfigPath("$HOME/.chat-graphql")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// bindEnv maps canonical dot + snake_case keys to env vars:
// database.pool.max_open -> CHATQL_DATABASE_POOL_MAX_OPEN.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// resolve reads secret files, prompts when asked to, and decodes the merged
// settings into a Config. Unknown keys are rejected.
func resolve(v *viper.Viper) (*Config, error) {
	if err := validateSingleStdinFileSource(v); err != nil {
		return nil, err
	}

	if v.GetString("database.dsn") == "" && v.GetString("database.dsn_file") != "" {
		dsn, err := readSecretFile(v.GetString("database.dsn_file"))
		if err != nil {
			return nil, fmt.Errorf("failed to read database DSN file: %w", err)
		}
		v.Set("database.dsn", dsn)
	}

	if v.GetString("database.password") == "" && v.GetString("database.password_file") != "" {
		pwd, err := readSecretFile(v.GetString("database.password_file"))
		if err != nil {
			return nil, fmt.Errorf("failed to read database password file: %w", err)
		}
		v.Set("database.password", pwd)
	}
	if v.GetString("database.password") == "" && v.GetBool("database.password_prompt") {
		pwd, err := promptPassword()
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		v.Set("database.password", pwd)
	}

	if v.GetString("auth.hs256_secret") == "" && v.GetString("auth.hs256_secret_file") != "" {
		secretPath := v.GetString("auth.hs256_secret_file")
		secret, err := readSecretFile(secretPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read hs256 secret file: %w", err)
		}
		if secret == "" {
			return nil, fmt.Errorf("hs256 secret file %q is empty", secretPath)
		}
		v.Set("auth.hs256_secret", secret)
	}

	var cfg Config
	if err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		),
	); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// bindChangedFlagsToViper copies only explicitly-set flags into Viper,
// preserving precedence: flags > env > file > defaults.
func bindChangedFlagsToViper(v *viper.Viper) {
	pflag.CommandLine.Visit(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "version" {
			return
		}

		switch f.Value.Type() {
		case "string":
			val, _ := pflag.CommandLine.GetString(f.Name)
			v.Set(f.Name, val)
		case "int":
			val, _ := pflag.CommandLine.GetInt(f.Name)
			v.Set(f.Name, val)
		case "bool":
			val, _ := pflag.CommandLine.GetBool(f.Name)
			v.Set(f.Name, val)
		case "float64":
			val, _ := pflag.CommandLine.GetFloat64(f.Name)
			v.Set(f.Name, val)
		case "duration":
			val, _ := pflag.CommandLine.GetDuration(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

// setting is one configuration key with its default and, when usage is
// non-empty, a command line flag of the same name.
type setting struct {
	key   string
	def   interface{}
	usage string
}

var settings = []setting{
	{"database.driver", DriverSQLite, "Database driver (mysql, sqlite3)"},
	{"database.dsn", "", "Complete driver DSN"},
	{"database.dsn_file", "", "Path to file containing database DSN (use @- for stdin)"},
	{"database.host", "localhost", "MySQL host"},
	{"database.port", 3306, "MySQL port"},
	{"database.user", "chat_graphql", "MySQL user"},
	{"database.password", "", "MySQL password"},
	{"database.password_file", "", "Path to file containing the MySQL password (use @- for stdin)"},
	{"database.password_prompt", false, "Prompt for the MySQL password on the terminal"},
	{"database.database", defaultDatabaseName, "MySQL schema, or SQLite file when no DSN is set"},
	{"database.tls.mode", "", "MySQL TLS mode (off, skip-verify, verify-ca, verify-full)"},
	{"database.tls.ca_file", "", "CA certificate for server verification"},
	{"database.tls.cert_file", "", "Client certificate for mTLS"},
	{"database.tls.key_file", "", "Client private key for mTLS"},
	{"database.tls.server_name", "", "Override TLS server name for verification"},
	{"database.pool.max_open", 25, "Maximum open database connections"},
	{"database.pool.max_idle", 5, "Maximum idle connections in pool"},
	{"database.pool.max_lifetime", 5 * time.Minute, "Connection max lifetime"},
	{"database.migrate", true, "Create missing tables at startup"},
	{"database.seed", false, "Load demo users and chats into an empty database"},
	{"database.connection_timeout", 60 * time.Second, "Max time to wait for the database on startup (0 = single attempt)"},
	{"database.connection_retry_interval", 2 * time.Second, "Initial interval between connection retries"},

	{"server.port", 8080, "HTTP server port"},
	{"server.graphiql_enabled", false, "Serve GraphiQL on GET /graphql"},
	{"server.strict_sort", false, "Reject unknown sort fields instead of ignoring them"},
	{"server.read_timeout", 15 * time.Second, "HTTP read timeout"},
	{"server.write_timeout", 15 * time.Second, "HTTP write timeout"},
	{"server.idle_timeout", 60 * time.Second, "HTTP idle timeout"},
	{"server.shutdown_timeout", 30 * time.Second, "Graceful shutdown timeout"},
	{"server.health_check_timeout", 2 * time.Second, "Database ping timeout for /health"},
	{"server.tls_mode", "off", "HTTPS mode (off, file)"},
	{"server.tls_cert_file", "", "PEM certificate for file mode"},
	{"server.tls_key_file", "", "PEM private key for file mode"},

	{"auth.mode", AuthModeHS256, "Authentication mode (none, hs256, oidc)"},
	{"auth.hs256_secret", "", "Shared secret for HS256 tokens"},
	{"auth.hs256_secret_file", "", "Path to file containing the HS256 secret (use @- for stdin)"},
	{"auth.issuer", "", "Token issuer (OIDC discovery URL in oidc mode)"},
	{"auth.audience", "", "Expected token audience"},
	{"auth.clock_skew", 2 * time.Minute, "Allowed token clock skew"},
	{"auth.user_id_claim", "user_id", "Claim holding the numeric user id"},
	{"auth.admin_claim", "admin", "Boolean claim granting admin visibility"},

	{"observability.service_name", "chat-graphql", "Service name reported to telemetry backends"},
	{"observability.service_version", "", "Service version reported to telemetry backends"},
	{"observability.environment", "development", "Deployment environment name"},
	{"observability.metrics_enabled", true, "Expose Prometheus metrics on /metrics"},
	{"observability.tracing_enabled", false, "Export traces over OTLP"},
	{"observability.trace_sample_ratio", 1.0, "Trace sampling ratio from 0.0 to 1.0"},
	// Applied only when tracing is on.
	{"observability.sqlcommenter_enabled", true, "Inject trace context into SQL comments"},
	{"observability.logging.level", "info", "Log level (debug, info, warn, error)"},
	{"observability.logging.format", "json", "Log format (json, text)"},
	{"observability.logging.exports_enabled", false, "Export logs over OTLP"},
	{"observability.otlp.endpoint", "localhost:4317", "OTLP endpoint for all signals"},
	{"observability.otlp.protocol", "grpc", "OTLP protocol (grpc, http/protobuf)"},
	{"observability.otlp.insecure", false, "Disable TLS for OTLP"},
	{"observability.otlp.tls_cert_file", "", "CA certificate for the OTLP collector"},
	{"observability.otlp.tls_client_cert_file", "", "Client certificate for OTLP mTLS"},
	{"observability.otlp.tls_client_key_file", "", "Client key for OTLP mTLS"},
	{"observability.otlp.timeout", 10 * time.Second, "OTLP export timeout"},
	{"observability.otlp.compression", "gzip", "OTLP compression (none, gzip)"},
	{"observability.otlp.retry_enabled", true, "Retry transient OTLP export failures"},

	{"naming.plural_overrides", map[string]string{}, ""},
}

// signalFlags are per-signal OTLP overrides. They have no defaults so that an
// unset override falls back to the shared observability.otlp settings.
var signalFlags = []setting{
	{"observability.traces.endpoint", "", "OTLP endpoint for traces only"},
	{"observability.traces.protocol", "", "OTLP protocol for traces"},
	{"observability.traces.insecure", false, "Disable TLS for trace export"},
	{"observability.logs.endpoint", "", "OTLP endpoint for logs only"},
	{"observability.logs.protocol", "", "OTLP protocol for logs"},
	{"observability.logs.insecure", false, "Disable TLS for log export"},
}

// defineFlags registers a flag for every setting with a usage string.
func defineFlags() {
	defineFlagsOnce.Do(func() {
		for _, s := range append(append([]setting{}, settings...), signalFlags...) {
			if s.usage == "" {
				continue
			}
			switch def := s.def.(type) {
			case string:
				pflag.String(s.key, def, s.usage)
			case int:
				pflag.Int(s.key, def, s.usage)
			case bool:
				pflag.Bool(s.key, def, s.usage)
			case float64:
				pflag.Float64(s.key, def, s.usage)
			case time.Duration:
				pflag.Duration(s.key, def, s.usage)
			}
		}
		pflag.StringP("config", "c", "", "Config file path")
	})
}

// setDefaults sets default values (lowest precedence).
func setDefaults(v *viper.Viper) {
	for _, s := range settings {
		v.SetDefault(s.key, s.def)
	}
}

// promptPassword prompts the user for a password without echoing to terminal.
func promptPassword() (string, error) {
	fmt.Print("Enter database password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(bytePassword), nil
}

func readSecretFile(path string) (string, error) {
	var data []byte
	var err error

	if path == "@-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func validateSingleStdinFileSource(v *viper.Viper) error {
	stdinBackedKeys := []string{
		"database.dsn_file",
		"database.password_file",
		"auth.hs256_secret_file",
	}

	var configured []string
	for _, key := range stdinBackedKeys {
		if strings.TrimSpace(v.GetString(key)) == "@-" {
			configured = append(configured, key)
		}
	}

	if len(configured) > 1 {
		return fmt.Errorf(
			"multiple stdin-backed file settings use @- (%s); only one @- source is allowed",
			strings.Join(configured, ", "),
		)
	}
	return nil
}
