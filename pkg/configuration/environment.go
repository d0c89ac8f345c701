package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/axiestudio/chatwidget/pkg/logging"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"chatwidget"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

// UpstreamOptions controls outbound calls to tenant-configured
// conversational APIs.
type UpstreamOptions struct {
	// Timeout is the per-invocation deadline. Each call is attempted once.
	Timeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s"`
	// MaxInflight caps simultaneous in-flight upstream calls across all
	// tenants. Zero disables the cap.
	MaxInflight int `env:"UPSTREAM_MAX_INFLIGHT" envDefault:"64"`
	// MaxResponseBytes bounds how much of an upstream response body is read.
	MaxResponseBytes int64 `env:"UPSTREAM_MAX_RESPONSE_BYTES" envDefault:"1048576"`
}

func (u *UpstreamOptions) Validate() error {
	if u.Timeout <= 0 {
		return fmt.Errorf("upstream Timeout must be positive, got %s", u.Timeout)
	}
	if u.MaxInflight < 0 {
		return fmt.Errorf("upstream MaxInflight must be non-negative, got %d", u.MaxInflight)
	}
	if u.MaxResponseBytes <= 0 {
		return fmt.Errorf("upstream MaxResponseBytes must be positive, got %d", u.MaxResponseBytes)
	}
	return nil
}

type ReplyCacheOptions struct {
	Enabled bool          `env:"REPLY_CACHE_ENABLED" envDefault:"false"`
	Prefix  string        `env:"REPLY_CACHE_PREFIX" envDefault:"chatwidget:replies"`
	TTL     time.Duration `env:"REPLY_CACHE_TTL" envDefault:"10m"`
}

type RateLimitOptions struct {
	Enabled   bool  `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	PerMinute int64 `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
}

func (r *RateLimitOptions) Validate() error {
	if r.PerMinute < 0 {
		return fmt.Errorf("rate limit PerMinute must be non-negative, got %d", r.PerMinute)
	}
	return nil
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type Configuration struct {
	Database   DatabaseOptions
	Upstream   UpstreamOptions
	ReplyCache ReplyCacheOptions
	RateLimit  RateLimitOptions
	Prometheus PrometheusOptions

	RedisURL         string        `env:"REDIS_URL" envDefault:"localhost:6379"`
	ServerPort       int           `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string        `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string        `env:"-"`
	Domain           string        `env:"DOMAIN" envDefault:"localhost"`
	AllowedOrigins   []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string        `env:"LOG_PATH" envDefault:"./logs/app.log"`
	// The server looks for this header in the request; if absent, it
	// generates a random uuidv4.
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	RealIPHeader    string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func (c *Configuration) Scheme() string {
	if c.GoAppEnvironment == Production { // assume 'https' on production mode
		return "https"
	}
	return "http"
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.Upstream.Validate(); err != nil {
		return fmt.Errorf("upstream configuration error: %w", err)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit configuration error: %w", err)
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}

	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
