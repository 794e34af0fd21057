package global

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the whole process configuration, loaded once from the
// environment at startup.
type Config struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`

	MongoURI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"chatlink"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// browser origins allowed to call us; empty disables the check
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`

	// gateway tuning
	NodeID        int64         `envconfig:"NODE_ID" default:"1"`
	SendQueueSize int           `envconfig:"SEND_QUEUE_SIZE" default:"256"`
	FanoutWorkers int           `envconfig:"FANOUT_WORKERS" default:"8"`
	FanoutQueue   int           `envconfig:"FANOUT_QUEUE" default:"4096"`
	MaxMessageLen int           `envconfig:"MAX_MESSAGE_LEN" default:"2000"`
	TypingTTL     time.Duration `envconfig:"TYPING_TTL" default:"3s"`
	WriteDeadline time.Duration `envconfig:"WRITE_DEADLINE" default:"5s"`
	PresenceTTL   time.Duration `envconfig:"PRESENCE_TTL" default:"2m"`
	HistoryLimit  int           `envconfig:"HISTORY_LIMIT" default:"30"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) JWTSecretBytes() []byte { return []byte(c.JWTSecret) }
