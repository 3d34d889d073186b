package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
)

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		panic(err)
	}
	return c
})

// LoadEnv loads the env files that exist in the working directory. When none
// exist there, the directory holding the nearest go.mod is tried instead.
func LoadEnv(envFiles []string) (int, error) {
	existingFiles := existing(envFiles, "")
	if len(existingFiles) == 0 {
		if root := findModuleRoot(); root != "" {
			existingFiles = existing(envFiles, root)
		}
	}
	if len(existingFiles) == 0 {
		return 0, nil
	}
	return len(existingFiles), godotenv.Load(existingFiles...)
}

func existing(envFiles []string, dir string) []string {
	out := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		path := file
		if dir != "" {
			path = filepath.Join(dir, file)
		}
		if fs.FileExists(path) {
			out = append(out, path)
		}
	}
	return out
}

func findModuleRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"orgflow"`
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

// ForestOptions controls how org forests are built and cached.
type ForestOptions struct {
	MaxPasses      int           `env:"FOREST_MAX_PASSES" envDefault:"64" validate:"gte=1,lte=100000"`
	CacheTTL       time.Duration `env:"FOREST_CACHE_TTL" envDefault:"5m" validate:"gte=0"`
	CacheBackend   string        `env:"FOREST_CACHE_BACKEND" envDefault:"memory" validate:"oneof=memory redis"`
	SnapshotPrefix string        `env:"FOREST_SNAPSHOT_PREFIX" envDefault:"orgflow:forest:v1" validate:"required"`
	MaxRecords     int           `env:"FOREST_MAX_RECORDS" envDefault:"2000000" validate:"gte=0"`
	Dataset        string        `env:"FOREST_DATASET" envDefault:"default" validate:"required"`
}

// Validate checks the forest configuration for errors
func (f *ForestOptions) Validate() error {
	f.CacheBackend = strings.ToLower(strings.TrimSpace(f.CacheBackend))
	if err := validator.New().Struct(f); err != nil {
		return fmt.Errorf("forest configuration error: %w", err)
	}
	return nil
}

type Configuration struct {
	Database DatabaseOptions
	Forest   ForestOptions

	RedisURL string `env:"REDIS_URL" envDefault:"localhost:6379"`
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
	return c.parse()
}

func (c *Configuration) parse() error {
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.Forest.Validate(); err != nil {
		return err
	}
	if c.Forest.CacheBackend == "redis" && strings.TrimSpace(c.RedisURL) == "" {
		return fmt.Errorf("REDIS_URL is required when FOREST_CACHE_BACKEND is 'redis'")
	}
	c.Database.Opts = c.Database.ConnectionString()
	return nil
}
