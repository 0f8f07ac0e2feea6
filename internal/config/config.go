package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "pgmonolayer.yaml"

// DefaultMigrationsFolder is used when migrations_folder is empty. It is
// relative to the config file like every other path.
const DefaultMigrationsFolder = "migrations"

// DefaultSeedFile is the SQL script run by db seed when seed_file is empty.
const DefaultSeedFile = "seed.sql"

// MaintenanceDatabase is connected to when creating or dropping the
// configured database.
const MaintenanceDatabase = "postgres"

// Config represents the top-level YAML configuration.
type Config struct {
	Connection       Connection      `yaml:"connection"`
	EnvFile          string          `yaml:"env_file"`
	Schemas          []string        `yaml:"schemas"`
	MigrationsFolder string          `yaml:"migrations_folder"`
	SeedFile         string          `yaml:"seed_file"`
	CamelCase        bool            `yaml:"camel_case"`
	TypeAlignments   []TypeAlignment `yaml:"type_alignments"`
	Log              Log             `yaml:"log"`
	Tables           Tables          `yaml:"tables"`
}

// Connection holds database connection parameters.
type Connection struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// TypeAlignment declares that changing a column from one type to another
// does not rewrite the table.
type TypeAlignment struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Log configures the process logger.
type Log struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Tables names the bookkeeping tables used by the migrator.
type Tables struct {
	Schema string `yaml:"schema"`
	Log    string `yaml:"log"`
	Lock   string `yaml:"lock"`
}

// DSN builds a PostgreSQL connection URL for the configured database.
func (c *Connection) DSN() string {
	return c.DSNFor(c.Database)
}

// DSNFor builds a connection URL for another database on the same server.
// User and password are escaped, so they may contain any character.
func (c *Connection) DSNFor(database string) string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	return u.String()
}

// Load reads and parses a YAML config file. Relative schema paths, the
// migrations folder and the env file are resolved against the config file's
// directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.resolvePaths(filepath.Dir(path))

	if err := cfg.loadEnvFile(); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) resolvePaths(dir string) {
	if c.MigrationsFolder == "" {
		c.MigrationsFolder = DefaultMigrationsFolder
	}
	if c.SeedFile == "" {
		c.SeedFile = DefaultSeedFile
	}
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i, s := range c.Schemas {
		c.Schemas[i] = resolve(s)
	}
	c.MigrationsFolder = resolve(c.MigrationsFolder)
	c.SeedFile = resolve(c.SeedFile)
	c.EnvFile = resolve(c.EnvFile)
}

// loadEnvFile loads env_file into the process environment. A missing file is
// only an error when it was configured explicitly.
func (c *Config) loadEnvFile() error {
	if c.EnvFile == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(c.EnvFile); err != nil {
		return fmt.Errorf("loading env file %s: %w", c.EnvFile, err)
	}
	return nil
}

// applyEnv fills in empty Connection fields from environment variables.
// YAML values take precedence; env vars are used only as fallback.
func (c *Config) applyEnv() {
	conn := &c.Connection
	if conn.Host == "" {
		conn.Host = envOr("PGHOST", "POSTGRES_HOST")
	}
	if conn.Port == 0 {
		if s := envOr("PGPORT", "POSTGRES_PORT"); s != "" {
			if p, err := strconv.Atoi(s); err == nil {
				conn.Port = p
			}
		}
	}
	if conn.Database == "" {
		conn.Database = envOr("PGDATABASE", "POSTGRES_DB")
	}
	if conn.User == "" {
		conn.User = envOr("PGUSER", "POSTGRES_USER")
	}
	if conn.Password == "" {
		conn.Password = envOr("PGPASSWORD", "POSTGRES_PASSWORD")
	}
	if conn.SSLMode == "" {
		conn.SSLMode = envOr("PGSSLMODE")
	}
	if c.Log.Level == "" {
		c.Log.Level = envOr("MONOLAYER_LOG_LEVEL")
	}
}

// envOr returns the first non-empty value from the given env var names.
func envOr(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// validate checks required fields and fills in defaults.
func (c *Config) validate() error {
	if c.Connection.Host == "" {
		return fmt.Errorf("connection.host is required")
	}
	if c.Connection.Port == 0 {
		c.Connection.Port = 5432
	}
	if c.Connection.Database == "" {
		return fmt.Errorf("connection.database is required")
	}
	if c.Connection.User == "" {
		return fmt.Errorf("connection.user is required")
	}
	if c.Connection.SSLMode == "" {
		c.Connection.SSLMode = "disable"
	}
	if len(c.Schemas) == 0 {
		return fmt.Errorf("at least one schema definition file must be listed in schemas")
	}
	for i, a := range c.TypeAlignments {
		if a.From == "" || a.To == "" {
			return fmt.Errorf("type_alignments[%d]: from and to are required", i)
		}
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Tables.Schema == "" {
		c.Tables.Schema = "public"
	}
	if c.Tables.Log == "" {
		c.Tables.Log = "monolayer_migration"
	}
	if c.Tables.Lock == "" {
		c.Tables.Lock = "monolayer_migration_lock"
	}
	return nil
}
