package database

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/adswadi/agency-site-backend/config"
	"github.com/adswadi/agency-site-backend/models"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

// Supported DB_TYPE values.
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
	TypeMemory   = "memory"
)

// ResolveType picks the backend from DB_TYPE, falling back to the DATABASE_URL scheme, then sqlite.
func ResolveType(c map[string]string) string {
	switch t := strings.ToLower(config.GetString(c, "DB_TYPE", "")); t {
	case "supa", "supabase", "postgresql":
		return TypePostgres
	case "":
	default:
		return t
	}

	dsn := strings.ToLower(config.GetString(c, "DATABASE_URL", ""))
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return TypePostgres
	case strings.HasPrefix(dsn, "mysql://"):
		return TypeMySQL
	}
	return TypeSQLite
}

// Dialector builds the gorm dialector for the configured SQL backend.
func Dialector(c map[string]string) (gorm.Dialector, error) {
	switch kind := ResolveType(c); kind {
	case TypeSQLite:
		return sqlite.Open(SQLiteDSN(config.GetString(c, "DB_PATH", "database.sqlite"))), nil
	case TypePostgres:
		return postgres.New(postgres.Config{
			DSN:                  postgresDSN(c),
			PreferSimpleProtocol: true,
		}), nil
	case TypeMySQL:
		dsn, err := MySQLDSN(config.GetString(c, "DATABASE_URL", ""))
		if err != nil {
			return nil, err
		}
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q", kind)
	}
}

// SQLiteDSN enables foreign keys and a busy timeout on a sqlite file path.
func SQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func postgresDSN(c map[string]string) string {
	if dsn := config.GetString(c, "DATABASE_URL", ""); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		config.GetString(c, "SUPABASE_DB_HOST", "localhost"),
		config.GetString(c, "SUPABASE_DB_USER", "postgres"),
		config.GetString(c, "SUPABASE_DB_PASSWORD", ""),
		config.GetString(c, "SUPABASE_DB_NAME", "postgres"),
		config.GetString(c, "SUPABASE_DB_PORT", "5432"),
		config.GetString(c, "DB_SSLMODE", "require"),
	)
}

// MySQLDSN converts a mysql:// URL into a go-sql-driver DSN. Plain DSNs pass through.
func MySQLDSN(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("DATABASE_URL is required for mysql")
	}
	if !strings.HasPrefix(strings.ToLower(raw), "mysql://") {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse mysql url: %w", err)
	}
	auth := u.User.Username()
	if pass, ok := u.User.Password(); ok {
		auth += ":" + pass
	}
	host := u.Host
	if u.Port() == "" {
		host += ":3306"
	}
	q := u.Query()
	q.Set("parseTime", "true")
	if q.Get("charset") == "" {
		q.Set("charset", "utf8mb4")
	}
	if q.Get("loc") == "" {
		q.Set("loc", "UTC")
	}
	return fmt.Sprintf("%s@tcp(%s)/%s?%s", auth, host, strings.TrimPrefix(u.Path, "/"), q.Encode()), nil
}

// Open connects to the configured SQL backend, registers an optional read
// replica and verifies the connection.
func Open(c map[string]string) (*gorm.DB, error) {
	dialector, err := Dialector(c)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		PrepareStmt:    false,
		TranslateError: true,
		Logger:         NewGormLogger(log.Logger, logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if replica := config.GetString(c, "DB_REPLICA_DSN", ""); replica != "" {
		replicaCfg := map[string]string{"DB_TYPE": ResolveType(c), "DATABASE_URL": replica, "DB_PATH": replica}
		replicaDialector, err := Dialector(replicaCfg)
		if err != nil {
			return nil, fmt.Errorf("replica dialector: %w", err)
		}
		if err := db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: []gorm.Dialector{replicaDialector},
			Policy:   dbresolver.RandomPolicy{},
		})); err != nil {
			return nil, fmt.Errorf("register read replica: %w", err)
		}
	}

	if err := Ping(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Ping runs a trivial query against the primary.
func Ping(db *gorm.DB) error {
	var result int
	if err := db.Clauses(dbresolver.Write).Raw("SELECT 1").Scan(&result).Error; err != nil {
		return fmt.Errorf("test database connection: %w", err)
	}
	return nil
}

// Migrate creates or alters the users and blog_posts tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.BlogPost{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Reset drops both tables and migrates them again.
func Reset(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&models.BlogPost{}, &models.User{}); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return Migrate(db)
}

// gormLogWriter routes gorm's printf-style logger into zerolog.
type gormLogWriter struct {
	logger zerolog.Logger
}

func (w gormLogWriter) Printf(format string, args ...interface{}) {
	w.logger.Warn().Msgf(format, args...)
}

// NewGormLogger returns a gorm logger that writes through zerolog.
func NewGormLogger(l zerolog.Logger, level logger.LogLevel) logger.Interface {
	return logger.New(
		gormLogWriter{logger: l.With().Str("component", "gorm").Logger()},
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
