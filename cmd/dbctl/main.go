// Command dbctl runs maintenance tasks against the configured database.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/adswadi/agency-site-backend/config"
	"github.com/adswadi/agency-site-backend/database"
	"github.com/adswadi/agency-site-backend/models"
	"github.com/adswadi/agency-site-backend/services"
)

const usage = `Usage: dbctl <command>

Commands:
  reset     drop and recreate all tables, then create the admin user and sample posts
  seed      insert the sample posts when the posts table is empty
  stats     print user and post counts
  backup    copy the sqlite database file next to itself
  generate  migrate and write typed query helpers to GEN_OUT_PATH (default ./generated)
  report    list database columns that no model field maps to
  help      show this message
`

var errUsage = errors.New("unknown command")

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	command := "help"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if err := run(context.Background(), command, config.New(), os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		log.Fatal().Err(err).Str("command", command).Msg("dbctl failed")
	}
}

func run(ctx context.Context, command string, c map[string]string, out io.Writer) error {
	switch command {
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	case "backup":
		return backup(c, out)
	case "reset", "seed", "stats", "generate", "report":
	default:
		return fmt.Errorf("%w: %q", errUsage, command)
	}

	if database.ResolveType(c) == database.TypeMemory {
		return fmt.Errorf("%s needs a SQL database, DB_TYPE is memory", command)
	}
	db, err := database.Open(c)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	switch command {
	case "reset":
		return reset(ctx, db, c, out)
	case "seed":
		if err := database.Migrate(db); err != nil {
			return err
		}
		n, err := services.SeedSamplePosts(ctx, database.New(db), adminUsername(c))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "seeded %d posts\n", n)
		return nil
	case "stats":
		s, err := collectStats(ctx, database.New(db))
		if err != nil {
			return err
		}
		s.print(out)
		return nil
	case "generate":
		return models.GenerateModels(db, config.GetString(c, "GEN_OUT_PATH", "./generated"))
	default:
		report, err := models.ColumnMismatchReport(db)
		if err != nil {
			return err
		}
		models.LogColumnMismatchReport(report)
		return nil
	}
}

func adminUsername(c map[string]string) string {
	return config.GetString(c, "ADMIN_USERNAME", services.DefaultAdminUsername)
}

func reset(ctx context.Context, db *gorm.DB, c map[string]string, out io.Writer) error {
	if err := database.Reset(db); err != nil {
		return err
	}
	current := database.New(db)

	credentials := services.NewCredentialStore(current.UserRepo(), config.GetInt(c, "BCRYPT_COST", bcrypt.DefaultCost))
	if _, err := credentials.EnsureDefaultAdmin(ctx,
		adminUsername(c),
		config.GetString(c, "ADMIN_EMAIL", services.DefaultAdminEmail),
		config.GetString(c, "ADMIN_PASSWORD", services.DefaultAdminPassword),
	); err != nil {
		return err
	}
	n, err := services.SeedSamplePosts(ctx, current, adminUsername(c))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "database reset: admin %q, %d sample posts\n", adminUsername(c), n)
	return nil
}

type stats struct {
	Users    int64
	Posts    int64
	ByStatus map[models.PostStatus]int64
}

// collectStats runs the count queries concurrently.
func collectStats(ctx context.Context, db database.Database) (stats, error) {
	var s stats
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := db.UserRepo().Count(ctx)
		s.Users = n
		return err
	})
	g.Go(func() error {
		n, err := db.BlogPostRepo().Count(ctx)
		s.Posts = n
		return err
	})
	g.Go(func() error {
		counts, err := db.BlogPostRepo().CountByStatus(ctx)
		s.ByStatus = counts
		return err
	})

	if err := g.Wait(); err != nil {
		return stats{}, fmt.Errorf("collect stats: %w", err)
	}
	return s, nil
}

func (s stats) print(out io.Writer) {
	fmt.Fprintf(out, "users:     %d\n", s.Users)
	fmt.Fprintf(out, "posts:     %d\n", s.Posts)
	fmt.Fprintf(out, "published: %d\n", s.ByStatus[models.StatusPublished])
	fmt.Fprintf(out, "draft:     %d\n", s.ByStatus[models.StatusDraft])
	fmt.Fprintf(out, "archived:  %d\n", s.ByStatus[models.StatusArchived])
}

func backup(c map[string]string, out io.Writer) error {
	if kind := database.ResolveType(c); kind != database.TypeSQLite {
		return fmt.Errorf("backup only supports sqlite, DB_TYPE is %s", kind)
	}
	dest, err := backupSQLite(config.GetString(c, "DB_PATH", "database.sqlite"), time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "backup written to %s\n", dest)
	return nil
}

// backupSQLite copies the database file to database-backup-<millis>.sqlite in the same directory.
func backupSQLite(path string, now time.Time) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open database file: %w", err)
	}
	defer src.Close()

	dest := filepath.Join(filepath.Dir(path), fmt.Sprintf("database-backup-%d.sqlite", now.UnixMilli()))
	dst, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create backup file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dest)
		return "", fmt.Errorf("copy database file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close backup file: %w", err)
	}
	return dest, nil
}
