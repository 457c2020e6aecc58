package main

import (
	"embed"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

//go:embed config/migrations/*/*.sql
var embedMigrations embed.FS

// DatabaseConfig configures the ledger's backing store. To connect to
// Postgresql fill out the full set of fields; to connect to sqlite, set
// Driver to "sqlite" (the default is an in-memory database unless Name is
// provided).
type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL" env-default:""`
	Name     string `env:"DATABASE_NAME" env-default:""`
	Schema   string `env:"DATABASE_SCHEMA" env-default:""`
	Driver   string `env:"DATABASE_DRIVER" env-default:"postgres"`
	Username string `env:"DATABASE_USERNAME" env-default:"postgres"`
	Password string `env:"DATABASE_PASSWORD" env-default:""`
	Host     string `env:"DATABASE_HOST" env-default:"localhost"`
	Port     string `env:"DATABASE_PORT" env-default:"5432"`
	Retries  int    `env:"DATABASE_RETRIES" env-default:"5"`
}

// ParseConnectionString parses a DATABASE_URL, detecting sqlite ("file:"
// prefix) vs. postgres connection strings.
func ParseConnectionString(connStr string) (DatabaseConfig, error) {
	if strings.HasPrefix(connStr, "file:") {
		parts := strings.SplitN(connStr[5:], "?", 2)
		return DatabaseConfig{
			Name:    parts[0],
			Driver:  "sqlite",
			Retries: 1,
		}, nil
	}

	parsedURL, err := url.Parse(connStr)
	if err != nil {
		return DatabaseConfig{}, ValidationErrorf("invalid DATABASE_URL: %w", err)
	}
	if parsedURL.Scheme != "postgres" && parsedURL.Scheme != "postgresql" {
		return DatabaseConfig{}, ValidationErrorf("unsupported DATABASE_URL scheme: %s", parsedURL.Scheme)
	}

	username, password := "", ""
	if parsedURL.User != nil {
		username = parsedURL.User.Username()
		password, _ = parsedURL.User.Password()
	}

	host := parsedURL.Hostname()
	port := parsedURL.Port()
	if port == "" {
		port = "5432"
	}

	dbSchema := ""
	retries := 5
	query := parsedURL.Query()
	if s := query.Get("search_path"); s != "" {
		dbSchema = s
	}
	if r := query.Get("retries"); r != "" {
		if v, err := strconv.Atoi(r); err == nil {
			retries = v
		}
	}

	return DatabaseConfig{
		Name:     strings.TrimPrefix(parsedURL.Path, "/"),
		Schema:   dbSchema,
		Driver:   "postgres",
		Username: username,
		Password: password,
		Host:     host,
		Port:     port,
		Retries:  retries,
	}, nil
}

// ConnectToDB dials the configured driver, ensures the schema exists,
// applies migrations, and returns a ready *gorm.DB.
func ConnectToDB(cnf DatabaseConfig, logger Logger) (*gorm.DB, error) {
	switch cnf.Driver {
	case "postgres":
		return connectToPostgresql(cnf, logger)
	case "sqlite", "":
		return connectToSqlite(cnf, logger)
	default:
		return nil, ValidationErrorf("unsupported database driver: %s", cnf.Driver)
	}
}

func connectToPostgresql(cnf DatabaseConfig, logger Logger) (*gorm.DB, error) {
	logger.Info("connecting to postgresql", "host", cnf.Host, "database", cnf.Name)

	if err := ensurePostgresqlSchema(cnf, logger); err != nil {
		return nil, InternalErrorf("failed to ensure postgresql schema: %w", err)
	}
	if err := migratePostgres(cnf, logger); err != nil {
		return nil, InternalErrorf("failed to apply postgresql migrations: %w", err)
	}

	dsn, err := postgresqlDbURL(cnf)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{TablePrefix: schemaPrefix(cnf.Schema)},
	})
	if err != nil {
		return nil, InternalErrorf("failed to open postgresql connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.SetMaxOpenConns(connPoolCeiling(cnf.Retries))
	}
	return db, nil
}

func connectToSqlite(cnf DatabaseConfig, logger Logger) (*gorm.DB, error) {
	var dsn string
	if cnf.Name != "" {
		logger.Info("connecting to sqlite", "path", cnf.Name)
		dsn = fmt.Sprintf("file:%s?cache=shared", cnf.Name)
	} else {
		logger.Info("connecting to in-memory sqlite")
		dsn = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{TablePrefix: schemaPrefix(cnf.Schema)},
	})
	if err != nil {
		return nil, InternalErrorf("failed to open sqlite connection: %w", err)
	}

	if err := migrateSqlite(db); err != nil {
		return nil, InternalErrorf("failed to auto-migrate sqlite schema: %w", err)
	}
	logger.Info("sqlite schema ready")

	return db, nil
}

func schemaPrefix(dbSchema string) string {
	if dbSchema == "" {
		return ""
	}
	return dbSchema + "."
}

// connPoolCeiling keeps the gorm connection pool well under a typical
// postgres server's max_connections, per §5's resource-starvation note.
func connPoolCeiling(retries int) int {
	if retries <= 0 {
		return 10
	}
	if retries > 25 {
		return 25
	}
	return retries * 5
}

func postgresqlDbURL(cnf DatabaseConfig) (string, error) {
	if cnf.Driver != "postgres" {
		return "", ValidationErrorf("unsupported driver for DSN construction: %s", cnf.Driver)
	}

	dsn := fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		cnf.Username, cnf.Password, cnf.Host, cnf.Port, cnf.Name,
	)
	if cnf.Schema != "" {
		dsn = fmt.Sprintf("%s search_path=%s", dsn, cnf.Schema)
	}
	return dsn, nil
}

func ensurePostgresqlSchema(cnf DatabaseConfig, logger Logger) error {
	if cnf.Schema == "" {
		return nil
	}

	logger.Info("ensuring schema exists", "schema", cnf.Schema)
	dbConf := cnf
	dbConf.Schema = ""
	dsn, err := postgresqlDbURL(dbConf)
	if err != nil {
		return err
	}

	db, err := sqlx.Connect(dbConf.Driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	var exists int
	checkQuery := "SELECT 1 FROM information_schema.schemata WHERE schema_name=$1"
	if err := db.Get(&exists, checkQuery, cnf.Schema); err == nil {
		logger.Info("schema already exists", "schema", cnf.Schema)
		return nil
	}

	if _, err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", cnf.Schema)); err != nil {
		return fmt.Errorf("error while creating schema: %w", err)
	}
	logger.Info("schema created", "schema", cnf.Schema)
	return nil
}

func migratePostgres(cnf DatabaseConfig, logger Logger) error {
	dsn, err := postgresqlDbURL(cnf)
	if err != nil {
		return err
	}

	db, err := goose.OpenDBWithDriver(cnf.Driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if cnf.Schema != "" {
		if _, err := db.Exec(fmt.Sprintf("SET search_path TO %s", cnf.Schema)); err != nil {
			return fmt.Errorf("failed to set search path: %w", err)
		}
	}

	logger.Info("applying database migrations")
	goose.SetBaseFS(embedMigrations)
	if err := goose.Up(db, "config/migrations/"+cnf.Driver); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	logger.Info("migrations applied")
	return nil
}

func migrateSqlite(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Wallet{}, &Transaction{}, &AuditLog{})
}
