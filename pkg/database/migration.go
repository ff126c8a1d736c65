package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

// MigrationLogger adapts ectologger to migrate.Logger.
type MigrationLogger struct {
	ectologger.Logger
}

func (l MigrationLogger) Verbose() bool {
	return true
}

func (l MigrationLogger) Printf(format string, v ...any) {
	l.Infof(strings.TrimSuffix(format, "\n"), v...)
}

type MigrationConfig struct {
	MigrationFolderPath string
	Version             uint
	Force               int
	// AutoRollback forces a dirty database back to the previous version after a failed run.
	AutoRollback bool
}

type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{
		config: config,
		logger: logger,
	}
}

func (ms *MigrationService) resolveMigrationFolder() string {
	folder := ms.config.MigrationFolderPath
	if _, err := os.Stat(folder); err == nil || filepath.IsAbs(folder) {
		return folder
	}
	workingDirectory, _ := os.Getwd()
	return filepath.Join(workingDirectory, folder)
}

// MigratePostgres applies the migration folder to the given postgres pool.
func (ms *MigrationService) MigratePostgres(db *sql.DB, databaseName string) error {
	folder := ms.resolveMigrationFolder()
	if _, err := os.Stat(folder); err != nil {
		return errors.Wrapf(err, "migration folder %s does not exist", folder)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{DatabaseName: databaseName})
	if err != nil {
		return errors.Wrap(err, "failed to create postgres migration driver")
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+folder, databaseName, driver)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migrate instance")
		return errors.Wrap(err, "failed to create migrate instance")
	}
	m.Log = MigrationLogger{Logger: ms.logger}

	return ms.run(m)
}

func (ms *MigrationService) run(m *migrate.Migrate) error {
	if ms.config.Force != 0 {
		if err := m.Force(ms.config.Force); err != nil {
			ms.logger.WithError(err).Errorf("Failed to force database to version %d", ms.config.Force)
			return err
		}
	}

	previous, _, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		ms.logger.WithError(err).Warn("Failed to read current migration version")
	}

	started := time.Now()
	if ms.config.Version != 0 {
		err = m.Migrate(ms.config.Version)
	} else {
		err = m.Up()
	}
	ms.logger.WithField("elapsed", time.Since(started).String()).Info("Database migrations finished")

	return ms.handleMigrationError(m, err, previous)
}

func (ms *MigrationService) handleMigrationError(m *migrate.Migrate, err error, previous uint) error {
	switch {
	case err == nil:
		ms.logger.Info("Successfully applied migrations")
		return nil
	case errors.Is(err, migrate.ErrNoChange):
		ms.logger.Info("No new migrations to apply")
		return nil
	case strings.Contains(err.Error(), "no migration found for version"):
		// the database is ahead of this build, usually after a rollback deploy
		latest, latestErr := latestVersion(ms.resolveMigrationFolder())
		if latestErr != nil {
			return errors.Wrap(latestErr, "failed to read latest migration version")
		}
		ms.logger.Warnf("No migration found for version %d, forcing latest available version %d", previous, latest)
		return m.Force(latest)
	}

	version, dirty, versionErr := m.Version()
	ms.logger.WithError(err).WithFields(map[string]any{
		"version": version,
		"dirty":   dirty,
	}).Error("Failed to apply migrations")

	if versionErr == nil && dirty && ms.config.AutoRollback {
		target := int(previous)
		if target == 0 && version > 0 {
			target = int(version) - 1
		}
		ms.logger.Warnf("Database is dirty at version %d, forcing version %d", version, target)
		if forceErr := m.Force(target); forceErr != nil {
			return errors.Wrapf(forceErr, "failed to force database to version %d", target)
		}
	}

	// still fail so the service does not start on a half-migrated schema
	return err
}

var migrationFilePattern = regexp.MustCompile(`^(\d+)_.*\.up\.sql$`)

func latestVersion(folder string) (int, error) {
	files, err := os.ReadDir(folder)
	if err != nil {
		return 0, err
	}

	var versions []int
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		match := migrationFilePattern.FindStringSubmatch(file.Name())
		if len(match) < 2 {
			continue
		}
		version, err := strconv.Atoi(match[1])
		if err != nil {
			return 0, err
		}
		versions = append(versions, version)
	}

	if len(versions) == 0 {
		return 0, errors.New("no migration files found")
	}

	sort.Ints(versions)
	return versions[len(versions)-1], nil
}
