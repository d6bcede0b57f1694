package main

import (
	"fmt"
	"os"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/taskdesk/config"
	"github.com/ichigozero/taskdesk/tasksvc"
	"github.com/ichigozero/taskdesk/usersvc"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	libgorm "gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var rootCmd = &cobra.Command{
	Use:           "taskdesk",
	Short:         "Task tracking API with live task notifications",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "taskdesk: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() log.Logger {
	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}
	return logger
}

// openDB connects to postgres when a database URL is configured and to the
// sqlite file otherwise.
func openDB(cfg config.DatabaseConfig) (*libgorm.DB, error) {
	gormConfig := &libgorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}
	if cfg.URL != "" {
		return libgorm.Open(postgres.Open(cfg.URL), gormConfig)
	}
	return libgorm.Open(sqlite.Open(cfg.SQLitePath), gormConfig)
}

func migrate(db *libgorm.DB) error {
	return db.AutoMigrate(&usersvc.Role{}, &usersvc.User{}, &tasksvc.Task{})
}
