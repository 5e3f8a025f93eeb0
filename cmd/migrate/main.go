package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/lib/pq"

	"github.com/ab65ed/soaledu.ir-sub005/internal/config"
	"github.com/ab65ed/soaledu.ir-sub005/pkg/database"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "путь к файлу конфигурации")
	command := flag.String("cmd", "up", "команда: up, down, force, version")
	version := flag.Int("version", -1, "версия для force")
	source := flag.String("source", database.DefaultMigrationsSource, "источник миграций")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("База данных недоступна: %v", err)
	}

	m, err := database.NewMigrator(db, *source)
	if err != nil {
		log.Fatal(err)
	}

	if err := run(m, *command, *version); err != nil {
		log.Printf("Ошибка выполнения '%s': %v", *command, err)
		os.Exit(1)
	}
}

func run(m *migrate.Migrate, command string, version int) error {
	switch command {
	case "up":
		return ignoreNoChange(m.Up())
	case "down":
		// Откатываем ровно одну миграцию
		return ignoreNoChange(m.Steps(-1))
	case "force":
		if version < 0 {
			return fmt.Errorf("force requires -version")
		}
		// Снимает dirty-состояние после неудачной миграции
		if err := m.Force(version); err != nil {
			return err
		}
		fmt.Printf("Версия миграций установлена в %d\n", version)
		return nil
	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("Миграции ещё не применялись")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Версия: %d, dirty: %t\n", v, dirty)
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("Изменений нет, схема актуальна.")
		return nil
	}
	if err == nil {
		log.Println("Миграции применены.")
	}
	return err
}
