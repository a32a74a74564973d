package main

import (
	"log"
	"time"

	"find-the-impostor/internal/config"
	"find-the-impostor/internal/db"

	"github.com/spf13/pflag"
)

func main() {
	filePath := pflag.String("file", "", "path to the word corpus yaml (default WORDS_PATH)")
	pflag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	path := *filePath
	if path == "" {
		path = cfg.WordsPath
	}

	conn, err := db.Open(cfg.DatabaseURL, db.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetimeSeconds) * time.Second,
	})
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	categories, err := db.ReadWordCorpus(path)
	if err != nil {
		log.Fatalf("failed to read words: %v", err)
	}
	loaded, err := db.LoadWordCategories(conn, categories)
	if err != nil {
		log.Fatalf("failed to upsert words: %v", err)
	}

	log.Printf("loaded %d categories from %s", loaded, path)
}
