package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"storefront/internal/backend"
	"storefront/internal/config"
	"storefront/internal/importer"
	"storefront/internal/repository/localstore"
	"storefront/internal/service/session"
	"storefront/internal/storefront"
)

func main() {
	var (
		filePath string
		username string
	)
	flag.StringVar(&filePath, "file", "", "Path to product CSV (name,description,price,stock,category,image_url)")
	flag.StringVar(&username, "user", "", "Administrator username or email")
	flag.Parse()

	password := os.Getenv("IMPORT_PASSWORD")
	if filePath == "" || username == "" || password == "" {
		fmt.Fprintln(os.Stderr, "usage: importer -file products.csv -user admin (password in IMPORT_PASSWORD)")
		flag.Usage()
		os.Exit(2)
	}

	logger := log.New(os.Stdout, "[importer] ", log.LstdFlags|log.LUTC|log.Lshortfile)
	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	ctx := context.Background()

	api, err := backend.New(cfg.BackendURL, cfg.BackendTimeout, logger)
	if err != nil {
		logger.Fatalf("backend client: %v", err)
	}
	// The importer is one more browser: its session lives only in memory.
	registry := storefront.NewRegistry(localstore.NewMemory(), api, storefront.Options{Logger: logger})
	sh, err := registry.Get(ctx, "importer")
	if err != nil {
		logger.Fatalf("build shell: %v", err)
	}
	if _, err := sh.Session.Login(ctx, session.LoginInput{Identifier: username, Password: password}); err != nil {
		logger.Fatalf("login: %v", err)
	}
	defer sh.Session.Logout(ctx)
	if !sh.Session.IsAdmin() {
		logger.Fatalf("%s is not an administrator", username)
	}

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatalf("open file: %v", err)
	}
	defer f.Close()

	start := time.Now()
	count, err := importer.NewCSVImporter(f, sh.Admin).Run(ctx)
	if err != nil {
		logger.Fatalf("import failed after %d products: %v", count, err)
	}

	fmt.Printf("Imported %d products into %s in %s\n", count, api.BaseURL(), time.Since(start).Truncate(time.Millisecond))
}
