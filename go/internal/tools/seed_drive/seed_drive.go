package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/mcdev12/mockdrive/go/internal/assessment/repository"
	"github.com/mcdev12/mockdrive/go/internal/config"
)

func main() {
	path := "go/internal/assets/sample_drive.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load the drive definition
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read drive file: %v\n", err)
		os.Exit(1)
	}
	drive, sections, err := parseDrive(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// 2) Connect using the shared config
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	repo, err := repository.NewPostgres(ctx, repository.PostgresConfig{DSN: cfg.Database.DSN()})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	if err := repo.Migrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	// 3) Upsert
	if err := repo.UpsertDrive(ctx, drive, sections); err != nil {
		fmt.Fprintf(os.Stderr, "upsert drive %s: %v\n", drive.ID, err)
		os.Exit(1)
	}

	questions := 0
	for _, s := range sections {
		questions += len(s.Questions)
	}
	fmt.Printf(
		"Drive seed complete: %q (%s), %d sections, %d questions\n",
		drive.Title, drive.ID, len(sections), questions,
	)
}
