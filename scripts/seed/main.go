package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/easyhotel/easyhotel/internal/app"
	"github.com/easyhotel/easyhotel/internal/auth"
	"github.com/easyhotel/easyhotel/internal/platform/db"
	"github.com/easyhotel/easyhotel/internal/users"
)

type seedAccount struct {
	name     string
	email    string
	password string
	role     auth.Role
}

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()

	pool, err := db.New(ctx, db.Options{DSN: cfg.PGDSN})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	repo := users.NewRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	service := users.NewService(repo, nil, app.NewLogger(cfg))

	accounts := []seedAccount{
		{"Hotel Admin", getenv("SEED_ADMIN_EMAIL", "admin@easyhotel.local"), getenv("SEED_ADMIN_PASSWORD", "admin123"), auth.RoleAdmin},
		{"Front Desk", "staff@easyhotel.local", "staff123", auth.RoleStaff},
		{"Sample Guest", "guest@easyhotel.local", "guest123", auth.RoleGuest},
	}

	fmt.Println("→ Seeding users...")
	for _, a := range accounts {
		_, err := service.Register(ctx, users.CreateInput{Name: a.name, Email: a.email, Password: a.password, Role: a.role})
		switch {
		case errors.Is(err, users.ErrEmailTaken):
			fmt.Printf("  %s already present\n", a.email)
		case err != nil:
			log.Fatalf("seed %s: %v", a.email, err)
		default:
			fmt.Printf("  %s (%s)\n", a.email, a.role)
		}
	}
	fmt.Println("✓ Seed complete")
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
