// Command create-admin creates or promotes an ADMIN account and prints an
// access token for it. It reads the same environment as the server plus
// ADMIN_EMAIL, ADMIN_PASSWORD and ADMIN_NAME.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

const minPasswordLen = 8

func main() {
	if err := run(config.Load()); err != nil {
		log.Fatal(err)
	}
}

func run(cfg config.Config) error {
	email := strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))
	password := os.Getenv("ADMIN_PASSWORD")
	name := os.Getenv("ADMIN_NAME")
	if name == "" {
		name = "Administrator"
	}
	if email == "" || !strings.Contains(email, "@") {
		return errors.New("ADMIN_EMAIL must be a valid email address")
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("ADMIN_PASSWORD must be at least %d characters", minPasswordLen)
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if cfg.DBAutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	users := repository.NewUserRepo(db)
	id, err := users.UpsertAdmin(ctx, email, name, password, cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("upsert admin: %w", err)
	}
	u, err := users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("reload admin: %w", err)
	}
	if u.Role != model.RoleAdmin || !utils.VerifyPassword(u.PasswordHash, password) {
		return errors.New("stored admin account does not match the requested credentials")
	}

	tok, err := utils.NewAccessToken(cfg.JWTSecret, id, model.RoleAdmin, cfg.AccessTTLMin)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Printf("admin %s (id %d) ready\naccess token (expires %s):\n%s\n",
		u.Email, id, tok.Exp.Format(time.RFC3339), tok.Token)
	return nil
}
