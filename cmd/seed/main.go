// Command seed provisions the roster: one admin and, optionally, a sample reporting tree.
// Existing emails are left untouched so the command can be re-run.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fieldops/taskboard/internal/auth"
	"github.com/fieldops/taskboard/internal/config"
	"github.com/fieldops/taskboard/internal/domain"
	"github.com/fieldops/taskboard/internal/observability"
	"github.com/fieldops/taskboard/internal/persistence"
	"github.com/fieldops/taskboard/internal/repository"
)

type seedUser struct {
	name    string
	email   string
	role    domain.Role
	manager string
}

var sampleOrg = []seedUser{
	{"Sam Supervisor", "supervisor@example.com", domain.RoleSupervisor, "admin"},
	{"Jo Junior", "junior@example.com", domain.RoleJuniorSupervisor, "supervisor@example.com"},
	{"Tara Member", "member1@example.com", domain.RoleTeamMember, "junior@example.com"},
	{"Max Member", "member2@example.com", domain.RoleTeamMember, "supervisor@example.com"},
}

func main() {
	adminEmail := flag.String("admin-email", "admin@example.com", "admin login")
	adminName := flag.String("admin-name", "Administrator", "admin display name")
	password := flag.String("password", "", "password for every seeded user")
	sample := flag.Bool("sample", false, "also create a sample reporting tree")
	flag.Parse()

	if err := auth.ValidatePassword(*password); err != nil {
		log.Fatalf("-password: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	hash, err := auth.HashPassword(*password, cfg.Auth.BcryptCost)
	if err != nil {
		logger.Fatal("failed to hash password", zap.Error(err))
	}

	users := repository.NewUserRepository(pg.PoolHandle())
	seeds := []seedUser{{name: *adminName, email: *adminEmail, role: domain.RoleAdmin}}
	if *sample {
		seeds = append(seeds, sampleOrg...)
	}

	ids := map[string]string{}
	for _, s := range seeds {
		manager := s.manager
		if manager == "admin" {
			manager = *adminEmail
		}
		id, err := ensureUser(ctx, users, s, hash, ids[strings.ToLower(manager)])
		if err != nil {
			logger.Fatal("seed failed", zap.String("email", s.email), zap.Error(err))
		}
		ids[strings.ToLower(s.email)] = id
		logger.Info("seeded user", zap.String("email", s.email), zap.String("role", string(s.role)), zap.String("user_id", id))
	}
}

func ensureUser(ctx context.Context, users repository.UserRepository, s seedUser, hash, managerID string) (string, error) {
	email := strings.ToLower(s.email)
	existing, err := users.GetByEmail(ctx, email)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	user := &domain.User{
		Name:         s.name,
		Email:        email,
		PasswordHash: hash,
		Role:         s.role,
		Active:       true,
	}
	if managerID != "" {
		user.ManagerID = &managerID
	}
	if err := users.Create(ctx, user); err != nil {
		return "", err
	}
	return user.ID, nil
}
