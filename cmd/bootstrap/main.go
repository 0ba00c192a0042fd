// Package main provisions a tenant together with its first owner-admin.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	"github.com/noah-isme/sma-lifecycle-api/internal/repository"
	"github.com/noah-isme/sma-lifecycle-api/internal/tenancy"
	"github.com/noah-isme/sma-lifecycle-api/pkg/config"
	"github.com/noah-isme/sma-lifecycle-api/pkg/database"
	"github.com/noah-isme/sma-lifecycle-api/pkg/logger"
)

func main() {
	var name, slug, email, password, fullName string
	var migrate bool

	flag.StringVar(&name, "name", "", "tenant display name")
	flag.StringVar(&slug, "slug", "", "tenant slug used by public endpoints")
	flag.StringVar(&email, "email", "", "owner-admin email")
	flag.StringVar(&password, "password", "", "owner-admin password (min 8 chars)")
	flag.StringVar(&fullName, "full-name", "Administrator", "owner-admin display name")
	flag.BoolVar(&migrate, "migrate", true, "apply migrations before provisioning")
	flag.Parse()

	if name == "" || slug == "" || email == "" || len(password) < 8 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(name, slug, email, password, fullName, migrate); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(name, slug, email, password, fullName string, migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, dialect, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if migrate {
		if err := database.Migrate(db.DB, dialect, logr); err != nil {
			return err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()
	tenant := &models.Tenant{ID: uuid.NewString(), Name: name, Slug: strings.ToLower(slug), Active: true, CreatedAt: now, UpdatedAt: now}
	owner := &models.Actor{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         models.RoleOwnerAdmin,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tenants := repository.NewTenantRepository(db, dialect)
	actors := repository.NewActorRepository(db, dialect)
	err = database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		if err := tenants.Create(ctx, tx, tenant); err != nil {
			return err
		}
		scope, err := tenancy.ForTenant(tenant.ID)
		if err != nil {
			return err
		}
		return actors.Create(ctx, tx, scope, owner)
	})
	if err != nil {
		return err
	}

	fmt.Printf("tenant %s (%s)\nowner-admin %s <%s>\n", tenant.ID, tenant.Slug, owner.ID, strings.ToLower(owner.Email))
	return nil
}
