package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/gmbtravels/gmbservice/internal/docstore"
	"github.com/gmbtravels/gmbservice/pkg"

	log "github.com/sirupsen/logrus"
)

const AdminsCollection = "admin_users"

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

var (
	// AdminOnly may mutate every resource.
	AdminOnly = []string{RoleAdmin}
	// Editors may mutate content resources (team, blogs).
	Editors = []string{RoleAdmin, RoleEditor}
)

// Admin is stored with the username as its document id.
type Admin struct {
	docstore.Meta `bson:",inline"`
	Username      string `json:"username" bson:"username"`
	PasswordHash  string `json:"passwordHash" bson:"passwordHash"`
	Role          string `json:"role" bson:"role"`
}

type adminStore interface {
	Get(ctx context.Context, id string) (Admin, error)
	Insert(ctx context.Context, doc Admin) (Admin, error)
	Update(ctx context.Context, id string, fields map[string]any) (Admin, error)
}

// AdminConfig describes the admin account seeded at startup.
// PasswordHash wins over Password when both are set.
type AdminConfig struct {
	Username     string
	Password     string
	PasswordHash string
	Role         string
	BcryptCost   int
}

func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleEditor
}

// SeedAdmin makes sure the configured admin exists in the store. An existing admin is rotated
// to the configured password and role when they differ, otherwise left untouched.
func SeedAdmin(ctx context.Context, store adminStore, cfg AdminConfig) (Admin, error) {
	if cfg.Username == "" {
		return Admin{}, errors.New("admin username not set")
	}
	if cfg.Password == "" && cfg.PasswordHash == "" {
		return Admin{}, errors.New("admin password not set")
	}
	if cfg.Role == "" {
		cfg.Role = RoleAdmin
	}
	if !ValidRole(cfg.Role) {
		return Admin{}, fmt.Errorf("unknown admin role: %s", cfg.Role)
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = pkg.DefaultPasswordCost
	}

	existing, err := store.Get(ctx, cfg.Username)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return Admin{}, fmt.Errorf("get admin: %w", err)
	}

	if errors.Is(err, docstore.ErrNotFound) {
		passwordHash, err := cfg.passwordHash()
		if err != nil {
			return Admin{}, err
		}

		admin, err := store.Insert(ctx, Admin{
			Meta:         docstore.Meta{ID: cfg.Username},
			Username:     cfg.Username,
			PasswordHash: passwordHash,
			Role:         cfg.Role,
		})
		if err != nil {
			return Admin{}, fmt.Errorf("insert admin: %w", err)
		}
		log.Infof("admin [%s] seeded", cfg.Username)
		return admin, nil
	}

	fields := map[string]any{}
	if existing.Role != cfg.Role {
		fields["role"] = cfg.Role
	}
	if cfg.PasswordHash != "" && cfg.PasswordHash != existing.PasswordHash {
		fields["passwordHash"] = cfg.PasswordHash
	} else if cfg.PasswordHash == "" && !pkg.CheckPasswordHash(cfg.Password, existing.PasswordHash) {
		passwordHash, err := cfg.passwordHash()
		if err != nil {
			return Admin{}, err
		}
		fields["passwordHash"] = passwordHash
	}

	if len(fields) == 0 {
		log.Debugf("admin [%s] up to date", cfg.Username)
		return existing, nil
	}

	admin, err := store.Update(ctx, cfg.Username, fields)
	if err != nil {
		return Admin{}, fmt.Errorf("rotate admin: %w", err)
	}
	log.Warnf("admin [%s] credentials rotated", cfg.Username)
	return admin, nil
}

func (cfg AdminConfig) passwordHash() (string, error) {
	if cfg.PasswordHash != "" {
		return cfg.PasswordHash, nil
	}
	hash, err := pkg.HashPasswordWithCost(cfg.Password, cfg.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash admin password: %w", err)
	}
	return hash, nil
}
