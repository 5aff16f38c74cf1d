package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"forumcore/internal/models"
	"forumcore/internal/store"
)

// AdminUsername is the account created by Seed.
const AdminUsername = "admin"

// Seed populates the database with initial development data.
// It creates a default admin user with an administrator forum profile if no
// users exist yet. The forum hierarchy itself is seeded through the forum
// service so that its denormalized fields start out consistent.
func Seed(ctx context.Context, db *sqlx.DB) error {
	users := store.NewUserStore(db)

	count, err := users.Count(ctx)
	if err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}
	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	// Hash the default admin password.
	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	err = WithTx(ctx, db, nil, func(tx *sqlx.Tx) error {
		admin, err := store.NewUserStore(tx).Create(ctx, AdminUsername, string(hash))
		if err != nil {
			return err
		}
		profiles := store.NewProfileStore(tx)
		if _, err := profiles.GetOrCreate(ctx, admin.ID); err != nil {
			return err
		}
		return profiles.SetGroup(ctx, admin.ID, models.GroupAdmin)
	})
	if err != nil {
		return fmt.Errorf("seed insert admin: %w", err)
	}

	slog.Info("database seeded with default admin user",
		"username", AdminUsername,
		"password", "admin",
	)

	return nil
}
