package database

import (
	"context"
	"testing"
)

func TestSeedIdempotent(t *testing.T) {
	db, err := Connect(testDSN())
	if err != nil {
		t.Skipf("skipping: DB not available: %v", err)
	}
	defer db.Close()

	if err := Migrate(db.DB); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// Seed only creates data when there are no users, so it is called twice
	// without clearing the database. Other packages may share it.
	ctx := context.Background()
	if err := Seed(ctx, db); err != nil {
		t.Fatalf("first Seed: %v", err)
	}
	if err := Seed(ctx, db); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	var users int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&users); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if users < 1 {
		t.Errorf("expected at least 1 user, got %d", users)
	}

	// An admin created by Seed always has a profile.
	var orphans int
	err = db.QueryRow(`
		SELECT COUNT(*) FROM users u
		LEFT JOIN forum_profiles p ON p.user_id = u.id
		WHERE u.username = $1 AND p.id IS NULL`, AdminUsername).Scan(&orphans)
	if err != nil {
		t.Fatalf("count admin without profile: %v", err)
	}
	if orphans != 0 {
		t.Errorf("admin user has no forum profile")
	}
}
