package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initGormDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		if clearData {
			tables := []string{
				"permission_audit_logs",
				"property_accesses",
				"resource_permissions",
				"user_roles",
				"expenses",
				"shifts",
				"properties",
				"users",
			}
			for _, table := range tables {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		password := "password"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		users := []struct {
			Email string
			Name  string
			Role  string
		}{
			{"admin@guardhq.dev", "Ada Admin", "admin"},
			{"manager@guardhq.dev", "Morgan Manager", "manager"},
			{"client@guardhq.dev", "Casey Client", "client"},
			{"guard@guardhq.dev", "Gabi Guard", "guard"},
		}

		ids := make(map[string]int64, len(users))
		for _, u := range users {
			id, err := ensureUser(db, u.Email, u.Name, string(hash))
			if err != nil {
				log.Fatalf("failed to seed user %s: %v", u.Email, err)
			}
			ids[u.Role] = id

			if err := ensureRole(db, id, u.Role); err != nil {
				log.Fatalf("failed to assign role %s to %s: %v", u.Role, u.Email, err)
			}
			fmt.Printf("Seeded %s user: %s\n", u.Role, u.Email)
		}

		propertyID, err := ensureProperty(db, "Harbor Point Plaza", "12 Harbor Rd", ids["client"])
		if err != nil {
			log.Fatalf("failed to seed property: %v", err)
		}
		fmt.Println("Seeded property: Harbor Point Plaza")

		if err := ensurePropertyAccess(db, ids["guard"], propertyID, ids["admin"]); err != nil {
			log.Fatalf("failed to seed property access: %v", err)
		}
		fmt.Println("Granted guard access to Harbor Point Plaza")
	},
}

func ensureUser(db *gorm.DB, email, name, hash string) (int64, error) {
	var id int64
	row := db.Raw("SELECT id FROM users WHERE email = ?", email).Row()
	if err := row.Scan(&id); err == nil {
		return id, nil
	}

	err := db.Raw(
		"INSERT INTO users (email, name, password_hash, is_active, created_at, updated_at) VALUES (?, ?, ?, true, now(), now()) RETURNING id",
		email, name, hash,
	).Row().Scan(&id)
	return id, err
}

func ensureRole(db *gorm.DB, userID int64, role string) error {
	var exists int
	row := db.Raw("SELECT 1 FROM user_roles WHERE user_id = ? AND is_active = true AND role = ?", userID, role).Row()
	if err := row.Scan(&exists); err == nil {
		return nil
	}

	if err := db.Exec("UPDATE user_roles SET is_active = false, updated_at = now() WHERE user_id = ?", userID).Error; err != nil {
		return err
	}
	return db.Exec(
		"INSERT INTO user_roles (user_id, role, is_active, created_at, updated_at) VALUES (?, ?, true, now(), now())",
		userID, role,
	).Error
}

func ensureProperty(db *gorm.DB, name, address string, ownerID int64) (int64, error) {
	var id int64
	row := db.Raw("SELECT id FROM properties WHERE name = ?", name).Row()
	if err := row.Scan(&id); err == nil {
		return id, nil
	}

	err := db.Raw(
		"INSERT INTO properties (name, address, owner_id, created_at, updated_at) VALUES (?, ?, ?, now(), now()) RETURNING id",
		name, address, ownerID,
	).Row().Scan(&id)
	return id, err
}

func ensurePropertyAccess(db *gorm.DB, userID, propertyID, grantedBy int64) error {
	var exists int
	row := db.Raw(
		"SELECT 1 FROM property_accesses WHERE user_id = ? AND property_id = ? AND revoked_at IS NULL",
		userID, propertyID,
	).Row()
	if err := row.Scan(&exists); err == nil {
		return nil
	}

	return db.Exec(
		`INSERT INTO property_accesses
			(user_id, property_id, access_type, can_create_shifts, can_edit_shifts, can_create_expenses, can_edit_expenses, can_approve_expenses, granted_by, granted_at)
		 VALUES (?, ?, 'assigned_guard', true, false, true, false, false, ?, now())`,
		userID, propertyID, grantedBy,
	).Error
}
