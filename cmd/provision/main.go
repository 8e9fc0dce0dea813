// Provision seeds the portal with its fixed school roster and accounts.
// There is no self-registration flow; this CLI is the only way accounts
// come into existence. Re-running it is safe: rows are upserted by their
// natural keys and existing passwords are left untouched unless -reset-
// passwords is given.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/supervision-portal-api/internal/models"
	"github.com/noah-isme/supervision-portal-api/pkg/config"
	"github.com/noah-isme/supervision-portal-api/pkg/database"
	"github.com/noah-isme/supervision-portal-api/pkg/logger"
)

type seedSchool struct {
	Code string
	Name string
}

type seedAccount struct {
	Username   string
	FullName   string
	Role       models.UserRole
	SchoolCode string
}

var schools = []seedSchool{
	{Code: "north-primary", Name: "North Primary"},
	{Code: "south-primary", Name: "South Primary"},
	{Code: "east-primary", Name: "East Primary"},
}

var accounts = []seedAccount{
	{Username: "admin", FullName: "Supervision Office", Role: models.RoleAdmin},
	{Username: "north-primary", FullName: "North Primary", Role: models.RoleSchool, SchoolCode: "north-primary"},
	{Username: "south-primary", FullName: "South Primary", Role: models.RoleSchool, SchoolCode: "south-primary"},
	{Username: "east-primary", FullName: "East Primary", Role: models.RoleSchool, SchoolCode: "east-primary"},
}

func main() {
	resetPasswords := flag.Bool("reset-passwords", false, "overwrite passwords of existing accounts")
	password := flag.String("password", "", "initial password for all seeded accounts (required on first run)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logr.Sync()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if err := seed(db, logr, *password, *resetPasswords); err != nil {
		logr.Fatal("provisioning failed", zap.Error(err))
	}
	logr.Info("provisioning complete",
		zap.Int("schools", len(schools)),
		zap.Int("accounts", len(accounts)))
}

func seed(db *sqlx.DB, logr *zap.Logger, password string, resetPasswords bool) error {
	if password == "" {
		return fmt.Errorf("-password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	schoolIDs := make(map[string]string, len(schools))
	for _, s := range schools {
		var id string
		err := tx.QueryRowx(`
			INSERT INTO schools (id, code, name)
			VALUES ($1, $2, $3)
			ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`,
			uuid.NewString(), s.Code, s.Name,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("upsert school %s: %w", s.Code, err)
		}
		schoolIDs[s.Code] = id
		logr.Info("school ready", zap.String("code", s.Code), zap.String("id", id))
	}

	for _, a := range accounts {
		var schoolID *string
		if a.SchoolCode != "" {
			id, ok := schoolIDs[a.SchoolCode]
			if !ok {
				return fmt.Errorf("account %s references unknown school %s", a.Username, a.SchoolCode)
			}
			schoolID = &id
		}

		query := `
			INSERT INTO users (id, username, password_hash, full_name, role, school_id, active)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			ON CONFLICT (username) DO UPDATE SET
				full_name = EXCLUDED.full_name,
				role      = EXCLUDED.role,
				school_id = EXCLUDED.school_id,
				active    = TRUE`
		if resetPasswords {
			query += `,
				password_hash = EXCLUDED.password_hash`
		}
		if _, err := tx.Exec(query,
			uuid.NewString(), a.Username, string(hash), a.FullName, a.Role, schoolID,
		); err != nil {
			return fmt.Errorf("upsert account %s: %w", a.Username, err)
		}
		logr.Info("account ready", zap.String("username", a.Username), zap.String("role", string(a.Role)))
	}

	return tx.Commit()
}
