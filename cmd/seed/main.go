package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ciptatunaskarya/ppdb-backend/config"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/model"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/repository"
	"github.com/ciptatunaskarya/ppdb-backend/internal/db"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/util"
)

// Creates a staff or admin account from the command line.
func main() {
	if len(os.Args) < 4 {
		log.Fatal("Usage: go run cmd/seed/main.go <email> <password> <name> [role]")
	}

	email, password, name := os.Args[1], os.Args[2], os.Args[3]
	role := model.RoleStaff
	if len(os.Args) > 4 {
		switch os.Args[4] {
		case "admin":
			role = model.RoleAdmin
		case "staff":
			role = model.RoleStaff
		default:
			log.Fatalf("Unknown role %q, expected staff or admin", os.Args[4])
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	userRepo := repository.NewUserRepository(db.GetDB())

	if existing, err := userRepo.FindByEmail(email); err == nil && existing != nil {
		log.Fatalf("User %s already exists", email)
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		IsActive:     true,
	}
	if err := userRepo.Create(user); err != nil {
		log.Fatal("Failed to create user:", err)
	}

	fmt.Printf("Created %s account %s (id=%d)\n", role, email, user.ID)
}
