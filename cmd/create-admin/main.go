// Command create-admin registers a local account for password login.
//
//	create-admin -username keeper -password 's3cret-pass' [-role admin|viewer]
//
// The password may also be supplied through CREATE_ADMIN_PASSWORD so it does
// not end up in shell history.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/blogem/memorial-registry/config"
	"github.com/blogem/memorial-registry/database"
	"github.com/blogem/memorial-registry/models"
	"github.com/blogem/memorial-registry/repositories"
	"github.com/blogem/memorial-registry/services"
)

func main() {
	username := flag.String("username", "admin", "login name")
	password := flag.String("password", os.Getenv("CREATE_ADMIN_PASSWORD"), "password (at least 8 characters)")
	role := flag.String("role", models.RoleAdmin, "role: admin or viewer")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.InitializeDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	auth := services.NewAuthService(repositories.NewUserRepository(db), 0)
	user, err := auth.CreateUser(context.Background(), *username, *password, *role)
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	log.Printf("Created %s user %q (id %d) in %s", user.Role, user.Username, user.ID, cfg.Database.Path)
}
