package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"botdeck/backend/internal/config"
	"botdeck/backend/pkg/jwt"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Issues a signed access token for local development. Accounts live in an
// upstream identity service; this only mints a token the API will accept.
func main() {
	userID := flag.String("user", "", "user id to embed (random when empty)")
	username := flag.String("name", "developer", "display name")
	role := flag.String("role", "user", "role claim")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *userID == "" {
		*userID = uuid.NewString()
	}

	manager := jwt.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpire)
	token, err := manager.GenerateAccessToken(*userID, *username, *role)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Token for user %s (expires in %s)\n", *userID, cfg.JWT.AccessTokenExpire)
	fmt.Println(token)
}
