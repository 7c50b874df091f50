package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/faunatrack/server/internal/auth"
	"github.com/faunatrack/server/internal/db"
)

func main() {
	password := flag.String("password", "", "password to hash with Argon2id")
	username := flag.String("username", "", "when set, print an INSERT statement seeding this user")
	role := flag.String("role", auth.RoleRanger, "role of the seeded user")
	flag.Parse()

	if *password == "" {
		log.Fatal("password is required")
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	if *username == "" {
		fmt.Println(hash)
		return
	}

	fmt.Printf(
		"INSERT INTO users (id, username, password_hash, role, created_at) VALUES ('%s', '%s', '%s', '%s', '%s');\n",
		uuid.NewString(), sqlQuote(*username), hash, sqlQuote(*role), db.FormatTimestamp(time.Now()),
	)
}

func sqlQuote(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "'", "''")
}
