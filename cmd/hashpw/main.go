package main

import (
	"fmt"
	"os"

	"github.com/sashakarcz/irondhcp/internal/auth"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: hashpw <password>")
		fmt.Println("Example: hashpw mypassword")
		os.Exit(1)
	}

	password := os.Args[1]
	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Password: %s\n", password)
	fmt.Printf("bcrypt hash: %s\n", hash)
	fmt.Println("\nStore this as the operator's store.User.PasswordHash:")
	fmt.Printf("  username: admin\n")
	fmt.Printf("  password_hash: %q\n", hash)
}
