package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Development helper: mints an HS256 access token accepted by the accountd
// middleware, so the authenticated endpoints can be exercised without a
// real identity provider in front.
func main() {
	secret := flag.String("secret", "very-secure-jwt-secret", "Secret key for signing the token")
	userID := flag.String("user-id", "", "Subject identity id (defaults to a fresh UUID)")
	name := flag.String("name", "Test User", "Display name claim")
	email := flag.String("email", "test@example.com", "Email claim")
	locale := flag.String("locale", "en", "Locale claim")
	expiry := flag.Duration("expiry", 30*time.Minute, "Token expiry duration (e.g., 30m, 1h, 24h)")
	flag.Parse()

	subject := *userID
	if subject == "" {
		subject = uuid.New().String()
	} else if _, err := uuid.Parse(subject); err != nil {
		fmt.Fprintf(os.Stderr, "Error: user-id must be a UUID: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":          subject,
		"user_id":      subject,
		"display_name": *name,
		"email":        *email,
		"locale":       *locale,
		"iat":          now.Unix(),
		"exp":          now.Add(*expiry).Unix(),
	})

	tokenStr, err := token.SignedString([]byte(*secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(tokenStr)
	fmt.Fprintf(os.Stderr, "user_id=%s expires=%s\n", subject, now.Add(*expiry).Format(time.RFC3339))
}
