package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/paymentsync_backend/utils"
)

// Mints a bearer token for the payment terms API. API_SECRET must match the
// server's; TOKEN_HOUR_LIFESPAN controls expiry.
func main() {
	subject := flag.String("subject", "", "Required: token subject (operator or service name)")
	role := flag.String("role", "operator", "Token role claim")
	flag.Parse()

	if strings.TrimSpace(*subject) == "" {
		fmt.Fprintln(os.Stderr, "--subject is required")
		os.Exit(1)
	}

	token, err := utils.JwtGenerate(*subject, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
