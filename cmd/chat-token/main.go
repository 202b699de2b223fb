// Command chat-token mints HS256 bearer tokens accepted by the chat server.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"chat-graphql/internal/middleware"

	"github.com/spf13/pflag"
)

const secretEnv = "CHATQL_AUTH_HS256_SECRET"

func main() {
	if err := run(os.Args[1:], os.Getenv, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(args []string, getenv func(string) string, out io.Writer) error {
	fs := pflag.NewFlagSet("chat-token", pflag.ContinueOnError)
	secret := fs.String("secret", "", "HS256 shared secret (default $"+secretEnv+")")
	secretFile := fs.String("secret-file", "", "Read the HS256 secret from a file")
	userID := fs.Int64("user-id", 0, "Numeric user id claim")
	subject := fs.String("subject", "", "Token subject (defaults to the user id)")
	admin := fs.Bool("admin", false, "Grant unrestricted chat visibility")
	issuer := fs.String("issuer", "", "Token issuer (optional)")
	audience := fs.String("audience", "", "Token audience (comma-separated, optional)")
	expires := fs.Duration("expires", time.Hour, "Token lifetime (e.g. 1h)")
	userIDClaim := fs.String("user-id-claim", "user_id", "Claim name for the user id")
	adminClaim := fs.String("admin-claim", "admin", "Claim name for the admin flag")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := resolveSecret(*secret, *secretFile, getenv)
	if err != nil {
		return err
	}
	if *userID <= 0 {
		return errors.New("--user-id must be a positive integer")
	}

	token, err := middleware.MintHS256([]byte(key), middleware.TokenClaims{
		Subject:     *subject,
		UserID:      *userID,
		Admin:       *admin,
		Issuer:      *issuer,
		Audience:    splitList(*audience),
		TTL:         *expires,
		UserIDClaim: *userIDClaim,
		AdminClaim:  *adminClaim,
	}, time.Now())
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, token)
	return err
}

func resolveSecret(flagValue, path string, getenv func(string) string) (string, error) {
	switch {
	case flagValue != "" && path != "":
		return "", errors.New("use only one of --secret and --secret-file")
	case flagValue != "":
		return flagValue, nil
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read secret file: %w", err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("secret file %s is empty", path)
		}
		return secret, nil
	}
	if secret := getenv(secretEnv); secret != "" {
		return secret, nil
	}
	return "", fmt.Errorf("no secret: pass --secret, --secret-file or set %s", secretEnv)
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
