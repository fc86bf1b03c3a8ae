package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pricebot/internal/middleware"
	"pricebot/internal/service"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and inspect API access tokens",
	}

	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign an access token with JWT_SECRET",
		Run:   runTokenIssue,
	}
	issue.Flags().StringP("user", "u", "operator", "User id to embed")
	issue.Flags().StringP("role", "r", middleware.DefaultRole, "Role to embed (user or admin)")
	issue.Flags().Duration("ttl", 0, "Token lifetime (default: $JWT_ACCESS_EXPIRY minutes)")

	inspect := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Validate a token and print its claims",
		Args:  cobra.ExactArgs(1),
		Run:   runTokenInspect,
	}

	cmd.AddCommand(issue, inspect)
	RootCmd.AddCommand(cmd)
}

func tokenService(ttl time.Duration) *service.TokenService {
	cfg := loadConfig()
	if cfg.JWT.Secret == "" {
		exitErr("token", errors.New("JWT_SECRET is not set"))
	}
	if ttl <= 0 {
		ttl = time.Duration(cfg.JWT.AccessExpiry) * time.Minute
	}
	return service.NewTokenService(cfg.JWT.Secret, ttl)
}

func runTokenIssue(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	role, _ := cmd.Flags().GetString("role")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	token, err := tokenService(ttl).Issue(user, role)
	if err != nil {
		exitErr("issue token", err)
	}
	fmt.Println(token)
}

func runTokenInspect(cmd *cobra.Command, args []string) {
	claims, err := tokenService(0).Validate(args[0])
	if err != nil {
		exitErr("inspect token", err)
	}

	b, _ := json.MarshalIndent(claims, "", "  ")
	fmt.Println(string(b))
}
