package admintool

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/GouveiaZx/vendeuonline-sub004/cmd/providers"
	"github.com/GouveiaZx/vendeuonline-sub004/pkg/token"
	"github.com/GouveiaZx/vendeuonline-sub004/pkg/users"
)

var userCmd = cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

func init() {
	Cmd.AddCommand(&userCmd)
}

var userCreateCmd = cobra.Command{
	Use:   "create <email>",
	Short: "Create user account",
	Args:  cobra.ExactArgs(1),
	Run:   providers.NewCmd(runUserCreate),
}

func init() {
	flags := userCreateCmd.Flags()
	flags.String("name", "", "Display name")
	flags.String("role", "BUYER", "Account role (BUYER, SELLER or ADMIN)")
	flags.String("password", "", "Initial password")

	userCmd.AddCommand(&userCreateCmd)
}

func runUserCreate(
	cmd *cobra.Command,
	args []string,
	store *users.Store,
) {
	flags := cmd.Flags()
	name, err := flags.GetString("name")
	if err != nil {
		panic(err)
	}
	roleStr, err := flags.GetString("role")
	if err != nil {
		panic(err)
	}
	password, err := flags.GetString("password")
	if err != nil {
		panic(err)
	}
	role, err := users.ParseRole(roleStr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Invalid role:", roleStr)
		os.Exit(1)
	}
	user := &users.User{
		ID:    uuid.NewString(),
		Email: args[0],
		Name:  name,
		Role:  role,
	}
	if password == "" {
		// No login until a password reset.
		password = uuid.NewString()
	}
	if err := user.SetPassword(password); err != nil {
		panic(err)
	}
	if err := store.Create(context.Background(), user); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to create user:", err)
		os.Exit(1)
	}
	fmt.Println(user.ID)
}

var userTokenCmd = cobra.Command{
	Use:   "token",
	Short: "Manage user tokens",
}

func init() {
	userCmd.AddCommand(&userTokenCmd)
}

var userTokenCreateCmd = cobra.Command{
	Use:   "create <user-id>",
	Short: "Create user token",
	Args:  cobra.ExactArgs(1),
	Run:   providers.NewCmd(runUserTokenCreate),
}

func init() {
	userTokenCmd.AddCommand(&userTokenCreateCmd)
}

func runUserTokenCreate(
	args []string,
	store *users.Store,
	issuer *token.Issuer,
) {
	user, err := store.FindByID(context.Background(), args[0])
	if errors.Is(err, users.ErrNotFound) {
		fmt.Fprintln(os.Stderr, "Unknown user:", args[0])
		os.Exit(1)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	raw, err := issuer.Issue(user.ID, string(user.Role))
	if err != nil {
		panic(err)
	}
	fmt.Println(raw)
}

var userTokenVerifyCmd = cobra.Command{
	Use:   "verify <token>",
	Short: "Verify user token",
	Args:  cobra.ExactArgs(1),
	Run:   providers.NewCmd(runUserTokenVerify),
}

func init() {
	userTokenCmd.AddCommand(&userTokenVerifyCmd)
}

func runUserTokenVerify(
	args []string,
	store *users.Store,
	issuer *token.Issuer,
) {
	claims, err := issuer.Verify(args[0])
	if err != nil {
		fmt.Println("REJECT: Invalid token")
		return
	}
	user, err := store.FindByID(context.Background(), claims.Subject)
	if errors.Is(err, users.ErrNotFound) {
		fmt.Println("REJECT: Unknown or deactivated user")
		return
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("OK:", user.ID, user.Email, user.Role)
}
