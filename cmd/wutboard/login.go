package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/kamilpajak/wutboard/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginUsername string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the WUT backend",
	Long: `Exchange a username and password for an access token and store the session
in ~/.wutboard/session.json. The password is read from WUT_PASSWORD when set,
otherwise it is prompted for.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		if err := a.store.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Logged out.")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username (prompted when empty)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	username := strings.TrimSpace(loginUsername)
	if username == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Username: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	p := startProgress(os.Stderr, "Logging in...")
	s, err := a.auth.Login(cmd.Context(), username, password)
	p.Stop()
	if errors.Is(err, session.ErrAuthNotConfigured) {
		return fmt.Errorf("%w: set auth.token_url in the config or WUT_AUTH_TOKEN_URL", err)
	}
	if err != nil {
		return err
	}

	if err := a.store.Set(s); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	green := color.New(color.FgGreen)
	_, _ = green.Fprintf(cmd.ErrOrStderr(), "Logged in as %s\n", displayName(s))
	return nil
}

func readPassword(cmd *cobra.Command) (string, error) {
	if password := os.Getenv("WUT_PASSWORD"); password != "" {
		return password, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal to prompt for a password; set WUT_PASSWORD")
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

func displayName(s *session.Session) string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Email != "":
		return s.Email
	default:
		return s.UserID
	}
}
