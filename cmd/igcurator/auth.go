package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igcurator/pkg/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Instagram session credentials",
	Long: `Manage stored Instagram session credentials.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Never share your credentials or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store session credentials securely",
	Long: `Store Instagram session credentials in the system keychain or
encrypted file.

You will be prompted for:
  - Instagram username (if not provided)
  - sessionid cookie value
  - csrftoken cookie value
  - ds_user_id cookie value
  - User agent (optional)

To get these values, log into Instagram in your browser, open Developer
Tools, and copy the cookie values under Application > Cookies.`,
	Example: `  igcurator auth login
  igcurator auth login myusername`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:     "logout <username>",
	Short:   "Remove stored credentials",
	Args:    cobra.ExactArgs(1),
	Example: `  igcurator auth logout myusername`,
	RunE:    runLogout,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Long:  `List all stored accounts with credential values masked.`,
	RunE:  runAuthList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(authListCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	var user string
	if len(args) > 0 {
		user = args[0]
	}
	if user == "" {
		fmt.Print("Instagram username: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		user = strings.TrimSpace(input)
	}
	if user == "" {
		return fmt.Errorf("username is required")
	}

	if existing, _ := manager.Retrieve(user); existing != nil {
		fmt.Printf("Account %q already exists. Update credentials? (y/N): ", user)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Println("Enter your cookie values (hidden as you type):")

	sessionID, err := promptSecret("sessionid: ")
	if err != nil {
		return err
	}
	csrfToken, err := promptSecret("csrftoken: ")
	if err != nil {
		return err
	}
	dsUserID, err := promptSecret("ds_user_id: ")
	if err != nil {
		return err
	}

	fmt.Print("User agent (press Enter for default): ")
	userAgent, _ := reader.ReadString('\n')
	userAgent = strings.TrimSpace(userAgent)

	account := &auth.Account{
		Username:  user,
		SessionID: sessionID,
		CSRFToken: csrfToken,
		DSUserID:  dsUserID,
		UserAgent: userAgent,
	}
	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	fmt.Printf("Credentials stored for %q.\n", user)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("Credentials removed for %q.\n", args[0])
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Println("No stored accounts. Run 'igcurator auth login' to add one.")
		return nil
	}

	for _, account := range accounts {
		clean := auth.Sanitize(account)
		fmt.Printf("%-24s sessionid=%s csrftoken=%s (updated %s)\n",
			clean.Username, clean.SessionID, clean.CSRFToken,
			clean.LastModified.Format("2006-01-02 15:04"))
	}
	return nil
}

func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	value, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(value)), nil
}
