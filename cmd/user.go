// cmd/user.go
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ihor-shndr/mychat/internal/auth"
	"github.com/ihor-shndr/mychat/internal/db"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
	Long:  `Commands for managing chat users.`,
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	Long: `Create a new user with the specified username.

The password is prompted for when --password is not given.

Examples:
  # Create a new user, prompting for the password
  mychat user create --username alice

  # Create a user with a custom database path
  mychat user create --username alice --password secret123 --db mydata.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		dbPath, _ := cmd.Flags().GetString("db")

		if username == "" {
			return fmt.Errorf("--username is required")
		}
		if password == "" {
			var err error
			password, err = promptPassword("Password: ")
			if err != nil {
				return err
			}
		}

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database not found at %s. Run 'mychat init' first", dbPath)
		}

		database, err := db.New(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		service := auth.NewService(database, "not-needed-for-create")
		user, err := service.CreateUser(username, password)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		fmt.Printf("Created user: %s (ID: %d)\n", user.Username, user.ID)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("db")

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database not found at %s. Run 'mychat init' first", dbPath)
		}

		database, err := db.New(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		rows, err := database.Query(`
			SELECT id, username, created_at, COALESCE(last_seen_at, '')
			FROM users ORDER BY id
		`)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		defer rows.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tCREATED\tLAST SEEN")
		for rows.Next() {
			var id int64
			var username, createdAt, lastSeenAt string
			if err := rows.Scan(&id, &username, &createdAt, &lastSeenAt); err != nil {
				return err
			}
			if lastSeenAt == "" {
				lastSeenAt = "-"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", id, username, createdAt, lastSeenAt)
		}
		return w.Flush()
	},
}

// promptPassword reads a password without echo when stdin is a
// terminal, falling back to a plain line read for piped input.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(password), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)

	userCreateCmd.Flags().String("username", "", "Username for the new user")
	userCreateCmd.Flags().String("password", "", "Password (prompted when omitted)")
	userCreateCmd.Flags().String("db", "mychat.db", "Path to database file")
	userListCmd.Flags().String("db", "mychat.db", "Path to database file")
}
