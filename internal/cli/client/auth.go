package client

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// AuthCmd creates the auth parent command
func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the identity sent to the API",
		Long:  "Login, logout, and check which user ID the docqa CLI acts as",
	}

	cmd.AddCommand(AuthLoginCmd())
	cmd.AddCommand(AuthLogoutCmd())
	cmd.AddCommand(AuthStatusCmd())

	return cmd
}

// AuthLoginCmd creates the auth login command
func AuthLoginCmd() *cobra.Command {
	var userID string
	var apiURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a user ID",
		Long:  "Store user ID and API URL in global config (~/.config/docqa/config.json)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogin(cmd.InOrStdin(), cmd.OutOrStdout(), userID, apiURL)
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "User ID")
	cmd.Flags().StringVar(&apiURL, "url", defaultAPIURL, "API URL")

	return cmd
}

// AuthLogoutCmd creates the auth logout command
func AuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored identity",
		Long:  "Remove stored identity from global config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return fmt.Errorf("failed to logout: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Successfully logged out")
			return nil
		},
	}
}

// AuthStatusCmd creates the auth status command
func AuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active identity",
		Long:  "Display where the user ID comes from and which API it is sent to",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			flagUserID, _ := cmd.Flags().GetString("user")
			flagURL, _ := cmd.Flags().GetString("api-url")

			source, userID, apiURL, err := ResolveIdentity(flagUserID, flagURL)
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), source, userID, apiURL, outputJSON)
		},
	}
}

func runAuthLogin(in io.Reader, out io.Writer, userID, apiURL string) error {
	if userID == "" {
		fmt.Fprint(out, "Enter user ID: ")
		input, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && input == "" {
			return fmt.Errorf("failed to read user ID: %w", err)
		}
		userID = strings.TrimSpace(input)
	}

	if userID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	config := &GlobalConfig{
		UserID: userID,
		APIURL: apiURL,
	}

	if err := SaveGlobalConfig(config); err != nil {
		return fmt.Errorf("failed to save identity: %w", err)
	}

	fmt.Fprintln(out, "Successfully logged in")
	return nil
}

func printStatus(w io.Writer, source CredentialSource, userID, apiURL string, outputJSON bool) error {
	if outputJSON {
		status := map[string]interface{}{
			"authenticated": source != SourceNone,
			"source":        string(source),
			"api_url":       apiURL,
		}
		if source != SourceNone {
			status["user_id"] = userID
		}
		return writeJSON(w, status)
	}

	if source == SourceNone {
		fmt.Fprintln(w, "No user ID configured")
		fmt.Fprintln(w, "Run 'docqa auth login' to set one")
		return nil
	}

	fmt.Fprintf(w, "User ID: %s\n", userID)
	fmt.Fprintf(w, "Source: %s\n", source)
	fmt.Fprintf(w, "API URL: %s\n", apiURL)
	return nil
}
