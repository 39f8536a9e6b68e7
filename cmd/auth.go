package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/marcus/soilnet/internal/config"
	"github.com/marcus/soilnet/internal/output"
	"github.com/spf13/cobra"
)

var loginEmail string

var loginCmd = &cobra.Command{
	Use:     "login",
	Short:   "Log in to the soilnet server",
	GroupID: "account",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient(false)
		if err != nil {
			return err
		}

		email := strings.TrimSpace(loginEmail)
		password := os.Getenv("SOILNET_PASSWORD")
		if email == "" || password == "" {
			if !stdinIsTerminal() {
				return errors.New("--email and SOILNET_PASSWORD are required when not running in a terminal")
			}
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("Email").Value(&email),
				huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&password),
			)).WithTheme(huh.ThemeDracula())
			if err := form.Run(); err != nil {
				return err
			}
		}

		auth, err := c.Login(cmdContext(cmd), strings.TrimSpace(email), password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if err := config.SetAuth(configDir, config.Credentials{
			APIKey:    auth.APIKey,
			UserID:    auth.UserID,
			Email:     auth.Email,
			Role:      auth.Role,
			ExpiresAt: auth.ExpiresAt,
		}); err != nil {
			return fmt.Errorf("save credentials: %w", err)
		}

		if jsonOut {
			return output.JSON(map[string]string{"user_id": auth.UserID, "email": auth.Email, "role": auth.Role})
		}
		output.Success("Logged in as %s %s", auth.Email, output.FormatRole(auth.Role))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	Short:   "Forget the stored credentials",
	GroupID: "account",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ClearAuth(configDir); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Short:   "Show the logged in account",
	GroupID: "account",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cfg, err := newClient(true)
		if err != nil {
			return err
		}
		me, err := c.Me(cmdContext(cmd))
		if err != nil {
			return err
		}
		if jsonOut {
			return output.JSON(me)
		}

		keyPrefix := cfg.Auth.APIKey
		if len(keyPrefix) > 12 {
			keyPrefix = keyPrefix[:12] + "..."
		}
		fmt.Printf("Email:  %s %s\n", me.Email, output.FormatRole(me.Role))
		if me.Profile != nil {
			fmt.Printf("Name:   %s\n", me.Profile.FullName)
			if me.Profile.Phone != "" {
				fmt.Printf("Phone:  %s\n", me.Profile.Phone)
			}
			if me.Profile.FinalizedAt == nil {
				output.Warning("registration is not finalized")
			}
		}
		fmt.Printf("Server: %s\n", cfg.Server())
		fmt.Printf("Key:    %s\n", keyPrefix)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
}
