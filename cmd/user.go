/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expensetracker/apiserver/internal/server"
	"github.com/spf13/cobra"
)

var (
	userEmail    string
	userPassword string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a user directly against the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(userEmail) == "" {
			return errors.New("--email is required")
		}

		password := userPassword
		if password == "" {
			var err error
			password, err = readPassword(cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}

		if err := cfg.Validate(); err != nil {
			return err
		}
		svc, err := server.NewServices(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer svc.Close()

		user, err := svc.Auth.Register(cmd.Context(), userEmail, password)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "User %s created with ID %d\n", user.Email, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "email address")
	userAddCmd.Flags().StringVar(&userPassword, "password", "", "password (prompted when omitted)")
}
