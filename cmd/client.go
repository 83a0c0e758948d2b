/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/expensetracker/apiserver/internal/client"
	"github.com/expensetracker/apiserver/types"
	"github.com/spf13/cobra"
)

const defaultAPIURL = "http://localhost:5000"

var (
	apiURL          string
	tokenFile       string
	clientEmail     string
	clientPassword  string
	expenseAmount   float64
	expenseCategory string
	reportOut       string
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Use the API as a signed-in user",
	Long: `Client screens for the expense tracker API. The session token is kept
in the user's config directory between runs.

	expensetracker client register --email you@example.com
	expensetracker client login --email you@example.com
	expensetracker client dashboard`,
}

var clientRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		password, err := promptedPassword(cmd)
		if err != nil {
			return err
		}
		msg, err := c.Register(cmd.Context(), clientEmail, password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}

var clientLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and keep the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		password, err := promptedPassword(cmd)
		if err != nil {
			return err
		}
		if err := c.Login(cmd.Context(), clientEmail, password); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged in")
		return nil
	},
}

var clientLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := c.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

var clientMeCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		me, err := c.Me(cmd.Context())
		if err != nil {
			return sessionError(c, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", me.ID, me.Email)
		return nil
	},
}

var clientDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the total and every expense",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		expenses, err := c.ListExpenses(cmd.Context())
		if err != nil {
			return sessionError(c, err)
		}

		var total float64
		for _, e := range expenses {
			total += e.Amount
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Total Expense: %.2f\n\n", total)
		if len(expenses) == 0 {
			fmt.Fprintln(out, "No expenses yet.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tDATE\tCATEGORY\tAMOUNT")
		for _, e := range expenses {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\n", e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Category, e.Amount)
		}
		return tw.Flush()
	},
}

var clientAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an expense",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("amount") || strings.TrimSpace(expenseCategory) == "" {
			return errors.New("--amount and --category are required")
		}
		if !types.IsFiniteAmount(expenseAmount) {
			return errors.New("--amount must be a finite number")
		}
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		id, err := c.AddExpense(cmd.Context(), expenseAmount, expenseCategory)
		if err != nil {
			return sessionError(c, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Expense added (id %d)\n", id)
		return nil
	},
}

var clientDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an expense",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid expense id %q", args[0])
		}
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := c.DeleteExpense(cmd.Context(), id); err != nil {
			return sessionError(c, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Expense deleted")
		return nil
	},
}

var clientReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Download a PDF statement",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newAPIClient()
		if err != nil {
			return err
		}
		pdf, reportID, err := c.Report(cmd.Context())
		if err != nil {
			return sessionError(c, err)
		}
		if err := os.WriteFile(reportOut, pdf, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", reportOut, len(pdf))
		if reportID != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Report ID: %s\n", reportID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("EXPENSETRACKER_API_URL", defaultAPIURL), "API base URL")
	clientCmd.PersistentFlags().StringVar(&tokenFile, "token-file", "", "session token file (default: user config dir)")

	for _, c := range []*cobra.Command{clientRegisterCmd, clientLoginCmd} {
		c.Flags().StringVar(&clientEmail, "email", "", "email address")
		c.Flags().StringVar(&clientPassword, "password", "", "password (prompted when omitted)")
		_ = c.MarkFlagRequired("email")
	}
	clientAddCmd.Flags().Float64Var(&expenseAmount, "amount", 0, "amount spent")
	clientAddCmd.Flags().StringVar(&expenseCategory, "category", "", "category, e.g. Food or Travel")
	clientReportCmd.Flags().StringVarP(&reportOut, "out", "o", "expense-statement.pdf", "output file")

	clientCmd.AddCommand(
		clientRegisterCmd,
		clientLoginCmd,
		clientLogoutCmd,
		clientMeCmd,
		clientDashboardCmd,
		clientAddCmd,
		clientDeleteCmd,
		clientReportCmd,
	)
}

func newAPIClient() (*client.Client, error) {
	path := tokenFile
	if path == "" {
		var err error
		if path, err = client.DefaultTokenPath(); err != nil {
			return nil, err
		}
	}
	session, err := client.NewSession(client.FileTokenStore{Path: path})
	if err != nil {
		return nil, err
	}
	return client.New(apiURL, session, nil)
}

func promptedPassword(cmd *cobra.Command) (string, error) {
	if clientPassword != "" {
		return clientPassword, nil
	}
	return readPassword(cmd.InOrStdin(), cmd.OutOrStdout())
}

// sessionError drops a rejected token so the next run asks for a login.
func sessionError(c *client.Client, err error) error {
	if errors.Is(err, client.ErrNotLoggedIn) {
		return errors.New("not logged in: run `expensetracker client login`")
	}
	if client.IsUnauthorized(err) {
		_ = c.Logout()
		return fmt.Errorf("session rejected (%w): run `expensetracker client login`", err)
	}
	return err
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
