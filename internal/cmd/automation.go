package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/echostash/echostash-automation/internal/api"
	errwrap "github.com/echostash/echostash-automation/internal/errors"
	"github.com/echostash/echostash-automation/internal/observability"
	"github.com/echostash/echostash-automation/internal/output"
	"github.com/echostash/echostash-automation/internal/testkit"
)

var (
	automationUserID string
	automationEmail  string
	automationName   string
)

var automationCmd = &cobra.Command{
	Use:   "automation",
	Short: "Call the backend's automation cheat endpoints",
	Long: `Call the /automation endpoints that exist only when the backend runs with
AUTOMATION_CHEATS_ENABLED (stage and local). Identify the user with
--user-id, or with --email to sign in through automation login first.`,
}

var automationLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in as an email without OAuth and print the tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		email := strings.TrimSpace(automationEmail)
		if email == "" {
			return errwrap.NewInvalidInputError("--email is required")
		}
		env, err := automationEnv(ctx)
		if err != nil {
			return err
		}
		client, err := env.Client()
		if err != nil {
			return err
		}
		resp, err := client.Automation.Login(ctx, email, automationName)
		if err != nil {
			return errwrap.WrapAPI(ctx, err, "automation login failed")
		}
		client.Transport.SetToken(resp.AccessToken)
		me, err := client.Auth.Me(ctx)
		if err != nil {
			return errwrap.WrapAPI(ctx, err, "failed to read profile")
		}

		result := struct {
			UserID       api.ID `json:"userId"`
			Email        string `json:"email"`
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
			ExpiresIn    int64  `json:"expiresIn"`
			IsFirstLogin bool   `json:"isFirstLogin"`
		}{me.ID, me.Email, resp.AccessToken, resp.RefreshToken, resp.ExpiresIn, resp.IsFirstLogin}

		t := output.Table{Title: "Automation login", Headers: []string{"Field", "Value"}}
		t.AddRow("User", fmt.Sprintf("%s (%s)", result.Email, result.UserID))
		t.AddRow("First login", result.IsFirstLogin)
		t.AddRow("Access token", result.AccessToken)
		t.AddRow("Expires in", fmt.Sprintf("%ds", result.ExpiresIn))
		return writeResult(result, t)
	},
}

var automationSetPlanCmd = &cobra.Command{
	Use:   "set-plan <plan>",
	Short: "Force a user's plan, bypassing the payment provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, userID, err := automationTarget(ctx)
		if err != nil {
			return err
		}
		resp, err := client.Automation.SetPlan(ctx, userID, strings.TrimSpace(args[0]))
		if err != nil {
			return errwrap.WrapAPI(ctx, err, "set plan failed")
		}
		observability.CLILogger.Info("Plan updated",
			zap.String("user_id", resp.UserID.String()),
			zap.String("plan", resp.PlanName))
		t := output.Table{Title: "Set plan", Headers: []string{"User", "Plan", "Status"}}
		t.AddRow(resp.UserID, resp.PlanName, resp.Status)
		return writeResult(resp, t)
	},
}

var automationResetQuotasCmd = &cobra.Command{
	Use:   "reset-quotas",
	Short: "Clear a user's usage counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, userID, err := automationTarget(ctx)
		if err != nil {
			return err
		}
		resp, err := client.Automation.ResetQuotas(ctx, userID)
		if err != nil {
			return errwrap.WrapAPI(ctx, err, "reset quotas failed")
		}
		t := output.Table{Title: "Reset quotas", Headers: []string{"User", "Keys deleted"}}
		t.AddRow(resp.UserID, resp.KeysDeleted)
		return writeResult(resp, t)
	},
}

var automationDeleteUserCmd = &cobra.Command{
	Use:   "delete-user",
	Short: "Delete a user with their billing and usage data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, userID, err := automationTarget(ctx)
		if err != nil {
			return err
		}
		resp, err := client.Automation.DeleteUser(ctx, userID)
		if err != nil {
			return errwrap.WrapAPI(ctx, err, "delete user failed")
		}
		observability.CLILogger.Info("User deleted", zap.String("user_id", resp.UserID.String()))
		t := output.Table{Title: "Delete user", Headers: []string{"User", "Deleted"}}
		t.AddRow(resp.UserID, resp.Deleted)
		return writeResult(resp, t)
	},
}

func automationEnv(ctx context.Context) (*testkit.Env, error) {
	cfg, env, err := loadEnv(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.Automation.Enabled {
		observability.CLILogger.Warn("AUTOMATION_CHEATS_ENABLED is not set; the backend may not expose /automation",
			zap.String("env", cfg.Env))
		env.Automation = true
	}
	return env, nil
}

// automationTarget resolves the user id from --user-id or by signing in
// with --email.
func automationTarget(ctx context.Context) (*api.Client, api.ID, error) {
	env, err := automationEnv(ctx)
	if err != nil {
		return nil, "", err
	}
	client, err := env.Client()
	if err != nil {
		return nil, "", err
	}

	if id := strings.TrimSpace(automationUserID); id != "" {
		return client, api.ID(id), nil
	}
	email := strings.TrimSpace(automationEmail)
	if email == "" {
		return nil, "", errwrap.NewInvalidInputError("--user-id or --email is required")
	}

	authed, err := env.AutomationLoginClient(ctx, email, automationName)
	if err != nil {
		return nil, "", errwrap.WrapAPI(ctx, err, "automation login failed")
	}
	me, err := authed.Auth.Me(ctx)
	if err != nil {
		return nil, "", errwrap.WrapAPI(ctx, err, "failed to read profile")
	}
	observability.CLILogger.Debug("Resolved user", zap.String("email", email), zap.String("user_id", me.ID.String()))
	return client, me.ID, nil
}

func init() {
	flags := automationCmd.PersistentFlags()
	flags.StringVar(&automationUserID, "user-id", "", "target user id")
	flags.StringVar(&automationEmail, "email", "", "target user email (signs in through automation login)")
	flags.StringVar(&automationName, "name", "", "display name used when automation login creates the user")

	automationCmd.AddCommand(automationLoginCmd, automationSetPlanCmd, automationResetQuotasCmd, automationDeleteUserCmd)
	rootCmd.AddCommand(automationCmd)
}
