package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/echostash/echostash-automation/internal/api"
	errwrap "github.com/echostash/echostash-automation/internal/errors"
	"github.com/echostash/echostash-automation/internal/fixtures"
	"github.com/echostash/echostash-automation/internal/observability"
	"github.com/echostash/echostash-automation/internal/output"
)

var keysName string

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage SDK API keys",
	Long: `Create, list and revoke API keys for the configured account.

Authenticates with ECHOSTASH_API_TOKEN when set, else with the test user's
password (TEST_USER_EMAIL / TEST_USER_PASSWORD).`,
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an API key and print the raw secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := accountClient(ctx)
		if err != nil {
			return err
		}
		name := strings.TrimSpace(keysName)
		if name == "" {
			name = fixtures.APIKeyData()
		}
		key, err := client.Keys.Create(ctx, name)
		if err != nil {
			return errwrap.WrapAPI(ctx, err, "failed to create API key")
		}
		observability.CLILogger.Info("API key created", zap.String("id", key.ID.String()), zap.String("name", key.Name))
		return writeResult(key, keysTable("API key created", []api.APIKey{key}, true))
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := accountClient(ctx)
		if err != nil {
			return err
		}
		keys, err := client.Keys.List(ctx)
		if err != nil {
			return errwrap.WrapAPI(ctx, err, "failed to list API keys")
		}
		if keys == nil {
			keys = []api.APIKey{}
		}
		return writeResult(keys, keysTable("API keys", keys, false))
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <id>...",
	Short: "Revoke API keys by id",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := accountClient(ctx)
		if err != nil {
			return err
		}
		for _, id := range args {
			if err := client.Keys.Revoke(ctx, api.ID(strings.TrimSpace(id))); err != nil {
				return errwrap.WrapAPI(ctx, err, fmt.Sprintf("failed to revoke API key %s", id))
			}
			observability.CLILogger.Info("API key revoked", zap.String("id", id))
		}
		return nil
	},
}

// accountClient authenticates as the configured account: a token or API key
// from config, else a password login with the test user.
func accountClient(ctx context.Context) (*api.Client, error) {
	cfg, env, err := loadEnv(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.API.Token) != "" || strings.TrimSpace(cfg.API.APIKey) != "" {
		return env.Client()
	}
	if env.User.Password == "" {
		return nil, errwrap.NewConfigInvalidError("no credentials: set ECHOSTASH_API_TOKEN or TEST_USER_PASSWORD")
	}
	client, err := env.LoginAndGetClient(ctx, "", "")
	if err != nil {
		return nil, errwrap.WrapAPI(ctx, err, "login failed")
	}
	return client, nil
}

func keysTable(title string, keys []api.APIKey, showSecret bool) output.Table {
	headers := []string{"ID", "Name", "Prefix", "Created", "Last used"}
	if showSecret {
		headers = append(headers, "Key")
	}
	t := output.Table{Title: title, Headers: headers, Footer: fmt.Sprintf("%d keys", len(keys))}
	for _, k := range keys {
		row := []any{k.ID, k.Name, k.Prefix, k.CreatedAt, k.LastUsedAt}
		if showSecret {
			row = append(row, k.Key)
		}
		t.AddRow(row...)
	}
	return t
}

func init() {
	keysCreateCmd.Flags().StringVar(&keysName, "name", "", "key name (default: generated)")
	keysCmd.AddCommand(keysCreateCmd, keysListCmd, keysRevokeCmd)
	rootCmd.AddCommand(keysCmd)
}
