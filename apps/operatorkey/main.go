package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnersync/internal/apikey"
	apikeydomain "github.com/smallbiznis/partnersync/internal/apikey/domain"
	"github.com/smallbiznis/partnersync/internal/audit"
	auditdomain "github.com/smallbiznis/partnersync/internal/audit/domain"
	"github.com/smallbiznis/partnersync/internal/authorization"
	"github.com/smallbiznis/partnersync/internal/clock"
	"github.com/smallbiznis/partnersync/internal/config"
	"github.com/smallbiznis/partnersync/internal/migration"
	"github.com/smallbiznis/partnersync/internal/observability"
	obscontext "github.com/smallbiznis/partnersync/internal/observability/context"
	"github.com/smallbiznis/partnersync/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const commandTimeout = 30 * time.Second

func main() {
	root := &cobra.Command{
		Use:           "operatorkey",
		Short:         "Manage operator API keys for the internal HTTP routes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(createCmd(), listCmd(), revokeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func createCmd() *cobra.Command {
	var name, role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a key and print it once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc apikeydomain.Service, auditSvc auditdomain.Service) error {
				secret, err := svc.Create(ctx, apikeydomain.CreateRequest{Name: name, Role: role})
				if err != nil {
					return err
				}
				if err := auditSvc.Record(ctx, auditdomain.ActionAPIKeyCreate, auditdomain.TargetAPIKey, secret.KeyID, map[string]any{
					"name": name,
					"role": secret.Role,
				}); err != nil {
					fmt.Fprintln(os.Stderr, "warning: audit entry not written:", err)
				}
				return printJSON(secret)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "human readable key name")
	cmd.Flags().StringVar(&role, "role", authorization.RoleOperator, "admin, operator, provisioner or viewer")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List keys without their secrets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc apikeydomain.Service, _ auditdomain.Service) error {
				keys, err := svc.List(ctx)
				if err != nil {
					return err
				}
				return printJSON(keys)
			})
		},
	}
}

func revokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke KEY_ID",
		Short: "Deactivate a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc apikeydomain.Service, auditSvc auditdomain.Service) error {
				if err := svc.Revoke(ctx, args[0]); err != nil {
					return err
				}
				if err := auditSvc.Record(ctx, auditdomain.ActionAPIKeyRevoke, auditdomain.TargetAPIKey, args[0], nil); err != nil {
					fmt.Fprintln(os.Stderr, "warning: audit entry not written:", err)
				}
				fmt.Printf("revoked %s\n", args[0])
				return nil
			})
		},
	}
}

func withService(parent context.Context, fn func(context.Context, apikeydomain.Service, auditdomain.Service) error) error {
	if parent == nil {
		parent = context.Background()
	}
	var (
		svc      apikeydomain.Service
		auditSvc auditdomain.Service
	)
	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		apikey.Module,
		audit.Module,
		fx.Populate(&svc, &auditSvc),
	)

	ctx, cancel := context.WithTimeout(parent, commandTimeout)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = app.Stop(context.Background()) }()

	ctx = obscontext.WithActor(ctx, obscontext.ActorTypeSystem, "operatorkey")
	return fn(ctx, svc, auditSvc)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(3)
	if err != nil {
		panic(err)
	}
	return node
}
