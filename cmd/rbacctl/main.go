package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gtaroom/GTA-GAME-sub003/internal/infra/app"
	"github.com/gtaroom/GTA-GAME-sub003/internal/infra/config"
	kafkainfra "github.com/gtaroom/GTA-GAME-sub003/internal/infra/kafka"
	"github.com/gtaroom/GTA-GAME-sub003/internal/infra/logger"
	postgresrepo "github.com/gtaroom/GTA-GAME-sub003/internal/repository/postgres"
)

// cli carries the lazily opened store shared by every subcommand.
type cli struct {
	out      string
	actor    string
	cfg      *config.AppConfig
	log      *zap.Logger
	store    *postgresrepo.Store
	services *app.Services
}

func (c *cli) open(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	// rbacctl never migrates; the API owns the schema.
	cfg.Postgres.AutoMigrate = false

	store, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.log = log
	c.store = store
	c.services = app.NewServices(cfg, store.Repositories, nil, kafkainfra.NewStubPublisher(log), nil, log)
	return nil
}

func (c *cli) close() {
	if c.store != nil {
		c.store.Close()
	}
	if c.log != nil {
		_ = c.log.Sync()
	}
}

func (c *cli) print(w io.Writer, v any, text func(io.Writer)) error {
	if c.out == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func main() {
	_ = godotenv.Load()

	c := &cli{out: envOr("RBACCTL_OUT", "text"), actor: envOr("RBACCTL_ACTOR", "rbacctl")}

	root := &cobra.Command{
		Use:           "rbacctl",
		Short:         "Operator CLI for roles and role assignments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.out != "json" && c.out != "text" {
				return fmt.Errorf("--out must be json or text")
			}
			return c.open(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			c.close()
		},
	}
	root.PersistentFlags().StringVar(&c.out, "out", c.out, "Output format: json|text (env RBACCTL_OUT)")
	root.PersistentFlags().StringVar(&c.actor, "actor", c.actor, "Actor id recorded on writes (env RBACCTL_ACTOR)")

	root.AddCommand(rolesCommand(c), usersCommand(c))

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		c.close()
		os.Exit(1)
	}
}

func rolesCommand(c *cli) *cobra.Command {
	rolesCmd := &cobra.Command{Use: "roles", Short: "Inspect built-in and custom roles"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List built-in roles and active custom roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			custom, err := c.services.Roles.ListRoles(cmd.Context())
			if err != nil {
				return err
			}
			builtin := c.services.Roles.Builtin().Names()

			payload := map[string]any{"builtin": builtin, "custom": custom}
			return c.print(cmd.OutOrStdout(), payload, func(w io.Writer) {
				for _, name := range builtin {
					fmt.Fprintf(w, "%-24s builtin\n", name)
				}
				for _, role := range custom {
					fmt.Fprintf(w, "%-24s custom  %s  %d grants\n", role.Name, role.ID, len(role.Permissions.Granted()))
				}
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show the effective permissions of a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			effective, err := c.services.Roles.ResolvePermissions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), effective, func(w io.Writer) {
				fmt.Fprintf(w, "role:   %s\nsource: %s\n", effective.Role, effective.Source)
				keys := make([]string, 0, len(effective.Permissions))
				for key := range effective.Permissions {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				for _, key := range keys {
					fmt.Fprintf(w, "  %-24s %t\n", key, effective.Permissions[key])
				}
			})
		},
	}

	rolesCmd.AddCommand(listCmd, showCmd)
	return rolesCmd
}

func usersCommand(c *cli) *cobra.Command {
	usersCmd := &cobra.Command{Use: "users", Short: "Assign roles and list role holders"}

	assignCmd := &cobra.Command{
		Use:   "assign <user-id>... <role>",
		Short: "Assign a role to one or more users",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role := args[len(args)-1]
			userIDs := args[:len(args)-1]

			if len(userIDs) == 1 {
				user, err := c.services.Assignments.AssignRole(cmd.Context(), c.actor, userIDs[0], role)
				if err != nil {
					return err
				}
				return c.print(cmd.OutOrStdout(), user, func(w io.Writer) {
					fmt.Fprintf(w, "%s -> %s\n", user.ID, user.Role)
				})
			}

			result, err := c.services.Assignments.BulkAssignRole(cmd.Context(), c.actor, userIDs, role)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "%s: modified %d of %d\n", result.Role, result.ModifiedCount, result.TotalRequested)
			})
		},
	}

	var page, limit int
	byRoleCmd := &cobra.Command{
		Use:   "by-role <role>",
		Short: "List users holding a role (emails are masked)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := c.services.Assignments.ListUsersByRole(cmd.Context(), args[0], page, limit)
			if err != nil {
				return err
			}
			for i := range result.Users {
				result.Users[i].Email = logger.MaskEmail(result.Users[i].Email)
			}
			return c.print(cmd.OutOrStdout(), result, func(w io.Writer) {
				for _, user := range result.Users {
					fmt.Fprintf(w, "%-36s %-20s %s\n", user.ID, user.Username, user.Email)
				}
				fmt.Fprintf(w, "page %d/%d, %d total\n", result.Page, result.TotalPages, result.Total)
			})
		},
	}
	byRoleCmd.Flags().IntVar(&page, "page", 1, "Page number")
	byRoleCmd.Flags().IntVar(&limit, "limit", 20, "Page size (max 100)")

	usersCmd.AddCommand(assignCmd, byRoleCmd)
	return usersCmd
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
