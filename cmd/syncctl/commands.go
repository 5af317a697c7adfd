package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/erp/marketsync/internal/application/integration"
	"github.com/erp/marketsync/internal/bootstrap"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/order"
	"github.com/erp/marketsync/internal/infrastructure/auth"
	"github.com/erp/marketsync/internal/infrastructure/config"
	"github.com/erp/marketsync/internal/infrastructure/scheduler"
	"github.com/erp/marketsync/internal/interfaces/http/dto"
)

const timeLayout = "2006-01-02 15:04:05"

func tokenCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Manage operator API tokens"}

	var (
		operator string
		scopes   []string
		ttl      time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token for the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			issued, err := issueToken(cfg.JWT, operator, scopes, ttl)
			if err != nil {
				return err
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			return p.print(issued,
				table.Row{"Token ID", "Expires", "Access token"},
				[]table.Row{{issued.ID, issued.ExpiresAt.Format(timeLayout), issued.AccessToken}},
			)
		},
	}
	issue.Flags().StringVar(&operator, "operator", "", "operator name recorded in the token")
	issue.Flags().StringSliceVar(&scopes, "scope", nil, "restrict the token to a scope (repeatable: marketplace, fiscal, scheduler)")
	issue.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to jwt.token_expiration)")
	_ = issue.MarkFlagRequired("operator")

	cmd.AddCommand(issue)
	return cmd
}

func issueToken(cfg config.JWTConfig, operator string, scopes []string, ttl time.Duration) (*auth.IssuedToken, error) {
	if ttl > 0 {
		cfg.TokenExpiration = ttl
	}
	return auth.NewJWTService(cfg).GenerateToken(operator, scopes...)
}

func syncCmd(opts *rootOptions) *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull recent orders from the marketplaces",
		Long:  "Runs one sync pass. Without --marketplace every enabled marketplace is synced as the scheduled job would.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *bootstrap.Container) error {
				p, err := opts.printer(cmd)
				if err != nil {
					return err
				}
				if code == "" {
					run, err := c.Scheduler.RunOnce(ctx, integration.JobSyncOrders)
					if err != nil {
						return err
					}
					return printRuns(p, []*scheduler.Run{run})
				}

				mp, err := marketplace.ParseCode(code)
				if err != nil {
					return err
				}
				res, err := c.Syncer.SyncRecentOrders(ctx, mp)
				if err != nil {
					return err
				}
				return printSyncResults(p, []*integration.SyncResult{res})
			})
		},
	}
	cmd.Flags().StringVarP(&code, "marketplace", "m", "", "marketplace code (mercadolivre, shopee)")
	return cmd
}

func drainCmd(opts *rootOptions) *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Emit fiscal documents for pending jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *bootstrap.Container) error {
				res, err := c.Queue.Drain(ctx, batchSize)
				if err != nil {
					return err
				}
				p, err := opts.printer(cmd)
				if err != nil {
					return err
				}
				return p.print(res,
					table.Row{"Succeeded", "Failed", "Skipped", "Duration"},
					[]table.Row{{res.Succeeded, res.Failed, res.Skipped, res.Duration.Round(time.Millisecond)}},
				)
			})
		},
	}
	cmd.Flags().IntVarP(&batchSize, "batch-size", "n", integration.DefaultBatchSize,
		fmt.Sprintf("jobs to process, capped at %d", integration.MaxBatchSize))
	return cmd
}

func queueCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "queue", Short: "Inspect the fiscal job queue"}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Count pending, failing and processed jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *bootstrap.Container) error {
				stats, err := c.Queue.Stats(ctx)
				if err != nil {
					return err
				}
				p, err := opts.printer(cmd)
				if err != nil {
					return err
				}
				return p.print(stats,
					table.Row{"Pending", "Failing", "Processed"},
					[]table.Row{{stats.Pending, stats.Failing, stats.Processed}},
				)
			})
		},
	})
	return cmd
}

func ordersCmd(opts *rootOptions) *cobra.Command {
	var (
		code     string
		pending  bool
		page     int
		pageSize int
	)
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List synchronized orders, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := order.Filter{Page: page, PageSize: pageSize}
			if code != "" {
				mp, err := marketplace.ParseCode(code)
				if err != nil {
					return err
				}
				filter.Marketplace = mp.String()
			}
			if pending {
				emitted := false
				filter.Emitted = &emitted
			}
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *bootstrap.Container) error {
				orders, total, err := c.Orders.List(ctx, filter)
				if err != nil {
					return err
				}
				p, err := opts.printer(cmd)
				if err != nil {
					return err
				}
				resp := dto.NewOrderResponses(orders)
				rows := make([]table.Row, 0, len(resp))
				for _, o := range resp {
					document := ""
					if o.Fiscal != nil {
						document = o.Fiscal.DocumentNumber
					}
					rows = append(rows, table.Row{o.Marketplace, o.ExternalID, o.Buyer.Name, o.Status, o.TotalAmount, o.CreatedAt.Format(timeLayout), document})
				}
				rows = append(rows, table.Row{"", "", "", "", "", "total", strconv.FormatInt(total, 10)})
				return p.print(resp,
					table.Row{"Marketplace", "Order", "Buyer", "Status", "Total", "Created", "Document"},
					rows,
				)
			})
		},
	}
	cmd.Flags().StringVarP(&code, "marketplace", "m", "", "only orders from this marketplace")
	cmd.Flags().BoolVar(&pending, "pending", false, "only orders without a fiscal document")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "orders per page")
	return cmd
}

func jobsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Inspect and run pipeline jobs"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *bootstrap.Container) error {
				p, err := opts.printer(cmd)
				if err != nil {
					return err
				}
				statuses := c.Scheduler.Status()
				rows := make([]table.Row, 0, len(statuses))
				for _, st := range statuses {
					rows = append(rows, table.Row{st.Name, st.Interval, st.Running})
				}
				return p.print(statuses, table.Row{"Job", "Interval", "Running"}, rows)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:       "run <job>",
		Short:     "Run a job once and wait for it",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{integration.JobSyncOrders, integration.JobDrainFiscalQueue},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *bootstrap.Container) error {
				run, err := c.Scheduler.RunOnce(ctx, args[0])
				if err != nil {
					return err
				}
				p, err := opts.printer(cmd)
				if err != nil {
					return err
				}
				return printRuns(p, []*scheduler.Run{run})
			})
		},
	})
	return cmd
}

func configCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect the effective configuration"}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			summary := summarize(cfg)
			rows := make([]table.Row, 0, len(summary))
			for _, kv := range summary {
				rows = append(rows, table.Row{kv.Key, kv.Value})
			}
			return p.print(summary, table.Row{"Key", "Value"}, rows)
		},
	})
	return cmd
}

type setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func summarize(cfg *config.Config) []setting {
	set := func(v bool) string { return strconv.FormatBool(v) }
	secret := func(v string) string {
		if v == "" {
			return "(unset)"
		}
		return "(set)"
	}
	return []setting{
		{"app.env", cfg.App.Env},
		{"app.port", cfg.App.Port},
		{"database.driver", cfg.Database.Driver},
		{"database.host", cfg.Database.Host},
		{"database.password", secret(cfg.Database.Password)},
		{"redis.enabled", set(cfg.Redis.Enabled)},
		{"jwt.secret", secret(cfg.JWT.Secret)},
		{"mercadolivre.enabled", set(cfg.MercadoLivre.Enabled)},
		{"mercadolivre.client_secret", secret(cfg.MercadoLivre.ClientSecret)},
		{"shopee.enabled", set(cfg.Shopee.Enabled)},
		{"fiscal.api_key", secret(cfg.Fiscal.APIKey)},
		{"fiscal.document_renderer", cfg.Fiscal.DocumentRenderer},
		{"storage.type", cfg.Storage.Type},
		{"smtp.enabled", set(cfg.SMTP.Enabled)},
		{"scheduler.enabled", set(cfg.Scheduler.Enabled)},
		{"scheduler.sync_interval", cfg.Scheduler.SyncInterval.String()},
		{"scheduler.drain_interval", cfg.Scheduler.DrainInterval.String()},
		{"secrets.master_key", secret(cfg.Secrets.MasterKey)},
		{"telemetry.tracing_enabled", set(cfg.Telemetry.TracingEnabled)},
		{"telemetry.metrics_enabled", set(cfg.Telemetry.MetricsEnabled)},
	}
}

func printRuns(p *printer, runs []*scheduler.Run) error {
	rows := make([]table.Row, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, table.Row{r.Job, r.Trigger, r.Status, r.StartedAt.Format(timeLayout), r.Error})
	}
	return p.print(runs, table.Row{"Job", "Trigger", "Status", "Started", "Error"}, rows)
}

func printSyncResults(p *printer, results []*integration.SyncResult) error {
	rows := make([]table.Row, 0, len(results))
	for _, r := range results {
		rows = append(rows, table.Row{r.Marketplace, r.Fetched, r.Stored, r.Skipped, r.Failed, r.Duration.Round(time.Millisecond)})
	}
	return p.print(results, table.Row{"Marketplace", "Fetched", "Stored", "Skipped", "Failed", "Duration"}, rows)
}
