package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tendant/content-catalog/pkg/catalog"
	"github.com/tendant/content-catalog/pkg/catalog/admin"
	"github.com/tendant/content-catalog/pkg/catalog/api"
	"github.com/tendant/content-catalog/pkg/catalog/config"
	"github.com/tendant/content-catalog/pkg/catalog/scan"
)

// NewMetadataTypeCommand creates the metadata-type command group
func NewMetadataTypeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata-type",
		Short: "Manage metadata types",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a metadata type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, _ *config.ServerConfig, svc catalog.Service) error {
				mt, err := svc.CreateMetadataType(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), mt)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List metadata types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, _ *config.ServerConfig, svc catalog.Service) error {
				types, err := svc.ListMetadataTypes(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME")
				for _, mt := range types {
					fmt.Fprintf(w, "%s\t%s\n", mt.ID, mt.Name)
				}
				return w.Flush()
			})
		},
	})

	return cmd
}

// NewMetadataCommand creates the metadata (tag) command group
func NewMetadataCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Manage metadata tags",
	}

	var typeID string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a tag under a metadata type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(typeID)
			if err != nil {
				return fmt.Errorf("invalid --type: %w", err)
			}
			return withService(cmd, func(ctx context.Context, _ *config.ServerConfig, svc catalog.Service) error {
				m, err := svc.CreateMetadata(ctx, catalog.CreateMetadataRequest{TypeID: id, Name: args[0]})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), m.Info())
			})
		},
	}
	create.Flags().StringVar(&typeID, "type", "", "metadata type ID")
	_ = create.MarkFlagRequired("type")
	cmd.AddCommand(create)

	var listType string
	list := &cobra.Command{
		Use:   "list",
		Short: "List tags, optionally of one type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *uuid.UUID
			if listType != "" {
				id, err := uuid.Parse(listType)
				if err != nil {
					return fmt.Errorf("invalid --type: %w", err)
				}
				filter = &id
			}
			return withService(cmd, func(ctx context.Context, _ *config.ServerConfig, svc catalog.Service) error {
				tags, err := svc.ListMetadata(ctx, filter)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTYPE\tNAME")
				for _, m := range tags {
					fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.TypeName, m.Name)
				}
				return w.Flush()
			})
		},
	}
	list.Flags().StringVar(&listType, "type", "", "only tags of this metadata type ID")
	cmd.AddCommand(list)

	return cmd
}

// NewUserCommand creates the user command group
func NewUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage catalog users",
	}

	var email string
	register := &cobra.Command{
		Use:   "register <username>",
		Short: "Register a user and its profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, _ *config.ServerConfig, svc catalog.Service) error {
				user, profile, err := svc.RegisterUser(ctx, catalog.RegisterUserRequest{Username: args[0], Email: email})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), api.UserResponse{User: user, Profile: profile})
			})
		},
	}
	register.Flags().StringVar(&email, "email", "", "email address")
	cmd.AddCommand(register)

	return cmd
}

// NewTokenCommand creates the token command
func NewTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token <username>",
		Short: "Issue an identity token for an existing user",
		Long: `Issue an HS256 identity token for an existing user, signed with
JWT_SECRET and valid for TOKEN_TTL. Send it as "Authorization: Bearer <token>".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, cfg *config.ServerConfig, svc catalog.Service) error {
				user, err := svc.GetUserByUsername(ctx, args[0])
				if err != nil {
					return err
				}
				token, err := api.IssueToken(cfg.JWTAuth(), user.ID, cfg.TokenTTL)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
}

// NewContentCommand creates the content command group
func NewContentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Inspect and add catalog content",
	}

	var (
		search   string
		statuses []string
		limit    int
		offset   int
		retired  bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List content",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := contentFilters(search, statuses, retired)
			if err != nil {
				return err
			}
			filters.Limit, filters.Offset = limit, offset
			return withService(cmd, func(ctx context.Context, _ *config.ServerConfig, svc catalog.Service) error {
				contents, err := svc.ListContent(ctx, filters)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSTATUS\tACTIVE\tFILE\tTITLE")
				for _, c := range contents {
					fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", c.ID, c.Status, c.Active, c.FileName, c.Title)
				}
				return w.Flush()
			})
		},
	}
	list.Flags().StringVar(&search, "search", "", "match title or description")
	list.Flags().StringSliceVar(&statuses, "status", nil, "workflow status (repeatable)")
	list.Flags().IntVar(&limit, "limit", 50, "page size")
	list.Flags().IntVar(&offset, "offset", 0, "page offset")
	list.Flags().BoolVar(&retired, "retired", false, "list retired content instead of active")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "get <content-id>",
		Short: "Show one content record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid content ID: %w", err)
			}
			return withService(cmd, func(ctx context.Context, _ *config.ServerConfig, svc catalog.Service) error {
				c, err := svc.GetContent(ctx, id)
				if err != nil {
					return err
				}
				info, err := svc.DescribeMetadata(ctx, c)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), api.ContentResponse{
					Content:       c,
					CreatedByName: c.CreatedByName(),
					PublishedYear: c.PublishedYear(),
					MetadataInfo:  info,
				})
			})
		},
	})

	var (
		title   string
		creator string
	)
	add := &cobra.Command{
		Use:   "add <file>",
		Short: "Create content from a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			f, err := os.Open(filePath)
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			defer f.Close()

			return withService(cmd, func(ctx context.Context, _ *config.ServerConfig, svc catalog.Service) error {
				req := catalog.CreateContentRequest{
					Title: title,
					File: &catalog.Upload{
						FileName: filepath.Base(filePath),
						MimeType: mime.TypeByExtension(filepath.Ext(filePath)),
						Reader:   f,
					},
				}
				if creator != "" {
					user, err := svc.GetUserByUsername(ctx, creator)
					if err != nil {
						return err
					}
					req.CreatedBy = &user.ID
				}
				c, err := svc.CreateContent(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), c)
			})
		},
	}
	add.Flags().StringVar(&title, "title", "", "content title")
	add.Flags().StringVar(&creator, "creator", "", "username of the creating user")
	_ = add.MarkFlagRequired("title")
	cmd.AddCommand(add)

	return cmd
}

// NewStatsCommand creates the stats command
func NewStatsCommand() *cobra.Command {
	var (
		search   string
		statuses []string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregated content statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := contentFilters(search, statuses, false)
			if err != nil {
				return err
			}
			filters.Active = nil
			return withService(cmd, func(ctx context.Context, _ *config.ServerConfig, svc catalog.Service) error {
				resp, err := admin.New(svc).GetStatistics(ctx, admin.StatisticsRequest{
					Filters: filters,
					Options: admin.DefaultStatisticsOptions(),
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "match title or description")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "workflow status (repeatable)")
	return cmd
}

// NewVerifyCommand creates the verify command
func NewVerifyCommand() *cobra.Command {
	var (
		batchSize int
		retired   bool
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Re-hash stored payloads and compare them with the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, _ *config.ServerConfig, svc catalog.Service) error {
				filters := catalog.ContentFilters{}
				if !retired {
					active := true
					filters.Active = &active
				}

				scanner := scan.New(admin.New(svc), nil)
				result, err := scanner.Scan(ctx, scan.ScanOptions{
					Filters:   filters,
					Processor: scan.NewHashVerifier(svc),
					BatchSize: batchSize,
					DryRun:    dryRun,
				})
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "found=%d verified=%d skipped=%d failed=%d\n",
					result.TotalFound, result.TotalProcessed, result.TotalSkipped, result.TotalFailed)
				for _, id := range result.FailedIDs {
					fmt.Fprintf(cmd.OutOrStdout(), "FAILED %s\n", id)
				}
				if result.TotalFailed > 0 {
					return fmt.Errorf("%d payloads failed verification", result.TotalFailed)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "records per page")
	cmd.Flags().BoolVar(&retired, "include-retired", false, "also verify retired content")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list what would be verified")
	return cmd
}

// NewConfigCommand creates the config command group
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "usage",
		Short: "Describe every supported environment variable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.Usage())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database=%s storage=%s key_strategy=%s environment=%s port=%s\n",
				cfg.DatabaseType, cfg.DefaultStorageBackend, cfg.KeyStrategy, cfg.Environment, cfg.Port)
			return nil
		},
	})

	return cmd
}

func contentFilters(search string, statuses []string, retired bool) (catalog.ContentFilters, error) {
	active := !retired
	filters := catalog.ContentFilters{Search: search, Active: &active}
	for _, s := range statuses {
		status, err := catalog.ParseWorkflowStatus(s)
		if err != nil {
			return filters, err
		}
		filters.Statuses = append(filters.Statuses, status)
	}
	return filters, nil
}
