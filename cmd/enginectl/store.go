package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"euno-analytics-be/internal/config"
	"euno-analytics-be/internal/entity"
	"euno-analytics-be/internal/pkg/serverutils"
	"euno-analytics-be/internal/repository/memory"
	"euno-analytics-be/internal/repository/specification"
	"euno-analytics-be/internal/repository/unitofwork"
	"euno-analytics-be/internal/service"
	"euno-analytics-be/pkg/database"
	"euno-analytics-be/pkg/tier"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	importUserFlag string
	importNameFlag string

	userEmailFlag string
	userTierFlag  string
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Register a CSV file as a data source for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Create a user and print an API token for it",
	Args:  cobra.NoArgs,
	RunE:  runUser,
}

func init() {
	importCmd.Flags().StringVar(&importUserFlag, "user", "", "Owner user id")
	importCmd.Flags().StringVar(&importNameFlag, "name", "", "Data source name (defaults to the file name)")
	_ = importCmd.MarkFlagRequired("user")

	userCmd.Flags().StringVar(&userEmailFlag, "email", "", "Email address")
	userCmd.Flags().StringVar(&userTierFlag, "tier", string(tier.Starter), "Subscription tier (starter, professional, enterprise)")
	_ = userCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(importCmd, userCmd)
}

func openStore() (*config.Config, unitofwork.RepositoryFactory, error) {
	cfg := config.Load()
	db, err := database.NewGormDB(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, unitofwork.NewRepositoryFactory(db), nil
}

func runImport(cmd *cobra.Command, args []string) error {
	userId, err := uuid.Parse(importUserFlag)
	if err != nil {
		return fmt.Errorf("invalid --user: %w", err)
	}
	rs, err := loadCSV(args[0])
	if err != nil {
		return err
	}
	name := importNameFlag
	if name == "" {
		name = filepath.Base(args[0])
	}

	cfg, uowFactory, err := openStore()
	if err != nil {
		return err
	}
	provider := service.NewDataSourceProvider(uowFactory, memory.NewDataSourceCache(cfg.Engine.ProfileCacheTTL))
	ds, err := provider.Register(cmd.Context(), userId, name, entity.SourceKindFile, rs)
	if err != nil {
		return err
	}

	fmt.Printf("Registered %s as %s (%d rows, %d columns)\n", ds.Name, ds.Id, ds.RowCount, len(ds.SchemaProfile))
	return nil
}

func runUser(cmd *cobra.Command, args []string) error {
	t := tier.Tier(strings.ToLower(userTierFlag))
	if !t.Valid() {
		return fmt.Errorf("unknown tier %q", userTierFlag)
	}

	cfg, uowFactory, err := openStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	users := uowFactory.NewUnitOfWork(ctx).UserRepository()
	existing, err := users.FindOne(ctx, specification.ByEmail{Email: userEmailFlag})
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("a user with email %s already exists (%s)", userEmailFlag, existing.Id)
	}

	user := &entity.User{
		Email:              userEmailFlag,
		SubscriptionTier:   string(t),
		SubscriptionStatus: string(tier.StatusActive),
	}
	if err := users.Create(ctx, user); err != nil {
		return err
	}

	fmt.Printf("user_id: %s\n", user.Id)
	if cfg.Auth.JWTSecret != "" {
		token, err := serverutils.SignToken(cfg.Auth.JWTSecret, user.Id.String())
		if err != nil {
			return err
		}
		fmt.Printf("token:   %s\n", token)
	}
	return nil
}
