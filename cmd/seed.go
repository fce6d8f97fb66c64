package main

import (
	"context"
	"fmt"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bluecarbon.dev/registry/internal/registry"
	"bluecarbon.dev/registry/pkg/generator"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate synthetic survey and registry data",
	Long: `Generate synthetic data for local development:
- A survey spreadsheet (CSV) suitable for the ingest command
- Optionally, sample projects and accounts written to the database`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	addDBFlags(seedCmd)
	seedCmd.Flags().String("out", "surveys.csv", "output path for the survey CSV")
	seedCmd.Flags().Int("plots", 200, "number of survey rows to generate")
	seedCmd.Flags().Int("start-year", 2022, "first monitoring year")
	seedCmd.Flags().Int("projects", 0, "number of sample projects to register")
	seedCmd.Flags().Int("users", 0, "number of sample accounts to create")
	seedCmd.Flags().Int64("seed", 0, "random seed (0 uses a non-deterministic source)")

	_ = viper.BindPFlag("seed.out", seedCmd.Flags().Lookup("out"))
	_ = viper.BindPFlag("seed.plots", seedCmd.Flags().Lookup("plots"))
	_ = viper.BindPFlag("seed.start_year", seedCmd.Flags().Lookup("start-year"))
	_ = viper.BindPFlag("seed.projects", seedCmd.Flags().Lookup("projects"))
	_ = viper.BindPFlag("seed.users", seedCmd.Flags().Lookup("users"))
	_ = viper.BindPFlag("seed.seed", seedCmd.Flags().Lookup("seed"))
}

func runSeed(_ *cobra.Command, _ []string) error {
	logger := GetLogger()

	out := viper.GetString("seed.out")
	plots := viper.GetInt("seed.plots")
	startYear := viper.GetInt("seed.start_year")
	nProjects := viper.GetInt("seed.projects")
	nUsers := viper.GetInt("seed.users")
	seed := viper.GetInt64("seed.seed")

	gen := generator.NewSurveyGenerator(seed)
	if err := gen.WriteCSV(out, plots, startYear); err != nil {
		logger.Error("failed to write survey CSV", "error", err, "path", out)
		return err
	}
	logger.Info("wrote survey CSV", "path", out, "rows", plots)
	fmt.Printf("Wrote %d survey rows to %s\n", plots, out)

	if nProjects == 0 && nUsers == 0 {
		return nil
	}

	db, err := registry.NewDB(dbConfig(logger))
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		return err
	}
	defer func() {
		if err := registry.CloseDB(db, logger); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	svc, err := registry.NewService(logger, db)
	if err != nil {
		return err
	}
	ctx := context.Background()

	for _, p := range generator.Projects(nProjects) {
		_, err := svc.RegisterProject(ctx, registry.RegisterProjectInput{
			ProjectID:   p.ProjectID,
			Name:        p.Name,
			Description: p.Description,
			ProjectType: p.ProjectType,
			Location:    p.Location,
			Owner:       p.Owner,
			TxHash:      gofakeit.HexUint(256),
		})
		if err != nil {
			logger.Error("failed to register project", "error", err, "project_id", p.ProjectID)
			return err
		}
	}
	if nProjects > 0 {
		fmt.Printf("Registered %d projects\n", nProjects)
	}

	for _, u := range generator.Users(nUsers) {
		user := &registry.User{
			Address: u.Address,
			Profile: registry.UserProfile{Role: u.Role, Name: u.Name, Email: u.Email},
		}
		if err := svc.CreateUser(ctx, user); err != nil {
			logger.Error("failed to create user", "error", err, "address", u.Address)
			return err
		}
	}
	if nUsers > 0 {
		fmt.Printf("Created %d accounts\n", nUsers)
	}

	return nil
}
