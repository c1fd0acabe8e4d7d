package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vitebski/schema-analyzer/internal/analyzer"
	"github.com/vitebski/schema-analyzer/internal/builder"
	"github.com/vitebski/schema-analyzer/internal/compressor"
	"github.com/vitebski/schema-analyzer/internal/connector"
	"github.com/vitebski/schema-analyzer/internal/utils"
	"github.com/vitebski/schema-analyzer/pkg/models"
)

func main() {
	var (
		inputFile         string
		outputFile        string
		statsFile         string
		rulesFile         string
		envFile           string
		logLevel          string
		workers           int
		classifierURL     string
		classifierModel   string
		classifierTimeout int
		analyzeOnly       bool
		fromMySQL         bool
		host              string
		user              string
		password          string
		database          string
		port              string
	)

	rootCmd := &cobra.Command{
		Use:   "schema-analyzer",
		Short: "Extract, compress, and analyze relational database schemas",
		Long: `Schema Analyzer

Parses a DDL schema dump (or extracts a live MySQL schema), produces a
compact canonical encoding of the structure, and computes relationship
graph statistics: fan-in/fan-out, centrality, cycles, and functional
table categories.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := utils.SetupLogging(logLevel)
			utils.LoadEnvironmentVariables(envFile, logger)

			if workers == 0 {
				workers = utils.GetEnvInt("SCHEMA_WORKERS", 4)
			}
			if classifierURL == "" {
				classifierURL = os.Getenv("SCHEMA_CLASSIFIER_URL")
			}

			var (
				schema *models.Schema
				diags  []models.Diagnostic
				err    error
			)

			if fromMySQL {
				db := connector.NewConnector(host, user, password, database, port, logger)
				if err := db.Connect(); err != nil {
					logger.Errorf("Failed to connect to database: %v", err)
					os.Exit(1)
				}
				defer db.Disconnect()
				schema, diags, err = db.ExtractSchema()
			} else {
				var in *os.File
				if inputFile == "" || inputFile == "-" {
					in = os.Stdin
				} else {
					in, err = os.Open(inputFile)
					if err != nil {
						return fmt.Errorf("opening input: %w", err)
					}
					defer in.Close()
				}
				schema, diags, err = builder.New(logger).Build(in)
			}
			if err != nil {
				logger.Errorf("Failed to build schema: %v", err)
				os.Exit(1)
			}
			if len(schema.Tables) == 0 {
				logger.Error("No tables found in input")
				os.Exit(1)
			}

			rules := analyzer.DefaultRules()
			if rulesFile != "" {
				rules, err = analyzer.LoadRules(rulesFile)
				if err != nil {
					return err
				}
			}

			graph := analyzer.BuildGraph(schema, logger)
			engine := analyzer.NewEngine(schema, graph, rules, logger)
			engine.Workers = workers
			if classifierURL != "" {
				engine.Remote = analyzer.NewRemoteClassifier(
					classifierURL, classifierModel,
					time.Duration(classifierTimeout)*time.Second,
				)
			}

			stats, statDiags := engine.Run(context.Background())
			diags = append(diags, statDiags...)
			stats.DroppedEntries = models.CountDropped(diags)

			if !analyzeOnly {
				out := os.Stdout
				if outputFile != "" {
					out, err = os.Create(outputFile)
					if err != nil {
						return fmt.Errorf("creating output: %w", err)
					}
					defer out.Close()
				}
				if err := compressor.NewWriter(out).Write(schema); err != nil {
					return fmt.Errorf("writing canonical schema: %w", err)
				}
			}

			if statsFile != "" {
				data, err := json.MarshalIndent(stats, "", "  ")
				if err != nil {
					return fmt.Errorf("encoding statistics: %w", err)
				}
				if err := os.WriteFile(statsFile, data, 0o644); err != nil {
					return fmt.Errorf("writing statistics: %w", err)
				}
				logger.Infof("Statistics written to %s", statsFile)
			}

			if analyzeOnly {
				utils.PrintAnalysisReport(stats, diags)
			}
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&inputFile, "input", "i", "", "DDL dump file to parse (default: stdin)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Canonical schema output file (default: stdout)")
	rootCmd.Flags().StringVarP(&statsFile, "stats", "s", "", "Write statistics export as JSON to this file")
	rootCmd.Flags().StringVarP(&rulesFile, "rules", "r", "", "Category keyword rules JSON file")
	rootCmd.Flags().StringVarP(&envFile, "env-file", "e", ".env", "Path to .env file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Categorization worker pool size")
	rootCmd.Flags().StringVar(&classifierURL, "classifier-url", "", "Optional external classifier endpoint")
	rootCmd.Flags().StringVar(&classifierModel, "classifier-model", "llama3", "Model name for the external classifier")
	rootCmd.Flags().IntVar(&classifierTimeout, "classifier-timeout", 10, "Per-call classifier timeout in seconds")
	rootCmd.Flags().BoolVarP(&analyzeOnly, "analyze-only", "a", false, "Print the analysis report instead of the canonical schema")
	rootCmd.Flags().BoolVar(&fromMySQL, "from-mysql", false, "Extract the schema from a live MySQL database instead of a dump")
	rootCmd.Flags().StringVarP(&host, "host", "H", "", "MySQL host (default: localhost)")
	rootCmd.Flags().StringVarP(&user, "user", "u", "", "MySQL user (default: root)")
	rootCmd.Flags().StringVarP(&password, "password", "p", "", "MySQL password")
	rootCmd.Flags().StringVarP(&database, "database", "d", "", "MySQL database name")
	rootCmd.Flags().StringVarP(&port, "port", "P", "", "MySQL port (default: 3306)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
