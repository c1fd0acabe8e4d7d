package utils

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/vitebski/schema-analyzer/pkg/models"
)

// SetupLogging configures the logging system
func SetupLogging(logLevel string) *logrus.Logger {
	logger := logrus.New()

	levelStr := logLevel
	if levelStr == "" {
		levelStr = os.Getenv("SCHEMA_LOG_LEVEL")
		if levelStr == "" {
			levelStr = "info"
		}
	}

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stderr)

	return logger
}

// LoadEnvironmentVariables loads environment variables from a .env file if
// one exists
func LoadEnvironmentVariables(envFile string, logger *logrus.Logger) {
	if _, err := os.Stat(envFile); err != nil {
		logger.Debugf("No %s file found, using existing environment variables", envFile)
		return
	}
	if err := godotenv.Load(envFile); err != nil {
		logger.Warningf("Error loading %s file: %v", envFile, err)
		return
	}
	logger.Infof("Loaded environment variables from %s", envFile)
}

// GetEnvInt gets an integer value from environment variable
func GetEnvInt(varName string, defaultValue int) int {
	value := os.Getenv(varName)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

// PrintAnalysisReport prints the schema analysis in a human-readable form
func PrintAnalysisReport(stats *models.SchemaStats, diags []models.Diagnostic) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SCHEMA ANALYSIS REPORT")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("\n1. BASIC STATISTICS")
	fmt.Printf("   Total tables: %d\n", stats.TableCount)
	fmt.Printf("   Total columns: %d\n", stats.TotalColumns)
	fmt.Printf("   Total foreign keys: %d\n", stats.TotalForeignKeys)
	fmt.Printf("   Total unique constraints: %d\n", stats.TotalUniqueConstraints)
	fmt.Printf("   Total indexes: %d\n", stats.TotalIndexes)
	fmt.Printf("   Average columns per table: %.2f\n", stats.AvgColumnsPerTable)
	fmt.Printf("   Average foreign keys per table: %.2f\n", stats.AvgFKsPerTable)

	fmt.Println("\n2. TABLE CATEGORIES")
	for _, category := range categoryOrder(stats) {
		tables := stats.Categories[category]
		fmt.Printf("   %s: %d tables\n", category, len(tables))
	}

	if stats.HasCycles {
		fmt.Println("\n3. CIRCULAR DEPENDENCIES")
		fmt.Printf("   Cycle groups: %d\n", len(stats.Cycles))
		for _, cycle := range stats.Cycles {
			fmt.Printf("     %s\n", strings.Join(cycle, " <-> "))
		}
	} else {
		fmt.Println("\n3. CIRCULAR DEPENDENCIES")
		fmt.Println("   None detected")
	}

	if len(stats.MostReferencedTables) > 0 {
		fmt.Println("\n4. MOST REFERENCED TABLES")
		for _, tc := range stats.MostReferencedTables {
			fmt.Printf("   %s: %d incoming foreign keys\n", tc.Table, tc.Count)
		}
	}

	if len(stats.SelfReferencingTables) > 0 {
		fmt.Println("\n5. SELF-REFERENCING TABLES")
		fmt.Printf("   %s\n", strings.Join(stats.SelfReferencingTables, ", "))
	}

	if stats.DroppedEntries > 0 {
		fmt.Println("\n6. DROPPED ENTRIES")
		fmt.Printf("   %d entries were dropped during parsing:\n", stats.DroppedEntries)
		for _, d := range diags {
			if d.Severity == models.SeverityStructural {
				fmt.Printf("     - %s\n", d)
			}
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
}

// categoryOrder returns the categories present in the stats, sorted by
// table count descending then name, for stable report output
func categoryOrder(stats *models.SchemaStats) []string {
	var categories []string
	for c := range stats.Categories {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool {
		ni, nj := len(stats.Categories[categories[i]]), len(stats.Categories[categories[j]])
		if ni != nj {
			return ni > nj
		}
		return categories[i] < categories[j]
	})
	return categories
}
