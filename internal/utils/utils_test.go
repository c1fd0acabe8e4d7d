package utils

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetupLogging(t *testing.T) {
	// Test with default log level
	logger := SetupLogging("")
	if logger == nil {
		t.Fatal("Expected logger to be created, got nil")
	}
	if logger.Level != logrus.InfoLevel {
		t.Errorf("Expected default log level to be info, got %s", logger.Level)
	}

	// Test with specific log levels
	logger = SetupLogging("debug")
	if logger.Level != logrus.DebugLevel {
		t.Errorf("Expected log level to be debug, got %s", logger.Level)
	}

	logger = SetupLogging("warn")
	if logger.Level != logrus.WarnLevel {
		t.Errorf("Expected log level to be warn, got %s", logger.Level)
	}

	logger = SetupLogging("error")
	if logger.Level != logrus.ErrorLevel {
		t.Errorf("Expected log level to be error, got %s", logger.Level)
	}

	// Test with invalid log level (should default to info)
	logger = SetupLogging("invalid")
	if logger.Level != logrus.InfoLevel {
		t.Errorf("Expected log level to be info for invalid input, got %s", logger.Level)
	}
}

func TestSetupLoggingFromEnvironment(t *testing.T) {
	t.Setenv("SCHEMA_LOG_LEVEL", "debug")
	logger := SetupLogging("")
	if logger.Level != logrus.DebugLevel {
		t.Errorf("Expected log level from environment to be debug, got %s", logger.Level)
	}

	// An explicit level wins over the environment
	logger = SetupLogging("error")
	if logger.Level != logrus.ErrorLevel {
		t.Errorf("Expected explicit log level to win, got %s", logger.Level)
	}
}

func TestGetEnvInt(t *testing.T) {
	// Test with environment variable set
	os.Setenv("TEST_ENV_INT", "42")
	value := GetEnvInt("TEST_ENV_INT", 10)
	if value != 42 {
		t.Errorf("Expected value to be 42, got %d", value)
	}

	// Test with environment variable not set
	os.Unsetenv("TEST_ENV_INT")
	value = GetEnvInt("TEST_ENV_INT", 10)
	if value != 10 {
		t.Errorf("Expected value to be 10 (default), got %d", value)
	}

	// Test with invalid integer
	os.Setenv("TEST_ENV_INT", "not-an-int")
	value = GetEnvInt("TEST_ENV_INT", 10)
	if value != 10 {
		t.Errorf("Expected value to be 10 (default) for invalid input, got %d", value)
	}
	os.Unsetenv("TEST_ENV_INT")
}

func TestLoadEnvironmentVariables(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests

	// Missing file is not an error
	LoadEnvironmentVariables(t.TempDir()+"/missing.env", logger)

	// Variables from an existing file are loaded
	path := t.TempDir() + "/.env"
	if err := os.WriteFile(path, []byte("SCHEMA_TEST_VALUE=loaded\n"), 0o644); err != nil {
		t.Fatalf("writing env file: %v", err)
	}
	os.Unsetenv("SCHEMA_TEST_VALUE")
	LoadEnvironmentVariables(path, logger)
	if got := os.Getenv("SCHEMA_TEST_VALUE"); got != "loaded" {
		t.Errorf("Expected SCHEMA_TEST_VALUE to be 'loaded', got '%s'", got)
	}
	os.Unsetenv("SCHEMA_TEST_VALUE")
}
