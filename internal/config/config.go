package config

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
)

const defaultMaxUploadBytes = 200 * 1024 * 1024 // 200 MiB

type Config struct {
	Port           string
	DataDir        string
	MaxUploadBytes int64
	NumWorkers     int
}

func ProcessEnvironmentVariables() (*Config, error) {
	env := Config{
		Port:           "9446",
		DataDir:        "data",
		MaxUploadBytes: defaultMaxUploadBytes,
		NumWorkers:     4,
	}

	envPort := os.Getenv("INGEST_PORT")
	envDataDir := os.Getenv("INGEST_DATA_DIR")
	envMaxBytes := os.Getenv("MAX_CSV_BYTES")
	envWorkers := os.Getenv("INGEST_WORKERS")

	if len(envPort) != 0 {
		env.Port = envPort
	}

	if len(envDataDir) != 0 {
		env.DataDir = envDataDir
	}

	if len(envMaxBytes) != 0 {
		maxBytes, err := strconv.ParseInt(envMaxBytes, 10, 64)
		if err != nil || maxBytes <= 0 {
			return nil, errors.Errorf("MAX_CSV_BYTES must be a positive integer, got %q", envMaxBytes)
		}
		env.MaxUploadBytes = maxBytes
	}

	if len(envWorkers) != 0 {
		workers, err := strconv.Atoi(envWorkers)
		if err != nil || workers < 1 {
			return nil, errors.Errorf("INGEST_WORKERS must be a positive integer, got %q", envWorkers)
		}
		env.NumWorkers = workers
	}

	return &env, nil
}
