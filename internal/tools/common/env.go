package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFile exports the keys of a dotenv file into the process environment.
// Variables that are already set win; a missing file is not an error.
func LoadEnvFile(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open env file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("open env file: %s is a directory", path)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("parse env file: %w", err)
	}
	return nil
}
