package env

import (
	"os"
	"path/filepath"
)

var Version string = "dev"

// (default: %USERPROFILE%/.modbot on Windows, $HOME/.modbot on Linux)
var ModbotDir string = GetModbotDir()

/**
 * Get modbot directory path
 * @returns {string} Returns modbot directory path
 */
func GetModbotDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".modbot")
}
