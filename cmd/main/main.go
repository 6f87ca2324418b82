package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/savannahlabs/edp/internal/cli"
	"github.com/savannahlabs/edp/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	if path := os.Getenv("EDP_LOG_FILE"); path != "" {
		if err := logger.InitLogger(path); err != nil {
			log.Fatalf("Cannot open log file %s: %v", path, err)
		}
	}
	defer logger.Close()

	rootCmd := cli.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		logger.Close()
		os.Exit(1)
	}
}
