package main

import (
	"log"
	"os"

	"edu-quiz-service/internal/cli"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine, the environment may already be set.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
