package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/mini-ttc/etaboard/internal/cli"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
