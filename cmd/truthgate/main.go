package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/ppiankov/truthgate/internal/cli"
	"go.uber.org/zap"
)

func main() {
	// A missing .env is fine; variables may come from the environment
	_ = godotenv.Load()

	err := cli.Execute()
	_ = zap.L().Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
