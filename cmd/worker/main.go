package main

import (
	"context"
	"log"
	"os"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/app/bootstrap"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/default.yaml"
	}
	runtime, err := bootstrap.NewRuntime(context.Background(), configPath)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	if err := runtime.RunWorker(context.Background()); err != nil {
		log.Fatalf("worker runtime: %v", err)
	}
}
