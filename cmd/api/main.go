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
	if err := runtime.RunAPI(context.Background()); err != nil {
		log.Fatalf("api runtime: %v", err)
	}
}
