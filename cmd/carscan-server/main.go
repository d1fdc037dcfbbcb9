// @title carscan API
// @version 1.0
// @description Vehicle photo damage scanning: upload, progress, detection and overlay rendering.
// @host localhost:8000
// @BasePath /
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"carscan-server/internal/bootstrap"
)

func main() {
	fmt.Printf("[%s] [INFO] [BOOT] starting carscan-server %s\n", time.Now().Format("2006-01-02 15:04:05.000"), bootstrap.Version)
	if err := bootstrap.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "carscan-server failed: %v\n", err)
		os.Exit(1)
	}
}
