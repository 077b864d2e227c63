package main

import (
	"log/slog"
	"os"

	"payslip/internal/app/server"
)

func main() {
	if err := server.Run(); err != nil {
		slog.Error("payslip server stopped", "err", err)
		os.Exit(1)
	}
}
