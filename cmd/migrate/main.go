package main

import (
	"dairy_billing/internal/config"
	"dairy_billing/internal/db"
)

// Applies the schema migrations and exits.
func main() {
	cfg := config.LoadConfig()
	db.Migrate(cfg.DSN())
}
