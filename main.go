package main

import (
	"market-connect/internal/commands"
	"market-connect/utils"
)

func main() {
	if err := commands.Execute(); err != nil {
		utils.Fatal("auctiond failed", map[string]any{"error": err.Error()})
	}
}
