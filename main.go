package main

import (
	"log"

	"cashback_bot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatalf("Failed to run: %v", err)
	}
}
