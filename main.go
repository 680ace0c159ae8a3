package main

import (
	"context"

	"review-scraper/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
