package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/heyito/ito-sub003/internal/dictionary"
	"github.com/redis/go-redis/v9"
)

// seed loads custom vocabulary into the agent's dictionary, one word or
// phrase per line. Blank lines and lines starting with # are skipped.
func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: seed <words-file>")
		os.Exit(2)
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	store := dictionary.NewStore(client, nil)
	if err := store.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to redis: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open words file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read words file: %v\n", err)
		os.Exit(1)
	}

	added, skipped := 0, 0
	for _, w := range words {
		if err := store.Add(ctx, w); err != nil {
			fmt.Fprintf(os.Stderr, "Skipping %q: %v\n", w, err)
			skipped++
			continue
		}
		added++
	}

	fmt.Printf("Dictionary seeded: %d added, %d skipped\n", added, skipped)
}
