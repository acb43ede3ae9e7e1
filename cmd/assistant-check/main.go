package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/edudashpro/finance-service/internal/assistant"
)

// Sends a single chat message through the assistant service to verify the
// OpenAI credentials and model configuration before deploying.
func main() {
	apiKey := flag.String("key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
	model := flag.String("model", "gpt-4o-mini", "Model to query")
	message := flag.String("message", "Reply with the single word OK.", "Test message to send")
	timeout := flag.Duration("timeout", 30*time.Second, "API call timeout")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	_ = gotenv.Load()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *apiKey == "" {
		*apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if *apiKey == "" {
		fmt.Fprintf(os.Stderr, "ERROR: OPENAI_API_KEY not set and no --key flag provided\n")
		fmt.Fprintf(os.Stderr, "Usage: assistant-check --key sk-... [--model gpt-4o-mini] [--timeout 30s]\n")
		os.Exit(1)
	}

	fmt.Println("=== Assistant Connection Check ===")
	fmt.Printf("  Model: %s\n", *model)
	fmt.Printf("  API key length: %d chars\n", len(*apiKey))
	if len(*apiKey) >= 4 {
		fmt.Printf("  API key prefix: %s...\n", (*apiKey)[:4])
	}
	fmt.Printf("  Timeout: %v\n\n", *timeout)

	svc := assistant.NewService(*apiKey, *model, nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Println("Sending test message...")
	start := time.Now()
	reply, err := svc.Send(ctx, &assistant.Request{
		ConversationID: "connection-check",
		Action:         assistant.ActionChat,
		Message:        *message,
	})
	duration := time.Since(start)

	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: assistant request failed\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		fmt.Fprintf(os.Stderr, "Possible causes:\n")
		fmt.Fprintf(os.Stderr, "  1. Invalid or expired OPENAI_API_KEY\n")
		fmt.Fprintf(os.Stderr, "  2. Network connectivity issue\n")
		fmt.Fprintf(os.Stderr, "  3. API quota exceeded\n")
		fmt.Fprintf(os.Stderr, "  4. Unknown model name\n")
		os.Exit(1)
	}

	fmt.Printf("Response time: %v\n", duration)
	fmt.Printf("Reply: %s\n\n", reply)
	fmt.Println("Assistant connection check PASSED")
}
