// Command seed-authz writes the operator tuples for a terminal into OpenFGA
// and verifies them.
package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/authz"
	xlog "github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/log"
)

func main() {
	_ = godotenv.Load()
	logger := xlog.Configure(xlog.Config{Service: "seed-authz"})

	api := getenv("OPENFGA_API_URL", "http://localhost:8081")
	store := os.Getenv("OPENFGA_STORE_ID")
	if store == "" {
		logger.Fatal().Msg("OPENFGA_STORE_ID not set. Create a store and export its ID.")
	}
	object := authz.TerminalObject(getenv("SERVICE_NAME", "terminal-reader-demo"))
	operators := strings.Split(getenv("SEED_OPERATORS", "alice"), ",")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client := authz.NewOpenFGAClient(api, store)

	var tuples []authz.TupleKey
	for _, op := range operators {
		op = strings.TrimSpace(op)
		if op == "" {
			continue
		}
		tuples = append(tuples, authz.TupleKey{User: "user:" + op, Relation: authz.RelationOperator, Object: object})
	}
	if err := client.Write(ctx, tuples); err != nil {
		logger.Fatal().Err(err).Msg("write tuples")
	}
	logger.Info().Int("tuples", len(tuples)).Str("object", object).Msg("seeded tuples")

	for _, tk := range tuples {
		allowed, err := client.Check(ctx, tk.User, object, authz.RelationOperator)
		if err != nil {
			logger.Fatal().Err(err).Str("user", tk.User).Msg("check operator")
		}
		if !allowed {
			logger.Fatal().Str("user", tk.User).Msg("seeded operator was denied")
		}
	}

	denied, err := client.Check(ctx, "user:anonymous", object, authz.RelationOperator)
	if err != nil {
		logger.Fatal().Err(err).Msg("check anonymous")
	}
	if denied {
		logger.Fatal().Msg("anonymous principal must not operate the terminal")
	}
	logger.Info().Msg("Authz seed verification passed")
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
