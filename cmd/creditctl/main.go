/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"credit-ledger-go/internal/common"
	"credit-ledger-go/internal/config"
	"credit-ledger-go/internal/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "time/tzdata"
)

var (
	cfg    *models.Config
	logger *zap.Logger

	loggerCleanup = func() {}
	dbPathFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "creditctl",
	Short: "Operate the credit ledger",
	Long: `creditctl inspects and adjusts credit accounts directly against the
configured store. It reads the same environment (and .env file) as the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if dbPathFlag != "" {
			loaded.Database.Path = dbPathFlag
		}
		cfg = loaded

		logger, loggerCleanup = common.InitializeLogger()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		loggerCleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "SQLite database path (overrides DATABASE_PATH)")
}

// withServices opens the store and ledger for the duration of fn
func withServices(fn func(ctx context.Context, services *common.Services) error) error {
	ctx := context.Background()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer services.Close()

	return fn(ctx, services)
}

func parseAmount(raw string) (int64, error) {
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: must be a whole number of credits", raw)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("invalid amount %d: must be positive", amount)
	}
	return amount, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
