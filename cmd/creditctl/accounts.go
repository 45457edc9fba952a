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
	"strings"

	"credit-ledger-go/internal/audit"
	"credit-ledger-go/internal/common"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(openAccountCmd)
	rootCmd.AddCommand(balancesCmd)
	rootCmd.AddCommand(reconcileCmd)

	initCmd.Flags().StringSlice("users", nil, "Open accounts for these user ids")
	balancesCmd.Flags().String("user", "", "Filter by a single user id (optional)")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the schema and optionally open accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		users, _ := cmd.Flags().GetStringSlice("users")

		return withServices(func(ctx context.Context, services *common.Services) error {
			fmt.Printf("✓ Schema ready (%s backend)\n", cfg.Backend)

			var failed []string
			for _, userId := range users {
				account, err := services.Ledger.GetBalance(ctx, strings.TrimSpace(userId))
				if err != nil {
					logger.Error("Failed to open account", zap.String("user_id", userId), zap.Error(err))
					fmt.Printf("✗ %s: %v\n", userId, err)
					failed = append(failed, userId)
					continue
				}
				fmt.Printf("✓ %s: %d credits\n", account.UserId, account.TotalCredits)
			}

			if len(failed) > 0 {
				return fmt.Errorf("failed to open %d accounts: %s", len(failed), strings.Join(failed, ", "))
			}
			return nil
		})
	},
}

var openAccountCmd = &cobra.Command{
	Use:   "open-account USER_ID",
	Short: "Open a credit account for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(func(ctx context.Context, services *common.Services) error {
			account, err := services.Store.CreateAccount(ctx, args[0])
			if err != nil {
				return err
			}
			common.PrintAccountSummary(os.Stdout, *account)
			return nil
		})
	},
}

type balanceStats struct {
	totalAccounts   int
	totalCredits    int64
	inconsistent int
}

var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Print a balance report for all accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		userFilter, _ := cmd.Flags().GetString("user")

		return withServices(func(ctx context.Context, services *common.Services) error {
			accounts, err := common.InitializeAccounts(ctx, services.Store, userFilter, logger)
			if err != nil {
				return err
			}

			common.PrintHeader(os.Stdout, "CREDIT BALANCE REPORT")

			stats := balanceStats{}
			for _, account := range accounts {
				stats.totalAccounts++
				stats.totalCredits += account.TotalCredits
				if !account.Consistent() {
					stats.inconsistent++
				}
				common.PrintAccountSummary(os.Stdout, account)
			}

			summary := fmt.Sprintf("SUMMARY: %d accounts holding %d credits (%d inconsistent)",
				stats.totalAccounts, stats.totalCredits, stats.inconsistent)
			common.PrintFooter(os.Stdout, summary)

			logger.Info("Balance query completed",
				zap.Int("accounts", stats.totalAccounts),
				zap.Int64("total_credits", stats.totalCredits))
			return nil
		})
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [USER_ID]",
	Short: "Check stored balances against the transaction log",
	Long:  `Reconcile one account, or every account when no user id is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(func(ctx context.Context, services *common.Services) error {
			if len(args) == 1 {
				if err := services.Ledger.Reconcile(ctx, args[0]); err != nil {
					fmt.Printf("✗ %s: %v\n", args[0], err)
					return err
				}
				fmt.Printf("✓ %s: balance matches transaction log\n", args[0])
				return nil
			}

			report, err := audit.NewAuditor(services.Ledger, cfg.Ledger.AuditInterval).Sweep(ctx)
			if err != nil {
				return err
			}

			common.PrintHeader(os.Stdout, "RECONCILIATION REPORT")
			for _, userId := range report.Mismatched {
				fmt.Printf("✗ %s: balance does not match transaction log\n", userId)
			}
			for userId, err := range report.Failed {
				fmt.Printf("~ %s: %v\n", userId, err)
			}
			common.PrintFooter(os.Stdout, fmt.Sprintf("SUMMARY: %d accounts checked, %d mismatched, %d failed",
				report.Checked, len(report.Mismatched), len(report.Failed)))

			if !report.OK() {
				return fmt.Errorf("reconciliation found %d problems", len(report.Mismatched)+len(report.Failed))
			}
			return nil
		})
	},
}
