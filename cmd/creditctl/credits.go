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

	"credit-ledger-go/internal/common"
	"credit-ledger-go/internal/ledger"
	"credit-ledger-go/internal/models"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(grantCmd)
	rootCmd.AddCommand(debitCmd)
	rootCmd.AddCommand(bonusCmd)

	historyCmd.Flags().Int("limit", 20, "Rows per page")
	historyCmd.Flags().String("cursor", "", "Continue from a previous page")
	grantCmd.Flags().String("description", "Manual grant", "Transaction description")
	debitCmd.Flags().String("description", "Manual debit", "Transaction description")
}

var historyCmd = &cobra.Command{
	Use:   "history USER_ID",
	Short: "List a user's transactions, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		cursor, _ := cmd.Flags().GetString("cursor")

		return withServices(func(ctx context.Context, services *common.Services) error {
			page, err := services.Ledger.ListTransactions(ctx, args[0], limit, cursor)
			if err != nil {
				return err
			}

			common.PrintTransactions(os.Stdout, args[0], page.Transactions)
			if page.NextCursor != "" {
				fmt.Printf("\nMore rows: creditctl history %s --cursor %s\n", args[0], page.NextCursor)
			}
			return nil
		})
	},
}

var grantCmd = &cobra.Command{
	Use:   "grant USER_ID AMOUNT",
	Short: "Grant earned credits to a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		description, _ := cmd.Flags().GetString("description")

		return withServices(func(ctx context.Context, services *common.Services) error {
			tx, err := services.Ledger.Credit(ctx, ledger.CreditParams{
				UserId:      args[0],
				Amount:      amount,
				Type:        models.TransactionEarned,
				Description: description,
			})
			if err != nil {
				return err
			}
			fmt.Printf("✓ Granted %d credits to %s (balance %d)\n", amount, args[0], tx.BalanceAfter)
			return nil
		})
	},
}

var debitCmd = &cobra.Command{
	Use:   "debit USER_ID AMOUNT",
	Short: "Spend credits from a user's balance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		description, _ := cmd.Flags().GetString("description")

		return withServices(func(ctx context.Context, services *common.Services) error {
			tx, err := services.Ledger.Debit(ctx, args[0], amount, description)
			if err != nil {
				fmt.Printf("✗ Debit failed (%s): %v\n", ledger.Kind(err), err)
				return err
			}
			fmt.Printf("✓ Debited %d credits from %s (balance %d)\n", amount, args[0], tx.BalanceAfter)
			return nil
		})
	},
}

var bonusCmd = &cobra.Command{
	Use:   "bonus USER_ID",
	Short: "Claim today's daily bonus for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(func(ctx context.Context, services *common.Services) error {
			tx, granted, err := services.Ledger.ClaimDailyBonus(ctx, args[0])
			if err != nil {
				return err
			}
			if !granted {
				fmt.Printf("~ %s already claimed today's bonus\n", args[0])
				return nil
			}
			fmt.Printf("✓ Granted %d bonus credits to %s (balance %d)\n", tx.Amount, args[0], tx.BalanceAfter)
			return nil
		})
	},
}
