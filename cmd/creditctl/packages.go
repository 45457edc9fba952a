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
	"fmt"
	"os"
	"time"

	"credit-ledger-go/internal/auth"
	"credit-ledger-go/internal/catalog"
	"credit-ledger-go/internal/common"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(packagesCmd)
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
}

var packagesCmd = &cobra.Command{
	Use:   "packages",
	Short: "List the purchasable credit packages",
	RunE: func(cmd *cobra.Command, args []string) error {
		packages, err := catalog.Load(cfg.Ledger.CatalogFile)
		if err != nil {
			return err
		}

		common.PrintHeader(os.Stdout, "CREDIT PACKAGES")
		common.PrintPackages(os.Stdout, packages.List())
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token USER_ID",
	Short: "Mint a bearer token for a user's credit routes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.HTTP.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}
		ttl, _ := cmd.Flags().GetDuration("ttl")

		token, err := auth.NewTokenManager(cfg.HTTP.JWTSecret, cfg.HTTP.JWTIssuer).Generate(args[0], ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}
