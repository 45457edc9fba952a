package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"credit-ledger-go/internal/models"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

var ErrUnknownPackage = errors.New("unknown package")

// Catalog is the immutable set of purchasable credit packages
type Catalog struct {
	packages map[string]models.PackageCatalogEntry
	order    []string
}

type packageFile struct {
	Id           string `yaml:"id" toml:"id"`
	DisplayName  string `yaml:"display_name" toml:"display_name"`
	BaseCredits  int64  `yaml:"base_credits" toml:"base_credits"`
	BonusCredits int64  `yaml:"bonus_credits" toml:"bonus_credits"`
	PriceUSD     string `yaml:"price_usd" toml:"price_usd"`
}

type catalogDoc struct {
	Packages []packageFile `yaml:"packages" toml:"packages"`
}

// Default returns the built-in package list
func Default() *Catalog {
	c, err := New([]models.PackageCatalogEntry{
		{Id: "starter", DisplayName: "Starter", BaseCredits: 50, BonusCredits: 0, PriceUSD: decimal.RequireFromString("4.99")},
		{Id: "popular", DisplayName: "Popular", BaseCredits: 150, BonusCredits: 25, PriceUSD: decimal.RequireFromString("12.99")},
		{Id: "pro", DisplayName: "Pro", BaseCredits: 400, BonusCredits: 100, PriceUSD: decimal.RequireFromString("29.99")},
		{Id: "ultimate", DisplayName: "Ultimate", BaseCredits: 1000, BonusCredits: 300, PriceUSD: decimal.RequireFromString("59.99")},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// New validates entries and builds a catalog preserving their order
func New(entries []models.PackageCatalogEntry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog has no packages")
	}

	c := &Catalog{packages: make(map[string]models.PackageCatalogEntry, len(entries))}
	for i, entry := range entries {
		if entry.Id == "" {
			return nil, fmt.Errorf("package at index %d missing id", i)
		}
		if _, exists := c.packages[entry.Id]; exists {
			return nil, fmt.Errorf("duplicate package id %q", entry.Id)
		}
		if entry.BaseCredits <= 0 {
			return nil, fmt.Errorf("package %s must grant positive base credits, got %d", entry.Id, entry.BaseCredits)
		}
		if entry.BonusCredits < 0 {
			return nil, fmt.Errorf("package %s has negative bonus credits %d", entry.Id, entry.BonusCredits)
		}
		if !entry.PriceUSD.IsPositive() {
			return nil, fmt.Errorf("package %s must have a positive price, got %s", entry.Id, entry.PriceUSD)
		}
		if entry.DisplayName == "" {
			entry.DisplayName = entry.Id
		}
		c.packages[entry.Id] = entry
		c.order = append(c.order, entry.Id)
	}
	return c, nil
}

// Load reads a catalog from a YAML or TOML file, chosen by extension.
// An empty path yields the built-in catalog.
func Load(catalogFile string) (*Catalog, error) {
	if catalogFile == "" {
		zap.L().Info("Using built-in package catalog")
		return Default(), nil
	}

	var catalogPath string
	if filepath.IsAbs(catalogFile) {
		catalogPath = catalogFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		catalogPath = filepath.Join(wd, catalogFile)
	}

	data, err := os.ReadFile(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", catalogFile, err)
	}

	var file catalogDoc
	switch ext := strings.ToLower(filepath.Ext(catalogPath)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".toml":
		err = toml.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", catalogFile, err)
	}

	entries := make([]models.PackageCatalogEntry, len(file.Packages))
	for i, p := range file.Packages {
		price, err := decimal.NewFromString(p.PriceUSD)
		if err != nil {
			return nil, fmt.Errorf("package at index %d has invalid price %q: %w", i, p.PriceUSD, err)
		}
		entries[i] = models.PackageCatalogEntry{
			Id:           p.Id,
			DisplayName:  p.DisplayName,
			BaseCredits:  p.BaseCredits,
			BonusCredits: p.BonusCredits,
			PriceUSD:     price,
		}
	}

	c, err := New(entries)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", catalogFile, err)
	}

	zap.L().Info("Loaded package catalog",
		zap.String("file", catalogPath),
		zap.Int("packages", len(entries)))
	return c, nil
}

// Get looks up a package by id
func (c *Catalog) Get(packageId string) (models.PackageCatalogEntry, error) {
	entry, ok := c.packages[packageId]
	if !ok {
		return models.PackageCatalogEntry{}, fmt.Errorf("%w: %q", ErrUnknownPackage, packageId)
	}
	return entry, nil
}

// List returns packages in catalog order
func (c *Catalog) List() []models.PackageCatalogEntry {
	entries := make([]models.PackageCatalogEntry, 0, len(c.order))
	for _, id := range c.order {
		entries = append(entries, c.packages[id])
	}
	return entries
}
