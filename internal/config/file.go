package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/terminal"
)

// fileConfig is the YAML overlay. Zero values leave the env-derived settings alone.
type fileConfig struct {
	Charge struct {
		Amount      int64  `yaml:"amount"`
		Currency    string `yaml:"currency"`
		Description string `yaml:"description"`
	} `yaml:"charge"`
	Cart struct {
		ItemDescription string `yaml:"item_description"`
		Tax             *int64 `yaml:"tax"`
	} `yaml:"cart"`
	Terminal struct {
		TestCard          string `yaml:"test_card"`
		RegisteredReaders []struct {
			ID           string `yaml:"id"`
			Label        string `yaml:"label"`
			SerialNumber string `yaml:"serial_number"`
			DeviceType   string `yaml:"device_type"`
			IPAddress    string `yaml:"ip_address"`
			Location     string `yaml:"location"`
		} `yaml:"registered_readers"`
	} `yaml:"terminal"`
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Charge.Amount != 0 {
		cfg.Charge.Amount = fc.Charge.Amount
	}
	if fc.Charge.Currency != "" {
		cfg.Charge.Currency = fc.Charge.Currency
	}
	if fc.Charge.Description != "" {
		cfg.Charge.Description = fc.Charge.Description
	}
	if fc.Cart.ItemDescription != "" {
		cfg.Cart.ItemDescription = fc.Cart.ItemDescription
	}
	if fc.Cart.Tax != nil {
		cfg.Cart.Tax = *fc.Cart.Tax
	}
	if fc.Terminal.TestCard != "" {
		card, err := terminal.ParseTestCard(fc.Terminal.TestCard)
		if err != nil {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		cfg.Terminal.TestCard = card
	}
	for i, r := range fc.Terminal.RegisteredReaders {
		if r.ID == "" {
			return fmt.Errorf("config file %s: registered reader %d has no id", path, i)
		}
		cfg.Terminal.RegisteredReaders = append(cfg.Terminal.RegisteredReaders, terminal.Reader{
			ID:           r.ID,
			Label:        r.Label,
			SerialNumber: r.SerialNumber,
			DeviceType:   r.DeviceType,
			IPAddress:    r.IPAddress,
			Location:     r.Location,
			Status:       "online",
		})
	}
	return nil
}
