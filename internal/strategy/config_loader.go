package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"spot-trader/pkg/db"
)

// Config is one strategy definition from the YAML file.
type Config struct {
	ID     string             `yaml:"id"`
	Name   string             `yaml:"name"`
	Type   string             `yaml:"type"`
	Symbol string             `yaml:"symbol"`
	Amount float64            `yaml:"amount"`
	Active bool               `yaml:"active"`
	Params map[string]float64 `yaml:"params"`
}

type configFile struct {
	Strategies []Config `yaml:"strategies"`
}

// LoadConfigFile parses strategy definitions from a YAML file.
func LoadConfigFile(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy config: %w", err)
	}
	var f configFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse strategy config: %w", err)
	}
	for i, c := range f.Strategies {
		if c.ID == "" || c.Type == "" || c.Symbol == "" {
			return nil, fmt.Errorf("strategy #%d: id, type and symbol are required", i)
		}
	}
	return f.Strategies, nil
}

// SyncToDB mirrors the YAML definitions into the strategies table so
// operators can inspect what is running.
func SyncToDB(ctx context.Context, database *db.Database, configs []Config) error {
	for _, c := range configs {
		params, err := json.Marshal(c.Params)
		if err != nil {
			return fmt.Errorf("marshal params for %s: %w", c.ID, err)
		}
		row := db.StrategyRow{
			ID:           c.ID,
			Name:         c.Name,
			StrategyType: c.Type,
			Symbol:       c.Symbol,
			Params:       string(params),
			IsActive:     c.Active,
		}
		if err := database.UpsertStrategy(ctx, row); err != nil {
			return fmt.Errorf("sync strategy %s: %w", c.ID, err)
		}
	}
	return nil
}

// Build instantiates one strategy from its config.
func Build(c Config) (Strategy, error) {
	param := func(key string, def float64) float64 {
		if v, ok := c.Params[key]; ok {
			return v
		}
		return def
	}

	switch c.Type {
	case "momentum":
		return NewMomentum(
			c.ID, c.Symbol,
			int(param("window", 30)),
			param("enter_rate", 0.01),
			param("exit_rate", 0.01),
			param("volume_mult", 1.5),
			c.Amount,
		), nil
	case "breakout":
		return NewBreakout(
			c.ID, c.Symbol,
			int(param("window", 60)),
			param("volume_mult", 2.0),
			c.Amount,
		), nil
	default:
		return nil, fmt.Errorf("unknown strategy type %q", c.Type)
	}
}

// BuildAll instantiates every active config.
func BuildAll(configs []Config) ([]Strategy, error) {
	var res []Strategy
	for _, c := range configs {
		if !c.Active {
			continue
		}
		s, err := Build(c)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, nil
}
