package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"rungroj/internal/database"
	"rungroj/internal/domain"
	"rungroj/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type FleetConfig struct {
	Vehicles []models.Vehicle `yaml:"vehicles"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		fleetPath = flag.String("fleet", "configs/fleet.yaml", "path to fleet.yaml")
		dbPath    = flag.String("db", "./data/rungroj.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*fleetPath)
	if err != nil {
		return fmt.Errorf("read fleet: %w", err)
	}
	var cfg FleetConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse fleet: %w", err)
	}
	if len(cfg.Vehicles) == 0 {
		return fmt.Errorf("no vehicles in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := 0
	updated := 0
	for i := range cfg.Vehicles {
		v := &cfg.Vehicles[i]
		if v.ID == "" || v.Name == "" {
			continue
		}
		if v.ImageURL == "" {
			v.ImageURL = models.DefaultImage(v.Name)
		}

		_, err = db.GetVehicle(ctx, v.ID)
		switch {
		case err == nil:
			updated++
		case errors.Is(err, domain.ErrNotFound):
			created++
		default:
			return fmt.Errorf("get %s: %w", v.ID, err)
		}
		if err = db.UpsertVehicle(ctx, v); err != nil {
			return fmt.Errorf("upsert %s: %w", v.ID, err)
		}
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
