package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"aquaflow/internal/auth"
	"aquaflow/internal/config"
	"aquaflow/internal/models"
	"aquaflow/internal/remote"
	"aquaflow/internal/store"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SettingsFile is the optional catalog seed. Omitted fields keep the defaults.
type SettingsFile struct {
	GallonTypes []struct {
		Name  string  `yaml:"name"`
		Price float64 `yaml:"price"`
	} `yaml:"gallon_types"`
	TimeSlots      []string `yaml:"time_slots"`
	GallonPrice    *float64 `yaml:"gallon_price"`
	NewGallonPrice *float64 `yaml:"new_gallon_price"`
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
		configPath   = flag.String("config", "configs/config.yaml", "path to config.yaml")
		settingsPath = flag.String("settings", "", "optional settings seed (yaml)")
		force        = flag.Bool("force", false, "overwrite settings keys that already exist")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	settings := models.DefaultSettings()
	if *settingsPath != "" {
		if settings, err = readSettings(*settingsPath, settings); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := remote.NewClient(cfg.Client.BaseURL, cfg.Client.APIKey, cfg.Client.APIExtra, cfg.Client.Timeout, &logger)
	snap, err := client.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	keys := make([]string, 0, 4)
	for _, k := range []string{models.SettingGallonTypes, models.SettingTimeSlots, models.SettingGallonPrice, models.SettingNewGallonPrice} {
		if _, exists := snap.Settings[k]; !exists || *force {
			keys = append(keys, k)
		}
	}
	if len(keys) > 0 {
		rec, err := store.RecordOf(settings.Map(keys...))
		if err != nil {
			return err
		}
		if err := client.Send(ctx, models.KindSettings, rec); err != nil {
			return fmt.Errorf("seed settings: %w", err)
		}
	}

	admin, err := seedAdmin(ctx, client, cfg.BootstrapAdmin, snap)
	if err != nil {
		return err
	}

	logger.Info().Strs("settings_keys", keys).Str("admin", admin).Msg("Seed completed")
	return nil
}

func readSettings(path string, base models.Settings) (models.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read settings: %w", err)
	}
	var f SettingsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return base, fmt.Errorf("parse settings: %w", err)
	}

	if f.GallonPrice != nil {
		base.GallonPrice = decimal.NewFromFloat(*f.GallonPrice)
	}
	if f.NewGallonPrice != nil {
		base.NewGallonPrice = decimal.NewFromFloat(*f.NewGallonPrice)
	}
	if len(f.GallonTypes) > 0 {
		base.GallonTypes = base.GallonTypes[:0:0]
		for _, g := range f.GallonTypes {
			price := base.GallonPrice
			if g.Price > 0 {
				price = decimal.NewFromFloat(g.Price)
			}
			base.GallonTypes = append(base.GallonTypes, models.GallonType{Name: g.Name, Price: price})
		}
	}
	if len(f.TimeSlots) > 0 {
		base.TimeSlots = f.TimeSlots
	}
	return base, nil
}

// seedAdmin writes the bootstrap admin unless an account with the same mobile
// or email already exists. It returns the admin id, or "" when skipped.
func seedAdmin(ctx context.Context, client *remote.Client, cfg config.BootstrapAdminConfig, snap store.Snapshot) (string, error) {
	if cfg.Password == "" {
		return "", nil
	}
	for _, rec := range snap.Users {
		var u models.User
		if err := rec.Decode(&u); err != nil {
			continue
		}
		if (cfg.Mobile != "" && u.Matches(cfg.Mobile)) || (cfg.Email != "" && u.Matches(cfg.Email)) {
			return "", nil
		}
	}

	hash, err := auth.HashPassword(cfg.Password)
	if err != nil {
		return "", err
	}
	admin := models.User{
		ID:       models.NewID("U", time.Now()),
		FullName: cfg.FullName,
		Mobile:   cfg.Mobile,
		Email:    cfg.Email,
		Password: hash,
		Type:     models.RoleAdmin,
	}
	rec, err := store.RecordOf(admin)
	if err != nil {
		return "", err
	}
	if err := client.Send(ctx, models.KindUser, rec); err != nil {
		return "", fmt.Errorf("seed admin: %w", err)
	}
	return admin.ID, nil
}
