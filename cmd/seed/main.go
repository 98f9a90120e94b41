// Command seed loads a catalogue and reader roster from YAML through the
// regular services, so every row obeys the same rules as the API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"
	"gopkg.in/yaml.v3"

	"bibliosys-backend/internal/config"
	"bibliosys-backend/internal/domain"
	"bibliosys-backend/internal/logger"
	"bibliosys-backend/internal/repository/postgres"
	"bibliosys-backend/internal/security"
	"bibliosys-backend/internal/service"
)

type seedItem struct {
	Title  string `yaml:"title"`
	Copies int32  `yaml:"copies"`
}

type seedReader struct {
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Email     string `yaml:"email"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Status    string `yaml:"status"`
}

type SetupData struct {
	Items   []seedItem   `yaml:"items"`
	Readers []seedReader `yaml:"readers"`
}

func main() {
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	seedPath := flag.String("data", "config/seed.example.yaml", "Path to seed data file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)

	if cfg.Storage.Driver != config.StorageDriverPostgres {
		log.Fatalf("Seeding needs the postgres driver, got %q", cfg.Storage.Driver)
	}
	if cfg.Bootstrap.LibrarianUsername == "" {
		log.Fatalf("bootstrap.librarian_username must be set to seed data")
	}

	data, err := readSetupFile(*seedPath)
	if err != nil {
		log.Fatalf("Failed to read seed file: %v", err)
	}

	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	if err := populateData(ctx, cfg, postgres.NewStore(db), data); err != nil {
		log.Fatalf("Failed to populate data: %v", err)
	}
	logger.Info("Seed data populated", "items", len(data.Items), "readers", len(data.Readers))
}

func readSetupFile(filename string) (*SetupData, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var data SetupData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func populateData(ctx context.Context, cfg *config.Config, store *postgres.Store, data *SetupData) error {
	clock := service.Clock(time.Now)
	tokens := security.NewTokenManager(cfg.JWT.Secret, cfg.AccessTokenTTL())
	auth := service.NewAuthService(store, tokens, clock)
	if err := auth.EnsureLibrarian(ctx, cfg.Bootstrap.LibrarianUsername, cfg.Bootstrap.LibrarianPassword); err != nil {
		return err
	}
	account, err := store.Accounts().GetByUsername(ctx, cfg.Bootstrap.LibrarianUsername)
	if err != nil {
		return err
	}
	librarian := account.Principal(nil)

	inventory := service.NewInventoryLedger(store, clock)
	for _, it := range data.Items {
		item, err := inventory.AddStock(ctx, librarian, it.Title, it.Copies)
		if err != nil {
			return err
		}
		logger.Info("Seeded item", "item_id", item.ID, "title", item.Title, "copies", item.TotalCopies)
	}

	readers := service.NewReaderService(store, clock, cfg.Lending.AllocationAttempts)
	for _, r := range data.Readers {
		in := service.RegisterReaderInput{
			FirstName: r.FirstName,
			LastName:  r.LastName,
			Email:     r.Email,
			Username:  r.Username,
			Password:  r.Password,
		}
		if r.Status != "" {
			if in.Status, err = domain.ParseReaderStatus(r.Status); err != nil {
				return err
			}
		}
		reader, acc, err := readers.Register(ctx, librarian, in)
		if errors.Is(err, domain.ErrDuplicate) {
			logger.Warn("Reader already present, skipping", "email", r.Email)
			continue
		}
		if err != nil {
			return err
		}
		logger.Info("Seeded reader", "reader_id", reader.ID, "username", acc.Username, "membership_number", reader.MembershipNumber)
	}
	return nil
}
