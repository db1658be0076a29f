package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/delifood-checkout/internal/domain/identity"
	"github.com/xenking/delifood-checkout/internal/domain/product"
	"github.com/xenking/delifood-checkout/internal/storage/postgres"
)

type userJSON struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type productJSON struct {
	Restaurant      string          `json:"restaurant"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	Stock           int             `json:"stock"`
	PreparationTime int             `json:"preparationTime"`
	Inactive        bool            `json:"inactive"`
}

type seedJSON struct {
	Users    []userJSON    `json:"users"`
	Products []productJSON `json:"products"`
}

func main() {
	var (
		databaseURL string
		seedFile    string
		workers     int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedFile, "seed-file", "db/seed/seed.json", "path to the seed JSON file, optionally gzipped (.gz)")
	flag.IntVar(&workers, "workers", 4, "restaurants seeded concurrently")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedFile, workers); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedFile string, workers int) error {
	data, err := readSeed(seedFile)
	if err != nil {
		return err
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	seeder := postgres.NewSeeder(pool)

	ids, err := seedUsers(ctx, seeder, data.Users)
	if err != nil {
		return errors.Wrap(err, "seed users")
	}

	if err := seedProducts(ctx, seeder, ids, data.Products, workers); err != nil {
		return errors.Wrap(err, "seed products")
	}

	return nil
}

// readSeed parses the seed file, decompressing it when it ends in .gz.
func readSeed(path string) (*seedJSON, error) {
	slog.Info("reading seed file", slog.String("path", path))

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open seed file")
	}
	defer f.Close()

	var r io.Reader = bufio.NewReaderSize(f, 1<<16)
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip stream")
		}
		defer gz.Close()
		r = gz
	}

	var data seedJSON
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, errors.Wrap(err, "parse seed JSON")
	}
	return &data, nil
}

// seedUsers upserts every user and returns their ids by username.
func seedUsers(ctx context.Context, seeder *postgres.Seeder, users []userJSON) (map[string]int64, error) {
	slog.Info("upserting users", slog.Int("count", len(users)))

	ids := make(map[string]int64, len(users))
	for _, u := range users {
		role := identity.Role(u.Role)
		if !role.Valid() {
			return nil, errors.Errorf("user %q: unknown role %q", u.Username, u.Role)
		}

		id, err := seeder.UpsertUser(ctx, identity.User{Name: u.Name, Username: u.Username, Role: role}, u.Email)
		if err != nil {
			return nil, err
		}
		ids[u.Username] = id

		slog.Info("upserted user", slog.Int64("id", id), slog.String("username", u.Username), slog.String("role", u.Role))
	}

	return ids, nil
}

// seedProducts upserts products, one goroutine per restaurant.
func seedProducts(ctx context.Context, seeder *postgres.Seeder, restaurants map[string]int64, products []productJSON, workers int) error {
	byRestaurant := make(map[string][]productJSON)
	for _, p := range products {
		if _, ok := restaurants[p.Restaurant]; !ok {
			return errors.Errorf("product %q: unknown restaurant %q", p.Name, p.Restaurant)
		}
		byRestaurant[p.Restaurant] = append(byRestaurant[p.Restaurant], p)
	}

	slog.Info("upserting products",
		slog.Int("count", len(products)),
		slog.Int("restaurants", len(byRestaurant)),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for username, list := range byRestaurant {
		restaurantID := restaurants[username]
		g.Go(func() error {
			for _, p := range list {
				id, err := seeder.UpsertProduct(ctx, product.Product{
					RestaurantID:    restaurantID,
					Name:            p.Name,
					Description:     p.Description,
					Price:           p.Price,
					Stock:           p.Stock,
					PrepTimeMinutes: p.PreparationTime,
					IsActive:        !p.Inactive,
				})
				if err != nil {
					return err
				}

				slog.Info("upserted product",
					slog.Int64("id", id),
					slog.String("restaurant", username),
					slog.String("name", p.Name),
				)
			}
			return nil
		})
	}

	return g.Wait()
}
