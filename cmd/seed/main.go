package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	"github.com/hackgods/barbershop-scheduling/internal/app"
	"github.com/hackgods/barbershop-scheduling/internal/config"
	"github.com/hackgods/barbershop-scheduling/internal/observability"
	"github.com/hackgods/barbershop-scheduling/internal/scheduler"
	"github.com/hackgods/barbershop-scheduling/internal/validate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.StoreBackend != config.BackendPostgres {
		logger.Warn("seeding the in-memory store; data is discarded on exit")
	}

	customers := getInt("SEED_CUSTOMERS", 200)
	bookings := getInt("SEED_BOOKINGS", 500)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deps, err := app.Open(ctx, cfg, logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel)), nil)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer deps.Close()

	faker := gofakeit.New(0)

	names, err := seedCustomers(ctx, deps.Scheduler, faker, customers, logger)
	if err != nil {
		logger.Fatal("seed customers", zap.Error(err))
	}

	if err := seedBookings(ctx, deps.Scheduler, faker, names, bookings, logger); err != nil {
		logger.Fatal("seed bookings", zap.Error(err))
	}

	logger.Info("seed complete")
}

func seedCustomers(ctx context.Context, s *scheduler.Scheduler, faker *gofakeit.Faker, count int, logger *zap.Logger) ([]string, error) {
	logger.Info("seeding customers", zap.Int("count", count))

	names := make([]string, 0, count)
	for i := 0; i < count; i++ {
		c, err := s.RegisterCustomer(ctx, faker.Name(), fakePhone(faker))
		if err != nil {
			return nil, err
		}
		names = append(names, c.Name)
	}

	logger.Info("customers seeded", zap.Int("count", len(names)))
	return names, nil
}

// seedBookings books random slots in the next 30 days during opening hours.
// Collisions are expected and only counted.
func seedBookings(ctx context.Context, s *scheduler.Scheduler, faker *gofakeit.Faker, names []string, count int, logger *zap.Logger) error {
	if len(names) == 0 {
		return errors.New("no customers to book for")
	}
	logger.Info("seeding bookings", zap.Int("attempts", count))

	now := time.Now()
	day := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.Local)
	var booked, taken int

	for i := 0; i < count; i++ {
		slot := day.AddDate(0, 0, faker.Number(0, 29)).
			Add(time.Duration(faker.Number(9, 18)) * time.Hour).
			Add(time.Duration(faker.RandomInt([]int{0, 30})) * time.Minute).
			Format(validate.SlotLayout)

		_, err := s.BookAppointment(ctx, names[faker.Number(0, len(names)-1)], slot)
		switch {
		case err == nil:
			booked++
		case errors.Is(err, scheduler.ErrSlotTaken):
			taken++
		default:
			return err
		}
	}

	logger.Info("bookings seeded", zap.Int("booked", booked), zap.Int("slot_taken", taken))
	return nil
}

// fakePhone returns a phone number in the registry format (DD) DDDDD-DDDD.
func fakePhone(faker *gofakeit.Faker) string {
	return fmt.Sprintf("(%02d) 9%04d-%04d", faker.Number(11, 99), faker.Number(0, 9999), faker.Number(0, 9999))
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
