package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"contactdesk/internal/config"
	"contactdesk/internal/database"
	"contactdesk/internal/domain/contact"
	"contactdesk/internal/pkg/logger"
)

var (
	firstNames = []string{"Aigerim", "Bekzat", "Dina", "Erlan", "Gulnara", "John", "Joanna", "Marat", "Saule", "Timur"}
	lastNames  = []string{"Abenova", "Doe", "Iskakov", "Johnson", "Kim", "Lee", "Nurlanov", "Smith"}
)

func main() {
	count := flag.Int("count", 30, "number of demo contacts")
	reset := flag.Bool("reset", false, "delete existing contacts first")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	zl, err := logger.New(cfg.LogLevel, true)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Sync() }()

	db, err := database.Connect(cfg.DatabaseURL, zl)
	if err != nil {
		zl.Fatal("DB connection failed", zap.Error(err))
	}
	if err := contact.Migrate(db); err != nil {
		zl.Fatal("migrate failed", zap.Error(err))
	}

	if *reset {
		if err := db.Where("1 = 1").Delete(&contact.Contact{}).Error; err != nil {
			zl.Fatal("cleanup failed", zap.Error(err))
		}
		zl.Info("existing contacts removed")
	}

	svc := contact.NewService(contact.NewRepository(db), nil, zl)
	ctx := context.Background()

	// Inserted in batches to stay under the batch limit.
	reqs := demoContacts(*count, rand.New(rand.NewSource(42)))
	for start := 0; start < len(reqs); start += contact.MaxBatchSize {
		end := min(start+contact.MaxBatchSize, len(reqs))
		if _, err := svc.CreateBatch(ctx, reqs[start:end]); err != nil {
			zl.Fatal("seed failed", zap.Error(err))
		}
	}
	zl.Info("seed complete", zap.Int("contacts", len(reqs)))
}

func demoContacts(n int, rnd *rand.Rand) []contact.CreateContactRequest {
	reqs := make([]contact.CreateContactRequest, 0, n)
	for i := 0; i < n; i++ {
		first := firstNames[rnd.Intn(len(firstNames))]
		last := lastNames[rnd.Intn(len(lastNames))]
		reqs = append(reqs, contact.CreateContactRequest{
			Name:  first + " " + last,
			Phone: fmt.Sprintf("7701%07d", rnd.Intn(10_000_000)),
			Email: fmt.Sprintf("%s.%s%d@example.com", strings.ToLower(first), strings.ToLower(last), i),
			Age:   18 + rnd.Intn(103),
		})
	}
	return reqs
}
