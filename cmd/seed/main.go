package main

import (
	"context"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"medsched/internal/config"
	"medsched/internal/domain"
	"medsched/internal/store/postgres"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{MaxOpenConns: 4})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer func() { _ = postgres.Close(db) }()

	gofakeit.Seed(time.Now().UnixNano())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := seedDoctors(ctx, db, 50); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, db *bun.DB, count int) error {
	log.Printf("seeding %d doctors with weekly schedules", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}
	slotLengths := []int{15, 20, 30, 45, 60}

	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i := 0; i < count; i++ {
			doctor := &domain.Doctor{
				Name:        gofakeit.Name(),
				Specialty:   specialties[gofakeit.Number(0, len(specialties)-1)],
				Active:      true,
				IsAvailable: gofakeit.Number(0, 9) > 0,
			}
			if _, err := tx.NewInsert().Model(doctor).Exec(ctx); err != nil {
				return err
			}

			slot := slotLengths[gofakeit.Number(0, len(slotLengths)-1)]
			rules := weeklyRules(doctor, slot)
			if _, err := tx.NewInsert().Model(&rules).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// weeklyRules builds a Monday-Friday schedule: a morning block, and on most
// days an afternoon block after a lunch gap.
func weeklyRules(doctor *domain.Doctor, slot int) []domain.AvailabilityRule {
	rules := make([]domain.AvailabilityRule, 0, 10)
	for day := time.Monday; day <= time.Friday; day++ {
		rules = append(rules, domain.AvailabilityRule{
			DoctorID:     doctor.ID,
			DayOfWeek:    day,
			StartMinutes: 9 * 60,
			EndMinutes:   12 * 60,
			SlotMinutes:  slot,
			Active:       true,
		})
		if gofakeit.Number(0, 4) > 0 {
			rules = append(rules, domain.AvailabilityRule{
				DoctorID:     doctor.ID,
				DayOfWeek:    day,
				StartMinutes: 13 * 60,
				EndMinutes:   17 * 60,
				SlotMinutes:  slot,
				Active:       true,
			})
		}
	}
	return rules
}
