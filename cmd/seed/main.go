package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/trial-session-booking/internal/config"
	"github.com/hackgods/trial-session-booking/internal/db"
	"github.com/hackgods/trial-session-booking/internal/logger"
	"github.com/hackgods/trial-session-booking/internal/session"
)

var (
	sessionTypes = []string{"intro", "career-guidance", "code-review", "mock-interview", "portfolio-review"}
	timeZones    = []string{"", "UTC", "Asia/Kolkata", "Europe/Berlin", "America/New_York"}
	durations    = []int{15, 30, 45, 60}
	expertise    = []string{"Backend", "Frontend", "Data Science", "DevOps", "Mobile", "Product", "Design", "Security"}
)

func main() {
	mentors := flag.Int("mentors", 20, "number of mentors to create")
	perMentor := flag.Int("sessions", 40, "trial sessions per mentor")
	days := flag.Int("days", 21, "spread sessions over this many days from today")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg)
	if err != nil {
		lg.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	f := gofakeit.New(0)

	ids, err := seedMentors(context.Background(), pool, f, *mentors)
	if err != nil {
		lg.Fatal("seed mentors", zap.Error(err))
	}
	lg.Info("mentors seeded", zap.Int("count", len(ids)))

	total := 0
	for _, id := range ids {
		n, err := seedSessions(context.Background(), pool, f, id, *perMentor, *days)
		if err != nil {
			lg.Fatal("seed sessions", zap.String("mentor_id", id.String()), zap.Error(err))
		}
		total += n
	}

	lg.Info("seed complete", zap.Int("mentors", len(ids)), zap.Int("sessions", total))
	for _, id := range ids {
		fmt.Println(id)
	}
}

func seedMentors(ctx context.Context, pool *pgxpool.Pool, f *gofakeit.Faker, count int) ([]uuid.UUID, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO mentors (id, name, expertise, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, f.Name(), f.RandomString(expertise))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// seedSessions creates count sessions on whole half hours between 08:00 and
// 20:00 UTC. Roughly a third start out already taken.
func seedSessions(ctx context.Context, pool *pgxpool.Pool, f *gofakeit.Faker, mentorID uuid.UUID, count, days int) (int, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	today := time.Now().UTC().Truncate(24 * time.Hour)

	for i := 0; i < count; i++ {
		start := today.
			AddDate(0, 0, f.Number(1, days)).
			Add(time.Duration(f.Number(16, 39)) * 30 * time.Minute)

		status := session.StatusAvailable
		switch f.Number(0, 5) {
		case 0:
			status = session.StatusBooked
		case 1:
			status = session.StatusCancelled
		}

		sessionType := f.RandomString(sessionTypes)

		_, err := tx.Exec(ctx, `
			INSERT INTO trial_sessions (
				id, mentor_id, scheduled_at, duration_minutes, status, session_type, time_zone,
				is_recurring, allow_rescheduling, require_confirmation,
				title, description, special_instructions, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, NULLIF($13, ''), now(), now())
		`,
			uuid.New(), mentorID, start, durations[f.Number(0, len(durations)-1)], string(status),
			sessionType, f.RandomString(timeZones),
			f.Bool(), f.Bool(), f.Number(0, 3) == 0,
			fmt.Sprintf("%s with a %s", sessionType, f.JobTitle()),
			fmt.Sprintf("A short %s session about %s.", sessionType, f.BuzzWord()),
			f.RandomString([]string{"", "Bring your resume.", "Have a repo link ready.", "Camera on, please."}),
		)
		if err != nil {
			return i, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return count, nil
}
