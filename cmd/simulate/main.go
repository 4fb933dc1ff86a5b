package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/trial-session-booking/internal/booking"
	"github.com/hackgods/trial-session-booking/internal/config"
	"github.com/hackgods/trial-session-booking/internal/logger"
	"github.com/hackgods/trial-session-booking/internal/session"
)

type SimConfig struct {
	MentorIDs    []uuid.UUID
	Mentees      int
	Attempts     int
	ConfirmRatio float64
	Duration     time.Duration
	Contend      bool // every mentee targets the recommended day's first open slot
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Load    OperationMetrics
	Booking OperationMetrics
	Confirm OperationMetrics

	confirmed int64
	pending   int64
	stale     int64
	transport int64
}

// Simulator runs one booking engine per simulated mentee against a live API.
// Mentees of the same mentor compete for the same sessions.
type Simulator struct {
	config  SimConfig
	client  *session.Client
	cfg     config.Config
	logger  *zap.Logger
	metrics Metrics
}

func main() {
	mentors := flag.String("mentors", "", "comma separated mentor IDs")
	mentees := flag.Int("mentees", 20, "concurrent simulated mentees")
	attempts := flag.Int("attempts", 3, "booking attempts per mentee")
	confirmRatio := flag.Float64("confirm-ratio", 0.5, "share of pending bookings the mentor confirms")
	duration := flag.Duration("duration", time.Minute, "overall time limit")
	contend := flag.Bool("contend", false, "all mentees race for the same recommended slot")
	flag.Parse()

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	lg, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	simCfg := SimConfig{
		Mentees:      *mentees,
		Attempts:     *attempts,
		ConfirmRatio: *confirmRatio,
		Duration:     *duration,
		Contend:      *contend,
	}
	for _, raw := range strings.Split(*mentors, ",") {
		if raw = strings.TrimSpace(raw); raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			lg.Fatal("invalid mentor ID", zap.String("value", raw), zap.Error(err))
		}
		simCfg.MentorIDs = append(simCfg.MentorIDs, id)
	}
	if err := validateConfig(simCfg); err != nil {
		lg.Fatal("invalid simulation config", zap.Error(err))
	}

	sim := &Simulator{
		config: simCfg,
		client: session.NewClient(cfg.Booking.APIBaseURL, &http.Client{Timeout: cfg.Booking.RequestTimeout}),
		cfg:    cfg,
		logger: lg,
	}

	if err := sim.Run(context.Background()); err != nil {
		lg.Error("simulation aborted", zap.Error(err))
	}
	sim.PrintReport()
}

func validateConfig(cfg SimConfig) error {
	if len(cfg.MentorIDs) == 0 {
		return errors.New("-mentors is required")
	}
	if cfg.Mentees <= 0 {
		return errors.New("-mentees must be > 0")
	}
	if cfg.Attempts <= 0 {
		return errors.New("-attempts must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("-duration must be > 0")
	}
	return nil
}

func (s *Simulator) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Duration)
	defer cancel()

	s.logger.Info("starting simulation",
		zap.Int("mentors", len(s.config.MentorIDs)),
		zap.Int("mentees", s.config.Mentees),
		zap.Int("attempts", s.config.Attempts))

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.config.Mentees; i++ {
		mentorID := s.config.MentorIDs[i%len(s.config.MentorIDs)]
		seed := uint64(time.Now().UnixNano()) + uint64(i)
		g.Go(func() error {
			return s.mentee(ctx, mentorID, seed)
		})
	}

	err := g.Wait()
	s.logger.Info("simulation complete")
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// mentee only returns an error for engine misuse; booking failures are counted.
func (s *Simulator) mentee(ctx context.Context, mentorID uuid.UUID, seed uint64) error {
	f := gofakeit.New(seed)
	rng := rand.New(rand.NewSource(int64(seed)))

	loc, err := s.cfg.Booking.Location()
	if err != nil {
		return err
	}

	engine := booking.NewEngine(mentorID, s.client, booking.Options{
		PageSize: s.cfg.Booking.PageSize,
		Location: loc,
		Identity: &booking.Identity{Name: f.Name(), Email: f.Email(), Phone: f.Phone()},
		Logger:   s.logger.Named("booking"),
	})
	defer engine.Stop()

	start := time.Now()
	err = engine.Start(ctx)
	s.metrics.Load.Record(time.Since(start), err == nil, false)
	if err != nil && !errors.Is(err, booking.ErrDataFetchFailure) {
		return err
	}

	for attempt := 0; attempt < s.config.Attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		slot, ok := pickSlot(engine, rng, s.config.Contend)
		if !ok {
			if err := engine.Refresh(ctx); err != nil && !errors.Is(err, booking.ErrDataFetchFailure) {
				return err
			}
			continue
		}

		start := time.Now()
		outcome, err := engine.Book(ctx)
		latency := time.Since(start)

		switch {
		case err == nil:
			s.metrics.Booking.Record(latency, true, false)
			if outcome.Kind == booking.OutcomePending {
				atomic.AddInt64(&s.metrics.pending, 1)
				if rng.Float64() < s.config.ConfirmRatio {
					s.confirm(ctx, slot.SessionID)
				}
			} else {
				atomic.AddInt64(&s.metrics.confirmed, 1)
			}
		case errors.Is(err, booking.ErrStaleSelection):
			atomic.AddInt64(&s.metrics.stale, 1)
			s.metrics.Booking.Record(latency, false, true)
		case errors.Is(err, booking.ErrTransportFailure):
			atomic.AddInt64(&s.metrics.transport, 1)
			s.metrics.Booking.Record(latency, false, false)
		default:
			return err
		}

		if err := engine.Reset(); err != nil {
			return err
		}
	}
	return nil
}

// pickSlot selects a random open slot on a random day, or the first open slot
// of the recommended day when contend is set.
func pickSlot(e *booking.Engine, rng *rand.Rand, contend bool) (booking.TimeSlot, bool) {
	dates := e.AllDates()
	if len(dates) == 0 {
		return booking.TimeSlot{}, false
	}

	day := dates[rng.Intn(len(dates))]
	if contend {
		day, _ = booking.Recommended(dates)
	}
	if err := e.SelectDate(day.Date); err != nil {
		return booking.TimeSlot{}, false
	}

	var open []booking.TimeSlot
	for _, slot := range day.Slots {
		if slot.Available {
			open = append(open, slot)
		}
	}
	if len(open) == 0 {
		return booking.TimeSlot{}, false
	}

	slot := open[0]
	if !contend {
		slot = open[rng.Intn(len(open))]
	}
	ok, err := e.SelectTimeSlot(slot.SessionID)
	if err != nil || !ok {
		return booking.TimeSlot{}, false
	}
	return slot, true
}

func (s *Simulator) confirm(ctx context.Context, id uuid.UUID) {
	start := time.Now()
	_, err := s.client.ConfirmSession(ctx, id)
	apiErr, isAPI := session.AsAPIError(err)
	s.metrics.Confirm.Record(time.Since(start), err == nil, isAPI && apiErr.Status == http.StatusConflict)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Mentors: %d  Mentees: %d  Attempts each: %d\n",
		len(s.config.MentorIDs), s.config.Mentees, s.config.Attempts)
	fmt.Println()

	printOperationReport("Initial load", &s.metrics.Load)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)

	fmt.Println("Outcomes:")
	fmt.Printf("  Booked: %d\n", atomic.LoadInt64(&s.metrics.confirmed))
	fmt.Printf("  Pending confirmation: %d\n", atomic.LoadInt64(&s.metrics.pending))
	fmt.Printf("  Lost to another mentee: %d\n", atomic.LoadInt64(&s.metrics.stale))
	fmt.Printf("  Transport failures: %d\n", atomic.LoadInt64(&s.metrics.transport))
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}
