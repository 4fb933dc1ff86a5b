package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/trial-session-booking/internal/booking"
	"github.com/hackgods/trial-session-booking/internal/config"
	"github.com/hackgods/trial-session-booking/internal/logger"
	"github.com/hackgods/trial-session-booking/internal/session"
)

const help = `commands:
  dates | next | prev          page through days
  day <YYYY-MM-DD>             select a day
  more | less                  page through the selected day's time slots
  slot <n>                     select the n-th visible time slot
  filter key=value ...         duration, type, tz, recurring, reschedulable (empty value clears)
  book                         book the selected slot
  refresh | reset | help | quit`

func main() {
	mentorFlag := flag.String("mentor", "", "mentor ID")
	apiURL := flag.String("api", "", "session API base URL (defaults to API_BASE_URL)")
	name := flag.String("name", "", "mentee name; leave empty to browse anonymously")
	email := flag.String("email", "", "mentee email")
	phone := flag.String("phone", "", "mentee phone")
	filterArgs := flag.String("filter", "", `initial filters, e.g. "duration=30 type=intro"`)
	auto := flag.Bool("auto", false, "book the first open slot of the selected day and exit")
	flag.Parse()

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if *apiURL != "" {
		cfg.Booking.APIBaseURL = strings.TrimRight(*apiURL, "/")
	}

	mentorID, err := uuid.Parse(*mentorFlag)
	if err != nil {
		log.Fatalf("-mentor must be a valid UUID: %v", err)
	}

	lg, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	loc, err := cfg.Booking.Location()
	if err != nil {
		lg.Fatal("display timezone", zap.Error(err))
	}

	var identity *booking.Identity
	if *name != "" || *email != "" {
		identity = &booking.Identity{Name: *name, Email: *email, Phone: *phone}
	}

	client := session.NewClient(cfg.Booking.APIBaseURL, &http.Client{Timeout: cfg.Booking.RequestTimeout})
	engine := booking.NewEngine(mentorID, client, booking.Options{
		PageSize:  cfg.Booking.PageSize,
		Location:  loc,
		Identity:  identity,
		Logger:    lg.Named("booking"),
		OnOutcome: func(o booking.Outcome) { fmt.Printf("\n>> %s\n", o.Message) },
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(ctx); err != nil && !errors.Is(err, booking.ErrDataFetchFailure) {
		lg.Fatal("start booking engine", zap.Error(err))
	}
	defer engine.Stop()

	if *filterArgs != "" {
		if err := run(ctx, engine, append([]string{"filter"}, strings.Fields(*filterArgs)...)); err != nil {
			lg.Fatal("apply filters", zap.Error(err))
		}
	}

	render(engine.Snapshot())

	if *auto {
		if err := bookFirstOpen(ctx, engine); err != nil {
			engine.Stop()
			_ = lg.Sync()
			log.Fatalf("auto booking failed: %v", err)
		}
		return
	}

	fmt.Println(help)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() || ctx.Err() != nil {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return
		}
		if err := run(ctx, engine, fields); err != nil {
			fmt.Println("error:", err)
		}
		render(engine.Snapshot())
	}
}

func run(ctx context.Context, e *booking.Engine, fields []string) error {
	switch fields[0] {
	case "dates":
		return nil
	case "next":
		e.NextDates()
	case "prev":
		e.PrevDates()
	case "more":
		e.NextSlots()
	case "less":
		e.PrevSlots()
	case "day":
		if len(fields) != 2 {
			return errors.New("usage: day YYYY-MM-DD")
		}
		return e.SelectDate(fields[1])
	case "slot":
		if len(fields) != 2 {
			return errors.New("usage: slot <n>")
		}
		n, err := strconv.Atoi(fields[1])
		snap := e.Snapshot()
		if err != nil || n < 1 || n > len(snap.Slots) {
			return fmt.Errorf("pick a slot between 1 and %d", len(snap.Slots))
		}
		ok, err := e.SelectTimeSlot(snap.Slots[n-1].SessionID)
		if err == nil && !ok {
			fmt.Println("that time is already taken")
		}
		return err
	case "filter":
		f, err := parseFilters(e.Snapshot().Filters, fields[1:])
		if err != nil {
			return err
		}
		return e.ApplyFilters(ctx, f)
	case "book":
		_, err := e.Book(ctx)
		var berr *booking.BookingError
		if errors.As(err, &berr) {
			// the outcome message was already printed
			return nil
		}
		return err
	case "refresh":
		return e.Refresh(ctx)
	case "reset":
		return e.Reset()
	case "help":
		fmt.Println(help)
	default:
		return fmt.Errorf("unknown command %q, try help", fields[0])
	}
	return nil
}

// bookFirstOpen books the earliest open slot of the selected day, which after
// Start is the recommended day.
func bookFirstOpen(ctx context.Context, e *booking.Engine) error {
	snap := e.Snapshot()
	if snap.SelectedDate == "" {
		return errors.New(booking.MsgNoAvailability)
	}
	for _, d := range e.AllDates() {
		if d.Date != snap.SelectedDate {
			continue
		}
		for _, slot := range d.Slots {
			if !slot.Available {
				continue
			}
			if _, err := e.SelectTimeSlot(slot.SessionID); err != nil {
				return err
			}
			// OnOutcome prints the result
			_, err := e.Book(ctx)
			return err
		}
	}
	return errors.New(booking.MsgNoAvailability)
}

func parseFilters(current booking.Filters, args []string) (booking.Filters, error) {
	f := current
	for _, arg := range args {
		key, value, _ := strings.Cut(arg, "=")
		switch key {
		case "duration":
			if value == "" {
				f.Duration = 0
				continue
			}
			d, err := strconv.Atoi(value)
			if err != nil {
				return f, fmt.Errorf("duration: %w", err)
			}
			f.Duration = d
		case "type":
			f.SessionType = value
		case "tz":
			f.TimeZone = value
		case "recurring":
			f.ShowRecurringOnly = value == "true" || value == "yes"
		case "reschedulable":
			if value == "" {
				f.AllowRescheduling = nil
				continue
			}
			v, err := strconv.ParseBool(value)
			if err != nil {
				return f, fmt.Errorf("reschedulable: %w", err)
			}
			f.AllowRescheduling = &v
		default:
			return f, fmt.Errorf("unknown filter %q", key)
		}
	}
	return f, nil
}

func render(s booking.Snapshot) {
	fmt.Println()
	if s.FetchFailed {
		fmt.Println("(could not load sessions)")
	}
	if s.NoAvailability {
		fmt.Println(s.Message)
		return
	}

	fmt.Printf("days %d-%d of %d\n", s.DateWindow.Start+1, s.DateWindow.Start+len(s.Dates), s.DateWindow.Total)
	for _, d := range s.Dates {
		marker := " "
		if d.Date == s.SelectedDate {
			marker = "*"
		}
		rec := ""
		if d.IsRecommended {
			rec = " (recommended)"
		}
		fmt.Printf(" %s %s %s %s %s  %d/%d open%s\n",
			marker, d.Day, d.DayOfMonth, d.Month, d.Date, d.AvailableSlots, d.TotalSlots, rec)
	}

	if s.SelectedDate != "" && len(s.Slots) > 0 {
		fmt.Printf("\n%s, slots %d-%d of %d\n",
			s.SelectedDate, s.SlotWindow.Start+1, s.SlotWindow.Start+len(s.Slots), s.SlotWindow.Total)
		for i, slot := range s.Slots {
			marker := " "
			if s.SelectedSlot != nil && s.SelectedSlot.SessionID == slot.SessionID {
				marker = "*"
			}
			state := "open"
			if !slot.Available {
				state = "taken"
			}
			fmt.Printf(" %s %d. %-8s %3d min  %-16s %-5s %s\n",
				marker, i+1, slot.Time, slot.Duration, slot.SessionType, state, slot.TimeZone)
		}
	}

	fmt.Printf("\nstate: %s\n", s.State)
}
