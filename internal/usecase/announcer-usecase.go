package usecase

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/iamvkosarev/amc-discord/config"
	"github.com/robfig/cron/v3"
)

const announcerTickTimeout = 30 * time.Second

type AnnouncerUsecaseDeps struct {
	Game   GameAnnouncer
	Events EventLister
	Clock  func() time.Time
}

// AnnouncerUsecase rotates through the configured in-game announcements and
// the upcoming guild events.
type AnnouncerUsecase struct {
	AnnouncerUsecaseDeps
	cfg      config.Announcer
	guildID  string
	location *time.Location

	mu    sync.Mutex
	index int
	cron  *cron.Cron
}

func NewAnnouncerUsecase(deps AnnouncerUsecaseDeps, cfg config.Announcer, guildID, timezone string) (*AnnouncerUsecase, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", timezone, err)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &AnnouncerUsecase{
		AnnouncerUsecaseDeps: deps,
		cfg:                  cfg,
		guildID:              guildID,
		location:             location,
		index:                rand.IntN(101),
	}, nil
}

func (a *AnnouncerUsecase) Start(ctx context.Context) error {
	if a.cfg.Disabled {
		log.Printf("[announcer] disabled")
		return nil
	}
	a.cron = cron.New()
	_, err := a.cron.AddFunc(
		a.cfg.Schedule, func() {
			tickCtx, cancel := context.WithTimeout(ctx, announcerTickTimeout)
			defer cancel()
			if _, err := a.Tick(tickCtx); err != nil {
				log.Printf("[announcer] %v", err)
			}
		},
	)
	if err != nil {
		return fmt.Errorf("failed to schedule announcements with %q: %w", a.cfg.Schedule, err)
	}
	a.cron.Start()
	log.Printf("[announcer] started with schedule %s and %d message(s)", a.cfg.Schedule, len(a.cfg.Messages))
	return nil
}

func (a *AnnouncerUsecase) Stop() {
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
}

// Tick announces the next message in the rotation and returns it. It returns
// "" when there is nothing to announce.
func (a *AnnouncerUsecase) Tick(ctx context.Context) (string, error) {
	candidates := append([]string(nil), a.cfg.Messages...)
	candidates = append(candidates, a.eventAnnouncements(ctx)...)
	if len(candidates) == 0 {
		return "", nil
	}

	a.mu.Lock()
	announcement := candidates[a.index%len(candidates)]
	a.index++
	a.mu.Unlock()

	if err := a.Game.Announce(ctx, announcement, a.cfg.Color); err != nil {
		return "", fmt.Errorf("failed to announce: %w", err)
	}
	return announcement, nil
}

func (a *AnnouncerUsecase) eventAnnouncements(ctx context.Context) []string {
	if a.Events == nil || a.guildID == "" {
		return nil
	}
	events, err := a.Events.ScheduledEvents(ctx, a.guildID)
	if err != nil {
		log.Printf("[announcer] failed to list events: %v", err)
		return nil
	}
	now := a.Clock()
	var out []string
	for _, event := range events {
		if !event.Start.After(now) {
			continue
		}
		start := event.Start.In(a.location)
		out = append(
			out, fmt.Sprintf(
				"The %s is happening on %s GMT%s, check /events for more info!",
				event.Name, start.Format("Monday at 15:04"), start.Format("-07"),
			),
		)
	}
	return out
}
