package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/mmogame/backend/internal/models"
)

type GameLister interface {
	ListEnabledGames(ctx context.Context) ([]models.Game, error)
}

// Scheduler periodically queues an estimation of every enabled game's
// current generation.
type Scheduler struct {
	queue *Queue
	games GameLister
	sched gocron.Scheduler
}

func NewScheduler(queue *Queue, games GameLister, interval time.Duration) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s := &Scheduler{queue: queue, games: games, sched: sched}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			s.EnqueueAll(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule estimation: %w", err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

// EnqueueAll queues one job per enabled game and returns how many were queued.
func (s *Scheduler) EnqueueAll(ctx context.Context) int {
	games, err := s.games.ListEnabledGames(ctx)
	if err != nil {
		log.Printf("[scheduler] list games: %v", err)
		return 0
	}
	n := 0
	for _, g := range games {
		if _, err := s.queue.Enqueue(g.ID, 0, 0); err != nil {
			log.Printf("WARN: [scheduler] estimation of game %d not queued: %v", g.ID, err)
			continue
		}
		n++
	}
	if n > 0 {
		log.Printf("[scheduler] queued %d estimation jobs", n)
	}
	return n
}
