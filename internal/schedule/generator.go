package schedule

import (
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"gymbody/internal/models"
)

const (
	TitleSemiPersonal = "Semi-Personal Training"
	TitleOpenGym      = "Open Gym Access"
)

// Generator produces the sessions of a window. Initial booked counts are drawn from
// the injected random source; pass a seeded source for reproducible output.
type Generator struct {
	gym  models.GymConfig
	opts Options

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewGenerator(gym models.GymConfig, opts Options, rnd *rand.Rand) *Generator {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &Generator{gym: gym, opts: opts, rnd: rnd}
}

func (g *Generator) Options() Options {
	return g.opts
}

// Generate builds two sessions per hour for every day of the window. Ids are
// sequential starting at firstID.
func (g *Generator) Generate(now time.Time, firstID int64) []*models.ClassSession {
	return g.GenerateDays(Window(now, g.opts), firstID)
}

// GenerateDays builds sessions for the given days only.
func (g *Generator) GenerateDays(days []Day, firstID int64) []*models.ClassSession {
	g.mu.Lock()
	defer g.mu.Unlock()

	spCap := g.gym.SemiPersonalCapacity
	if spCap <= 0 {
		spCap = models.DefaultSemiPersonalCapacity
	}
	ogCap := g.gym.OpenGymCapacity
	if ogCap <= 0 {
		ogCap = models.DefaultOpenGymCapacity
	}

	next := firstID
	nextID := func() string {
		id := strconv.FormatInt(next, 10)
		next++
		return id
	}

	var sessions []*models.ClassSession
	for _, day := range days {
		instructor := "Mike T."
		if day.Weekday%2 == 0 {
			instructor = "Sarah J."
		}
		for _, hour := range day.Hours {
			clock := FormatHour(hour)
			sessions = append(sessions,
				&models.ClassSession{
					ID:         nextID(),
					GymID:      g.gym.ID,
					Date:       day.Date,
					Title:      TitleSemiPersonal,
					Instructor: instructor,
					Time:       clock,
					Duration:   models.DefaultSessionDuration,
					Category:   models.CategorySemiPersonal,
					Capacity:   spCap,
					Booked:     g.rnd.IntN(spCap + 1),
				},
				&models.ClassSession{
					ID:         nextID(),
					GymID:      g.gym.ID,
					Date:       day.Date,
					Title:      TitleOpenGym,
					Instructor: "Staff",
					Time:       clock,
					Duration:   models.DefaultSessionDuration,
					Category:   models.CategoryOpenGym,
					Capacity:   ogCap,
					Booked:     g.rnd.IntN(ogCap + 1),
				},
			)
		}
	}
	return sessions
}
