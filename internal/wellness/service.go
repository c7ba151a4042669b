// Package wellness keeps per-user preferences, the nutrition log and monthly progress.
package wellness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gymbody/internal/assistant"
	"gymbody/internal/domain"
	"gymbody/internal/models"
	"gymbody/internal/schedule"

	"github.com/rs/zerolog"
)

var (
	ErrUnknownPreference = errors.New("unknown preference key")
	ErrInvalidValue      = errors.New("invalid preference value")
	ErrNutritionDisabled = errors.New("nutrition tracking is not enabled")
	ErrInvalidMeal       = errors.New("meal needs a name and a positive calorie count")
)

// AttendanceCounter counts sessions attended in the current month.
type AttendanceCounter interface {
	Attendance(ctx context.Context, gymID, userID string) (int, error)
}

// Assistant answers nutrition questions.
type Assistant interface {
	Send(ctx context.Context, gym models.GymConfig, userID string, mode models.ChatMode, text string) (*assistant.Reply, error)
}

type valueKind int

const (
	kindBool valueKind = iota
	kindGoal
	kindMeasure
)

var knownPreferences = map[string]valueKind{
	models.PrefDarkMode:          kindBool,
	models.PrefNotifyBookings:    kindBool,
	models.PrefNotifyPromotions:  kindBool,
	models.PrefNutritionOptIn:    kindBool,
	models.PrefMonthlyGoal:       kindGoal,
	models.PrefBiometricsWeight:  kindMeasure,
	models.PrefBiometricsHeight:  kindMeasure,
	models.PrefBiometricsBodyFat: kindMeasure,
}

// DailyLog is one day of the nutrition tracker.
type DailyLog struct {
	Date      string            `json:"date"`
	Meals     []*models.MealLog `json:"meals"`
	TotalKcal int               `json:"total_kcal"`
}

type Service struct {
	repo       domain.WellnessRepository
	attendance AttendanceCounter
	assistant  Assistant
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewService(repo domain.WellnessRepository, attendance AttendanceCounter, ai Assistant, logger *zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		attendance: attendance,
		assistant:  ai,
		logger:     logger,
		now:        time.Now,
	}
}

// Preferences returns stored values on top of the defaults.
func (s *Service) Preferences(ctx context.Context, userID string) (map[string]string, error) {
	stored, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs := make(map[string]string, len(models.DefaultPreferences)+len(stored))
	for k, v := range models.DefaultPreferences {
		prefs[k] = v
	}
	for k, v := range stored {
		prefs[k] = v
	}
	return prefs, nil
}

// SetPreference validates and stores one key. Booleans are normalised to "true"/"false".
func (s *Service) SetPreference(ctx context.Context, userID, key, value string) (string, error) {
	kind, ok := knownPreferences[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownPreference, key)
	}

	value = strings.TrimSpace(value)
	switch kind {
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", fmt.Errorf("%w: %s must be true or false", ErrInvalidValue, key)
		}
		value = strconv.FormatBool(b)
	case kindGoal:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 31 {
			return "", fmt.Errorf("%w: %s must be between 1 and 31", ErrInvalidValue, key)
		}
		value = strconv.Itoa(n)
	case kindMeasure:
		if value != "" {
			f, err := strconv.ParseFloat(value, 64)
			if err != nil || f < 0 {
				return "", fmt.Errorf("%w: %s must be a positive number", ErrInvalidValue, key)
			}
		}
	}

	if err := s.repo.SetPreference(ctx, userID, key, value); err != nil {
		return "", err
	}
	return value, nil
}

func (s *Service) nutritionEnabled(ctx context.Context, userID string) error {
	prefs, err := s.Preferences(ctx, userID)
	if err != nil {
		return err
	}
	if prefs[models.PrefNutritionOptIn] != "true" {
		return ErrNutritionDisabled
	}
	return nil
}

// LogMeal adds a meal for a user who opted in to nutrition tracking.
func (s *Service) LogMeal(ctx context.Context, userID, name string, kcal int) (*models.MealLog, error) {
	if err := s.nutritionEnabled(ctx, userID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" || kcal <= 0 {
		return nil, ErrInvalidMeal
	}

	meal := &models.MealLog{UserID: userID, Name: name, Kcal: kcal, LoggedAt: s.now()}
	if err := s.repo.AddMeal(ctx, meal); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("user_id", userID).Int("kcal", kcal).Msg("Meal logged")
	return meal, nil
}

// Day returns the meals logged on the calendar day of now in loc.
func (s *Service) Day(ctx context.Context, userID string, loc *time.Location) (*DailyLog, error) {
	if err := s.nutritionEnabled(ctx, userID); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	now := s.now().In(loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	meals, err := s.repo.GetMeals(ctx, userID, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	log := &DailyLog{Date: from.Format("2006-01-02"), Meals: meals}
	for _, m := range meals {
		log.TotalKcal += m.Kcal
	}
	return log, nil
}

// FoodIdea asks the nutritionist for one meal suggestion fitting the time of day.
func (s *Service) FoodIdea(ctx context.Context, gym models.GymConfig, userID string) (*assistant.Reply, error) {
	if err := s.nutritionEnabled(ctx, userID); err != nil {
		return nil, err
	}
	if s.assistant == nil {
		return &assistant.Reply{Mode: models.ChatNutritionist, Text: assistant.FallbackOffline, Fallback: true, At: s.now()}, nil
	}
	hour := s.now().In(schedule.LoadLocation(gym.Timezone)).Hour()
	return s.assistant.Send(ctx, gym, userID, models.ChatNutritionist, assistant.FoodIdeaPrompt(hour))
}

// Progress compares this month's attendance with the user's goal.
func (s *Service) Progress(ctx context.Context, gymID, userID string) (*models.ProgressSnapshot, error) {
	prefs, err := s.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	goal := models.DefaultMonthlyGoal
	if v, ok := prefs[models.PrefMonthlyGoal]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			goal = n
		}
	}

	count := 0
	if s.attendance != nil {
		if count, err = s.attendance.Attendance(ctx, gymID, userID); err != nil {
			return nil, err
		}
	}
	return &models.ProgressSnapshot{
		Attendance:  count,
		MonthlyGoal: goal,
		Percent:     Percent(count, goal),
	}, nil
}

// Percent is attendance over goal, capped at 100 and rounded to one decimal.
func Percent(attendance, goal int) float64 {
	if goal <= 0 {
		return 0
	}
	p := float64(attendance) / float64(goal) * 100
	if p > 100 {
		p = 100
	}
	return math.Round(p*10) / 10
}
