package models

// Pending prompt steps kept in UserState.CurrentStep.
const (
	StateIdle                 = ""
	StateConfirmDoubleBooking = "confirm_double_booking"
)

// UserState.TempData keys.
const (
	TempSessionID  = "session_id"
	TempHolderID   = "holder_id"
	TempHolderRole = "holder_role"
	TempActorID    = "actor_id"
	TempConflicts  = "conflicts"
)

// Availability labels.
const (
	LabelBooked   = "Booked"
	LabelWaitlist = "Waitlist"
	LabelBookNow  = "Book Now"
)

const (
	DefaultGymID    = "gymbody"
	DefaultGymName  = "GymBody"
	DefaultTimezone = "Asia/Nicosia"

	// DefaultVisibilityThresholdMinutes hides sessions starting sooner than this from clients.
	DefaultVisibilityThresholdMinutes = 125

	DefaultWindowDays = 6

	// DefaultWindowSafetyLimit caps the number of calendar days scanned for the window.
	DefaultWindowSafetyLimit = 14

	DefaultCancellationWindowHours = 2

	DefaultSemiPersonalCapacity = 4
	DefaultOpenGymCapacity      = 2

	DefaultSessionDuration = "60m"

	// DefaultStateTTL is how long a pending prompt lives, in seconds.
	DefaultStateTTL = 24 * 60 * 60

	// RateLimitMessages chat messages per RateLimitWindow.
	RateLimitMessages = 20
	RateLimitWindow   = 60 // seconds

	DefaultMonthlyGoal = 8
)

// Preference keys.
const (
	PrefDarkMode          = "dark_mode"
	PrefNotifyBookings    = "notify_bookings"
	PrefNotifyPromotions  = "notify_promotions"
	PrefNutritionOptIn    = "nutrition_opt_in"
	PrefBiometricsWeight  = "biometrics_weight"
	PrefBiometricsHeight  = "biometrics_height"
	PrefBiometricsBodyFat = "biometrics_body_fat"
	PrefMonthlyGoal       = "monthly_goal"
)

// DefaultPreferences are returned for keys a user never set.
var DefaultPreferences = map[string]string{
	PrefDarkMode:         "true",
	PrefNotifyBookings:   "true",
	PrefNotifyPromotions: "false",
	PrefNutritionOptIn:   "false",
}
