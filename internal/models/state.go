package models

import "time"

// UserState is a suspended prompt for one user, such as a booking waiting for a
// double-booking confirmation. TempData survives a JSON round trip through redis,
// so readers go through the typed accessors.
type UserState struct {
	UserID      string                 `json:"user_id"`
	CurrentStep string                 `json:"current_step"`
	TempData    map[string]interface{} `json:"temp_data"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

func (s *UserState) GetString(key string) string {
	str, _ := s.TempData[key].(string)
	return str
}

// Strings reads a string list stored either natively or as decoded JSON.
func (s *UserState) Strings(key string) []string {
	switch v := s.TempData[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
