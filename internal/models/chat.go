package models

import "time"

type ChatMode string

const (
	ChatFrontDesk    ChatMode = "front_desk"
	ChatTrainer      ChatMode = "trainer"
	ChatNutritionist ChatMode = "nutritionist"
)

func (m ChatMode) Valid() bool {
	return m == ChatFrontDesk || m == ChatTrainer || m == ChatNutritionist
}

type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // user, model
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
