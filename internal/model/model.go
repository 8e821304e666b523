package model

import (
	"encoding/json"
	"time"
)

// Goal is a single entry of the goal list.
//
// Priority is the identity key: at most one stored goal holds a given priority, and lower values
// sort first. Text is free-form and not unique.
type Goal struct {
	Priority int    `json:"priority" yaml:"priority"`
	Text     string `json:"text" yaml:"text"`
}

type EventType string

const (
	EventGoalAdd       EventType = "goal.add"
	EventGoalEdit      EventType = "goal.edit"
	EventGoalMove      EventType = "goal.move"
	EventGoalDelete    EventType = "goal.delete"
	EventGoalClear     EventType = "goal.clear"
	EventGoalNormalize EventType = "goal.normalize"
	EventGoalImport    EventType = "goal.import"
)

// Event is an append-only record of a completed mutation.
type Event struct {
	ID       string          `json:"id" yaml:"id"`
	Type     EventType       `json:"type" yaml:"type"`
	Priority int             `json:"priority" yaml:"priority"`
	Payload  json.RawMessage `json:"payload,omitempty" yaml:"-"`
	IssuedAt time.Time       `json:"issuedAt" yaml:"issuedAt"`
}
