package events

import (
	"time"

	"blogify/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Post Events

const EventTypePostCreated = "post.created"

// PostCreated is raised once the backend has confirmed a new post
type PostCreated struct {
	BaseEvent
	PostID   valueobjects.PostID `json:"post_id"`
	AuthorID string              `json:"author_id"`
	Title    string              `json:"title"`
}

// NewPostCreated creates a PostCreated event
func NewPostCreated(postID valueobjects.PostID, authorID, title string, timestamp time.Time) PostCreated {
	return PostCreated{
		BaseEvent: BaseEvent{
			AggregateID: postID.String(),
			EventType:   EventTypePostCreated,
			Timestamp:   timestamp,
			Version:     1,
		},
		PostID:   postID,
		AuthorID: authorID,
		Title:    title,
	}
}
