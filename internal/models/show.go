package models

import "time"

// RadioShow is a scheduled or live radio program in the catalog.
type RadioShow struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	HostName      string    `json:"hostName"`
	ImageURL      string    `json:"imageUrl"`
	IsLive        bool      `json:"isLive"`
	ScheduledTime time.Time `json:"scheduledTime"`
	EndTime       time.Time `json:"endTime"`
	Tags          []string  `json:"tags"`
	Episodes      []Episode `json:"episodes"`
}

// Episode is one published recording of a show.
type Episode struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	AudioURL        string    `json:"audioUrl"`
	DurationSeconds int       `json:"durationSeconds"`
	PublishDate     time.Time `json:"publishDate"`
	PlayCount       int       `json:"playCount"`
	ImageURL        string    `json:"imageUrl"`
}
