package models

// Feed status constants
const (
	FeedStatusActive = "active"
	FeedStatusError  = "error"
)
