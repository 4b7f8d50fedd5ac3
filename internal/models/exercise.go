package models

import "time"

// Exercise is one logged activity. It has no identity outside its User.
type Exercise struct {
	Description string    `json:"description"`
	Duration    int       `json:"duration"` // minutes
	Date        time.Time `json:"date"`
}
