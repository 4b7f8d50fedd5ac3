package models

import "time"

// LogQuery filters a user's exercises. A nil bound is unbounded.
// Matching entries satisfy From <= Date < To and are returned in
// insertion order, truncated to Limit.
type LogQuery struct {
	From  *time.Time
	To    *time.Time
	Limit int
}

// Log is the filtered, limited view of a user's exercises.
// Count is the length of Exercises, not the unfiltered total.
type Log struct {
	UserID    string
	Username  string
	Count     int
	Exercises []Exercise
}
