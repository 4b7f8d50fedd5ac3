package models

// User is a named account owning an append-only list of exercises.
type User struct {
	ID        string     `json:"_id"`
	Username  string     `json:"username"`
	Exercises []Exercise `json:"exercises"`
}
