package models

import "time"

// Student is the public study profile owned by one account.
type Student struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Courses      []string  `json:"courses"`
	CGPA         string    `json:"cgpa"`
	Availability []string  `json:"availability"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Account holds login credentials for a student.
type Account struct {
	Username     string
	PasswordHash string
	StudentID    string
}
