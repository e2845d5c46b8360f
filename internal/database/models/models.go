package models

import "time"

// Device is the device record created for every registration. Its id is
// what device_id addressing refers to.
type Device struct {
	ID             string    `json:"id" db:"id"`
	RegistrationID string    `json:"registration_id" db:"registration_id"`
	Name           string    `json:"name" db:"name"`
	Manufacturer   string    `json:"manufacturer" db:"manufacturer"`
	Model          string    `json:"model" db:"model"`
	SWVersion      string    `json:"sw_version" db:"sw_version"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// NotificationIDSet is a persisted set of visible fixed notification ids
type NotificationIDSet struct {
	Key       string    `json:"key" db:"key"`
	Version   int       `json:"version" db:"version"`
	Data      string    `json:"data" db:"data"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NotificationIDData is the JSON document stored in NotificationIDSet.Data
type NotificationIDData struct {
	IDs []string `json:"ids"`
}
