package models

import "time"

type Prescription struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	MedicationID     int64     `json:"medication_id"`
	MedicationName   string    `json:"medication_name"`
	PrescriptionDate time.Time `json:"prescription_date"`
}
