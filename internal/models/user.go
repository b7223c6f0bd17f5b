package models

// User is a pharmacy customer. Prescriptions are issued to users.
type User struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"date_of_birth"`
}

// UserSummary is the public listing shape.
type UserSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type UserListResponse struct {
	Success bool          `json:"success"`
	Users   []UserSummary `json:"users"`
	Count   int           `json:"count"`
}
