package models

import "time"

const (
	RoleUser  = "user"
	RoleRider = "rider"
	RoleAdmin = "admin"
)

type User struct {
	ID          string    `json:"_id" bson:"_id"`
	Email       string    `json:"email" bson:"email"`
	DisplayName string    `json:"displayName,omitempty" bson:"displayName,omitempty"`
	PhotoURL    string    `json:"photoURL,omitempty" bson:"photoURL,omitempty"`
	Role        string    `json:"role" bson:"role"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

type UserCreateInput struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"displayName" validate:"max=200"`
	PhotoURL    string `json:"photoURL" validate:"omitempty,url"`
}
