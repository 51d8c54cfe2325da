package models

import "time"

const (
	RiderStatusPending  = "pending"
	RiderStatusAccepted = "accepted"
	RiderStatusRejected = "rejected"
)

type RiderApplication struct {
	ID               string    `json:"_id" bson:"_id"`
	Email            string    `json:"email" bson:"email"`
	Name             string    `json:"name,omitempty" bson:"name,omitempty"`
	Phone            string    `json:"phone,omitempty" bson:"phone,omitempty"`
	Age              int       `json:"age,omitempty" bson:"age,omitempty"`
	Region           string    `json:"region,omitempty" bson:"region,omitempty"`
	District         string    `json:"district,omitempty" bson:"district,omitempty"`
	NationalID       string    `json:"nid,omitempty" bson:"nid,omitempty"`
	BikeModel        string    `json:"bikeModel,omitempty" bson:"bikeModel,omitempty"`
	BikeRegistration string    `json:"bikeRegistration,omitempty" bson:"bikeRegistration,omitempty"`
	Status           string    `json:"status" bson:"status"`
	CreatedAt        time.Time `json:"createdAt" bson:"createdAt"`
}

type RiderApplyInput struct {
	Email            string `json:"email" validate:"required,email"`
	Name             string `json:"name" validate:"max=200"`
	Phone            string `json:"phone" validate:"max=32"`
	Age              int    `json:"age" validate:"gte=0,lte=120"`
	Region           string `json:"region"`
	District         string `json:"district"`
	NationalID       string `json:"nid"`
	BikeModel        string `json:"bikeModel"`
	BikeRegistration string `json:"bikeRegistration"`
}

// RiderDecision sets an application's status and, when PromoteTo is set,
// changes the role of the user identified by Email in the same transaction.
type RiderDecision struct {
	ApplicationID string
	Status        string
	Email         string
	PromoteTo     string
}

type RiderDecisionResult struct {
	Application  *RiderApplication `json:"application"`
	ModifyResult UpdateResult      `json:"modifyResult"`
	RoleResult   *UpdateResult     `json:"roleResult,omitempty"`
}
