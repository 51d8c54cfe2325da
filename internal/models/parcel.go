package models

import "time"

const (
	DeliveryStatusPendingPickup = "pending-pickup"
)

type Parcel struct {
	ID               string    `json:"_id" bson:"_id"`
	ParcelName       string    `json:"parcelName" bson:"parcelName"`
	ParcelType       string    `json:"parcelType,omitempty" bson:"parcelType,omitempty"`
	ParcelWeight     float64   `json:"parcelWeight,omitempty" bson:"parcelWeight,omitempty"`
	SenderName       string    `json:"senderName,omitempty" bson:"senderName,omitempty"`
	SenderEmail      string    `json:"senderEmail" bson:"senderEmail"`
	SenderRegion     string    `json:"senderRegion,omitempty" bson:"senderRegion,omitempty"`
	SenderDistrict   string    `json:"senderDistrict,omitempty" bson:"senderDistrict,omitempty"`
	SenderAddress    string    `json:"senderAddress,omitempty" bson:"senderAddress,omitempty"`
	ReceiverName     string    `json:"receiverName,omitempty" bson:"receiverName,omitempty"`
	ReceiverPhone    string    `json:"receiverPhone,omitempty" bson:"receiverPhone,omitempty"`
	ReceiverRegion   string    `json:"receiverRegion,omitempty" bson:"receiverRegion,omitempty"`
	ReceiverDistrict string    `json:"receiverDistrict,omitempty" bson:"receiverDistrict,omitempty"`
	ReceiverAddress  string    `json:"receiverAddress,omitempty" bson:"receiverAddress,omitempty"`
	Cost             float64   `json:"cost" bson:"cost"`
	TrackingID       string    `json:"trackingId" bson:"trackingId"`
	PaymentStatus    string    `json:"paymentStatus,omitempty" bson:"paymentStatus,omitempty"`
	DeliveryStatus   string    `json:"deliveryStatus,omitempty" bson:"deliveryStatus,omitempty"`
	CreatedAt        time.Time `json:"createdAt" bson:"createdAt"`
}

type ParcelCreateInput struct {
	ParcelName       string  `json:"parcelName" validate:"max=200"`
	ParcelType       string  `json:"parcelType" validate:"max=50"`
	ParcelWeight     float64 `json:"parcelWeight" validate:"gte=0"`
	SenderName       string  `json:"senderName" validate:"max=200"`
	SenderEmail      string  `json:"senderEmail" validate:"required,email"`
	SenderRegion     string  `json:"senderRegion"`
	SenderDistrict   string  `json:"senderDistrict"`
	SenderAddress    string  `json:"senderAddress"`
	ReceiverName     string  `json:"receiverName" validate:"max=200"`
	ReceiverPhone    string  `json:"receiverPhone"`
	ReceiverRegion   string  `json:"receiverRegion"`
	ReceiverDistrict string  `json:"receiverDistrict"`
	ReceiverAddress  string  `json:"receiverAddress"`
	Cost             float64 `json:"cost" validate:"gte=0"`
}

// ParcelFilter is empty for "all parcels".
type ParcelFilter struct {
	SenderEmail string
}

type DeleteResult struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}

type UpdateResult struct {
	Acknowledged  bool  `json:"acknowledged"`
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}
