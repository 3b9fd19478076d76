package models

import "time"

// CabType enumerates the bookable vehicle classes.
type CabType string

const (
	CabMini   CabType = "Mini"
	CabSedan  CabType = "Sedan"
	CabSUV    CabType = "SUV"
	CabLuxury CabType = "Luxury"
)

// ValidCabType reports whether t is one of the known classes.
func ValidCabType(t CabType) bool {
	switch t {
	case CabMini, CabSedan, CabSUV, CabLuxury:
		return true
	}
	return false
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "Pending"
	BookingConfirmed BookingStatus = "Confirmed"
	// InProgress and Completed are declared for schema stability; no core
	// operation currently produces them.
	BookingInProgress BookingStatus = "InProgress"
	BookingCompleted  BookingStatus = "Completed"
	BookingCancelled  BookingStatus = "Cancelled"
)

type PaymentMethod string

const (
	MethodCreditCard PaymentMethod = "CreditCard"
	MethodDebitCard  PaymentMethod = "DebitCard"
	MethodUPI        PaymentMethod = "UPI"
	MethodWallet     PaymentMethod = "Wallet"
	MethodCash       PaymentMethod = "Cash"
)

func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case MethodCreditCard, MethodDebitCard, MethodUPI, MethodWallet, MethodCash:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentCompleted PaymentStatus = "Completed"
	PaymentFailed    PaymentStatus = "Failed"
	// Refunded is declared but never reached by any operation.
	PaymentRefunded PaymentStatus = "Refunded"
)

// User is a registered rider. PasswordHash is a bcrypt hash; the plain
// secret is never stored.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	FirstName    string    `json:"first_name" bson:"first_name"`
	LastName     string    `json:"last_name" bson:"last_name"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	RegisteredAt time.Time `json:"registered_at" bson:"registered_at"`
}

// Cab is a fleet unit. Availability is the only mutable field.
type Cab struct {
	ID          string  `json:"id" bson:"_id"`
	Type        CabType `json:"type" bson:"type"`
	IsAvailable bool    `json:"is_available" bson:"is_available"`
}

// Booking is a ride request and its lifecycle record. Cab and Rider are
// snapshots copied at write time, not live references; edits to the
// originals after booking are not reflected here.
type Booking struct {
	ID              string        `json:"id" bson:"_id"`
	PickupLocation  string        `json:"pickup_location" bson:"pickup_location"`
	DropoffLocation string        `json:"dropoff_location" bson:"dropoff_location"`
	PickupLat       string        `json:"pickup_lat" bson:"pickup_lat"`
	PickupLon       string        `json:"pickup_lon" bson:"pickup_lon"`
	DropoffLat      string        `json:"dropoff_lat" bson:"dropoff_lat"`
	DropoffLon      string        `json:"dropoff_lon" bson:"dropoff_lon"`
	CabID           string        `json:"cab_id" bson:"cab_id"`
	Cab             *Cab          `json:"cab,omitempty" bson:"cab,omitempty"`
	CabType         CabType       `json:"cab_type" bson:"cab_type"`
	Distance        float64       `json:"distance_km" bson:"distance_km"`
	Fare            float64       `json:"fare" bson:"fare"`
	Status          BookingStatus `json:"status" bson:"status"`
	CreatedAt       time.Time     `json:"created_at" bson:"created_at"`
	RiderID         string        `json:"rider_id" bson:"rider_id"`
	Rider           *User         `json:"rider,omitempty" bson:"rider,omitempty"`
}

// Payment records one settlement attempt for a booking. TransactionID is
// empty for cash and for failed settlements.
type Payment struct {
	ID            string        `json:"id" bson:"_id"`
	BookingID     string        `json:"booking_id" bson:"booking_id"`
	Booking       *Booking      `json:"booking,omitempty" bson:"booking,omitempty"`
	RiderID       string        `json:"rider_id" bson:"rider_id"`
	Rider         *User         `json:"rider,omitempty" bson:"rider,omitempty"`
	Amount        float64       `json:"amount" bson:"amount"`
	Method        PaymentMethod `json:"method" bson:"method"`
	Status        PaymentStatus `json:"status" bson:"status"`
	CreatedAt     time.Time     `json:"created_at" bson:"created_at"`
	TransactionID string        `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
	Details       string        `json:"details,omitempty" bson:"details,omitempty"`
}

// BookingEvent is published to Kafka on booking lifecycle changes.
type BookingEvent struct {
	Kind      string        `json:"kind"` // booking.created, booking.cancelled
	BookingID string        `json:"booking_id"`
	RiderID   string        `json:"rider_id"`
	CabID     string        `json:"cab_id"`
	CabType   CabType       `json:"cab_type"`
	Status    BookingStatus `json:"status"`
	Fare      float64       `json:"fare"`
	At        time.Time     `json:"at"`
}

// PaymentEvent is published to Kafka after every settlement attempt.
type PaymentEvent struct {
	Kind      string        `json:"kind"` // payment.settled
	PaymentID string        `json:"payment_id"`
	BookingID string        `json:"booking_id"`
	RiderID   string        `json:"rider_id"`
	Method    PaymentMethod `json:"method"`
	Status    PaymentStatus `json:"status"`
	Amount    float64       `json:"amount"`
	At        time.Time     `json:"at"`
}
