package domain

import "time"

type NotificationType string

const (
	NotifReservationCreated   NotificationType = "RESERVATION_CREATED"
	NotifReservationConfirmed NotificationType = "RESERVATION_CONFIRMED"
	NotifReservationStarted   NotificationType = "RESERVATION_STARTED"
	NotifReservationCompleted NotificationType = "RESERVATION_COMPLETED"
	NotifReservationCancelled NotificationType = "RESERVATION_CANCELLED"
	NotifPaymentReceived      NotificationType = "PAYMENT_RECEIVED"
	NotifSystemAlert          NotificationType = "SYSTEM_ALERT"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotifReservationCreated, NotifReservationConfirmed, NotifReservationStarted,
		NotifReservationCompleted, NotifReservationCancelled, NotifPaymentReceived, NotifSystemAlert:
		return true
	default:
		return false
	}
}

type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
	UserID    string           `json:"user_id"`
	UserRole  Role             `json:"user_role"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}
