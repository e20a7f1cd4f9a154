package amqp

import (
	"encoding/json"
	"time"

	"fixedspend/internal/core"
)

// EventType doubles as the routing key on the direct exchange.
type EventType string

const (
	ExpenseCreated   EventType = "expense.created"
	ExpenseDeleted   EventType = "expense.deleted"
	SessionSignedIn  EventType = "session.signed_in"
	SessionSignedOut EventType = "session.signed_out"
)

// AllEventTypes lists every routing key the publisher uses.
func AllEventTypes() []EventType {
	return []EventType{ExpenseCreated, ExpenseDeleted, SessionSignedIn, SessionSignedOut}
}

// ExpensePayload is the expense part of an event. Deletions carry only the ID.
type ExpensePayload struct {
	ID          string      `json:"id"`
	ServiceName string      `json:"service_name,omitempty"`
	Amount      *core.Whole `json:"amount,omitempty"`
	PaymentDay  *core.Whole `json:"payment_day,omitempty"`
	Category    string      `json:"category,omitempty"`
}

// Event is a JSON message describing something a user did.
type Event struct {
	Type      EventType       `json:"type"`
	UserID    string          `json:"user_id"`
	Email     string          `json:"email,omitempty"`
	Expense   *ExpensePayload `json:"expense,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewExpenseCreated builds the event for a stored row.
func NewExpenseCreated(e core.Expense) Event {
	amount, day := e.Amount, e.PaymentDay
	return Event{
		Type:   ExpenseCreated,
		UserID: e.UserID,
		Expense: &ExpensePayload{
			ID:          e.ID,
			ServiceName: e.ServiceName,
			Amount:      &amount,
			PaymentDay:  &day,
			Category:    e.Category,
		},
		Timestamp: time.Now(),
	}
}

// NewExpenseDeleted builds the event for a removed row.
func NewExpenseDeleted(userID, expenseID string) Event {
	return Event{
		Type:      ExpenseDeleted,
		UserID:    userID,
		Expense:   &ExpensePayload{ID: expenseID},
		Timestamp: time.Now(),
	}
}

// NewSessionEvent builds a sign-in or sign-out event.
func NewSessionEvent(t EventType, userID, email string) Event {
	return Event{Type: t, UserID: userID, Email: email, Timestamp: time.Now()}
}

// ToJSON converts the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
