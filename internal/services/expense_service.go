// Package services holds the expense use cases on top of the remote ports.
package services

import (
	"context"
	"fmt"

	"fixedspend/internal/amqp"
	"fixedspend/internal/core"
	"fixedspend/internal/log"
	"fixedspend/internal/remote"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev amqp.Event) error
}

// ExpenseList is what the dashboard shows.
type ExpenseList struct {
	Items []core.Expense
	Total int64
	Count int
}

// Empty reports whether there is nothing to list.
func (l ExpenseList) Empty() bool {
	return l.Count == 0
}

// ExpenseService orchestrates expense operations across the row store and AMQP
type ExpenseService struct {
	store  remote.ExpenseStore
	events EventPublisher
	logger *log.Logger
}

// NewExpenseService wires the service. events may be nil.
func NewExpenseService(store remote.ExpenseStore, events EventPublisher, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExpenseService{
		store:  store,
		events: events,
		logger: logger.WithComponent(log.ComponentExpense),
	}
}

// List returns every expense visible to the session, ordered by payment day
// with absent days last, and their exact total.
func (s *ExpenseService) List(ctx context.Context, sess remote.Session) (ExpenseList, error) {
	items, err := s.store.ListExpenses(ctx, sess)
	if err != nil {
		return ExpenseList{}, fmt.Errorf("list expenses: %w", err)
	}
	core.SortByPaymentDay(items)
	return ExpenseList{
		Items: items,
		Total: core.TotalOf(items),
		Count: len(items),
	}, nil
}

// Create validates presence of the required fields, coerces the numbers and
// inserts the row for the session's user. Incomplete input returns
// core.ErrIncompleteInput without contacting the store.
func (s *ExpenseService) Create(ctx context.Context, sess remote.Session, in core.ExpenseInput) (core.Expense, error) {
	if !in.Complete() {
		return core.Expense{}, core.ErrIncompleteInput
	}
	uid, err := sess.RequireUser()
	if err != nil {
		return core.Expense{}, err
	}
	payload, err := in.Coerce(uid)
	if err != nil {
		return core.Expense{}, err
	}

	row, err := s.store.InsertExpense(ctx, sess, payload)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	log.FromContext(ctx, s.logger).InfoContext(ctx, "Expense created",
		log.NewFields().
			WithOperation(log.OpCreate).
			WithUser(uid).
			WithExpense(row.ID, row.ServiceName, row.Amount.String(), row.PaymentDay.String(), row.Category).
			ToSlice()...)

	s.publish(ctx, amqp.NewExpenseCreated(row))
	return row, nil
}

// Delete removes one row by ID.
func (s *ExpenseService) Delete(ctx context.Context, sess remote.Session, id string) error {
	uid, err := sess.RequireUser()
	if err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, sess, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	log.FromContext(ctx, s.logger).InfoContext(ctx, "Expense deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldUserID, uid,
		log.FieldExpenseID, id)

	s.publish(ctx, amqp.NewExpenseDeleted(uid, id))
	return nil
}

// publish never fails the caller: the row change already happened.
func (s *ExpenseService) publish(ctx context.Context, ev amqp.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, ev); err != nil {
		log.FromContext(ctx, s.logger).ErrorContext(ctx, "Failed to publish event",
			log.FieldOperation, log.OpPublish,
			log.FieldEvent, ev.Type,
			log.FieldError, err)
	}
}
