package services

import (
	"errors"

	"flightbooking/internal/validator"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrFlightNotFound   = errors.New("flight not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrReceiverNotFound = errors.New("receiver not found")

	ErrNotFlightOwner  = errors.New("flight does not belong to this company")
	ErrNotBookingOwner = errors.New("booking does not belong to this passenger")
	ErrAccountInactive = errors.New("account is deactivated")
	ErrTopUpNotAllowed = errors.New("only passengers can top up their balance")

	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInsufficientFunds      = errors.New("insufficient balance")
	ErrFlightNotAvailable     = errors.New("flight is not available")
	ErrNoSeatsAvailable       = errors.New("no seats available")
	ErrFlightNotEditable      = errors.New("only pending flights can be changed")
	ErrCapacityBelowBooked    = errors.New("max passengers cannot be less than registered passengers")
	ErrSameCity               = errors.New("departure and destination cities must be different")
	ErrSelfMessage            = errors.New("cannot send a message to yourself")
	ErrMessagePair            = errors.New("messages are only allowed between companies and passengers")
	ErrUnbalancedTransaction  = errors.New("transaction balances do not match its amount")
	ErrUnknownTransactionType = errors.New("unknown transaction type")

	ErrAlreadyBooked    = errors.New("already booked this flight")
	ErrAlreadyCancelled = errors.New("flight is already cancelled")
	ErrAlreadyCompleted = errors.New("flight is already completed")
	ErrBookingCancelled = errors.New("booking is already cancelled")
)

// ValidationError carries every failing field of a request.
type ValidationError struct {
	Fields validator.FieldErrors
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

func fieldError(field, message string) *ValidationError {
	fields := validator.FieldErrors{}
	fields.Add(field, message)
	return &ValidationError{Fields: fields}
}
