package domain

import "errors"

var (
	ErrBelowMinimum        = errors.New("amount below minimum")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrLimitReached        = errors.New("purchase limit reached")
	ErrOutsideWindow       = errors.New("outside withdrawal window")
	ErrInvalidState        = errors.New("invalid state transition")
	ErrNotFound            = errors.New("not found")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidMethod       = errors.New("unsupported payment method")
	ErrInvalidReferralCode = errors.New("invalid referral code")
	ErrAccountExists       = errors.New("account already exists")
	ErrInvalidInput        = errors.New("invalid input")
)
