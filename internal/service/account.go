package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ayo6706/solar-ledger/internal/domain"
	"github.com/ayo6706/solar-ledger/internal/events"
	"github.com/ayo6706/solar-ledger/internal/models"
	"github.com/ayo6706/solar-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	minPhoneDigits          = 9
	maxReferralCodeAttempts = 16
)

// errReferralCodesExhausted means every salted code for a signup was taken.
var errReferralCodesExhausted = errors.New("no free referral code")

type AccountService struct {
	store        QueryStore
	referrals    *ReferralService
	referralCode func(name, phone string, attempt int) string
}

func NewAccountService(store QueryStore, referrals *ReferralService) *AccountService {
	return &AccountService{
		store:        store,
		referrals:    referrals,
		referralCode: domain.ReferralCodeAttempt,
	}
}

// WithReferralCodes overrides the referral code derivation.
func (s *AccountService) WithReferralCodes(fn func(name, phone string, attempt int) string) *AccountService {
	if fn != nil {
		s.referralCode = fn
	}
	return s
}

// OpenAccountRequest carries signup data. AccountID is the authenticated
// subject; ReferralCode is optional.
type OpenAccountRequest struct {
	AccountID    uuid.UUID
	Name         string
	Phone        string
	ReferralCode string
}

// Open creates the account with a zero balance. When a referral code is given
// the referrer is credited in the same transaction; an unknown code fails the
// signup.
func (s *AccountService) Open(ctx context.Context, req OpenAccountRequest) (*models.Account, error) {
	name := strings.Join(strings.Fields(req.Name), " ")
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	phone := domain.NormalizePhone(req.Phone)
	if len(strings.TrimPrefix(phone, "+")) < minPhoneDigits {
		return nil, fmt.Errorf("%w: phone must have at least %d digits", domain.ErrInvalidInput, minPhoneDigits)
	}

	var referralCode string
	if strings.TrimSpace(req.ReferralCode) != "" {
		code, err := domain.NormalizeReferralCode(req.ReferralCode)
		if err != nil {
			return nil, err
		}
		referralCode = code
	}

	var account models.Account
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if _, err := qtx.GetAccount(ctx, req.AccountID); err == nil {
			return domain.ErrAccountExists
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("check account: %w", err)
		}

		var referrerID *uuid.UUID
		if referralCode != "" {
			referrer, err := qtx.GetAccountByReferralCode(ctx, referralCode)
			if err != nil {
				return lookupError(err, "referral code "+referralCode)
			}
			referrerID = &referrer.ID
		}

		ownCode, err := s.freeReferralCode(ctx, qtx, name, phone)
		if err != nil {
			return err
		}

		created, err := qtx.CreateAccount(ctx, repository.CreateAccountParams{
			ID:           req.AccountID,
			Name:         name,
			Phone:        phone,
			ReferralCode: ownCode,
			ReferredBy:   referrerID,
		})
		if err != nil {
			return accountCreateError(err)
		}
		account = created

		if err := enqueueEvent(ctx, qtx, events.AccountOpened, created.ID, created.ID, created); err != nil {
			return err
		}

		if referrerID != nil {
			if _, err := s.referrals.CreditReferralTx(ctx, qtx, *referrerID, s.referrals.Bonus(), created.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// freeReferralCode returns the first derived code no other account holds.
func (s *AccountService) freeReferralCode(ctx context.Context, qtx repository.Querier, name, phone string) (string, error) {
	for attempt := 0; attempt < maxReferralCodeAttempts; attempt++ {
		code := s.referralCode(name, phone, attempt)
		_, err := qtx.GetAccountByReferralCode(ctx, code)
		if errors.Is(err, pgx.ErrNoRows) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("check referral code: %w", err)
		}
	}
	return "", errReferralCodesExhausted
}

func accountCreateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "accounts_phone_key":
			return fmt.Errorf("%w: phone already registered", domain.ErrAccountExists)
		case "accounts_referral_code_key":
			// A concurrent signup took the code after the free check; the
			// caller may retry.
			return fmt.Errorf("create account: referral code taken concurrently: %w", err)
		default:
			return domain.ErrAccountExists
		}
	}
	return fmt.Errorf("create account: %w", err)
}

// Get returns the account or domain.ErrNotFound.
func (s *AccountService) Get(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	acc, err := s.store.Queries().GetAccount(ctx, accountID)
	if err != nil {
		return nil, lookupError(err, "account")
	}
	return &acc, nil
}

// Statement lists the account's ledger entries newest first.
func (s *AccountService) Statement(ctx context.Context, accountID uuid.UUID, page, pageSize int) ([]models.LedgerEntry, error) {
	if _, err := s.Get(ctx, accountID); err != nil {
		return nil, err
	}
	limit, offset := pageBounds(page, pageSize)
	return s.store.Queries().ListLedgerEntriesByAccount(ctx, repository.ListByAccountParams{
		AccountID: accountID,
		Limit:     limit,
		Offset:    offset,
	})
}
