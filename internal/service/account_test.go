package service

import (
	"context"
	"testing"

	"github.com/ayo6706/solar-ledger/internal/domain"
	"github.com/ayo6706/solar-ledger/internal/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := uuid.New()

	acc, err := env.accounts.Open(ctx, OpenAccountRequest{AccountID: id, Name: "  Grace   Achieng ", Phone: "0712 345 678"})
	require.NoError(t, err)
	assert.Equal(t, id, acc.ID)
	assert.Equal(t, "Grace Achieng", acc.Name)
	assert.Equal(t, int64(0), acc.Balance)
	assert.Equal(t, domain.ReferralCode("Grace Achieng", "0712 345 678"), acc.ReferralCode)
	assert.Nil(t, acc.ReferredBy)

	got, err := env.accounts.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, acc.ReferralCode, got.ReferralCode)
}

func TestOpenAccountValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  OpenAccountRequest
		want error
	}{
		{"blank name", OpenAccountRequest{AccountID: uuid.New(), Name: "  ", Phone: "0712345678"}, domain.ErrInvalidInput},
		{"short phone", OpenAccountRequest{AccountID: uuid.New(), Name: "Hassan", Phone: "0712"}, domain.ErrInvalidInput},
		{"malformed referral code", OpenAccountRequest{AccountID: uuid.New(), Name: "Hassan", Phone: "0712345678", ReferralCode: "??"}, domain.ErrInvalidReferralCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.accounts.Open(ctx, tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenAccountDuplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := env.accounts.Open(ctx, OpenAccountRequest{AccountID: id, Name: "Irene", Phone: "0711111111"})
	require.NoError(t, err)

	_, err = env.accounts.Open(ctx, OpenAccountRequest{AccountID: id, Name: "Irene", Phone: "0722222222"})
	require.ErrorIs(t, err, domain.ErrAccountExists)

	_, err = env.accounts.Open(ctx, OpenAccountRequest{AccountID: uuid.New(), Name: "Someone Else", Phone: "0711111111"})
	require.ErrorIs(t, err, domain.ErrAccountExists)
}

func TestOpenAccountWithReferralCreditsReferrer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	referrer := env.openAccount(t, "James Kamau")

	referred, err := env.accounts.Open(ctx, OpenAccountRequest{
		AccountID:    uuid.New(),
		Name:         "Joy Chebet",
		Phone:        "0733000111",
		ReferralCode: " " + referrer.ReferralCode + " ",
	})
	require.NoError(t, err)
	require.NotNil(t, referred.ReferredBy)
	assert.Equal(t, referrer.ID, *referred.ReferredBy)
	assert.Equal(t, int64(0), referred.Balance)

	got, err := env.accounts.Get(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultReferralBonus, got.Balance)
	assert.Equal(t, domain.DefaultReferralBonus, got.ReferralEarnings)
	assert.Equal(t, int64(1), got.ReferralCount)

	entries := env.entries(t, referrer.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.KindReferralBonus, entries[0].Kind)
	assert.Equal(t, referred.ID, entries[0].RelatedRecordID)

	pub := newRecordingPublisher()
	_, err = NewOutboxService(env.store, pub).Relay(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, []events.Type{events.AccountOpened, events.ReferralCredited}, pub.typesFor(referrer.ID))
	assert.Equal(t, []events.Type{events.AccountOpened}, pub.typesFor(referred.ID))
	env.requireReconciled(t)
}

func TestOpenAccountUnknownReferralCodeFailsSignup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := env.accounts.Open(ctx, OpenAccountRequest{AccountID: id, Name: "Kevin", Phone: "0744000111", ReferralCode: "AIZZZZZZ"})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.accounts.Get(ctx, id)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStatementMissingAccount(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.accounts.Statement(context.Background(), uuid.New(), 1, 20)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOpenAccountResolvesReferralCodeCollision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const shared = "AIE4K27A"
	env.accounts.WithReferralCodes(func(name, phone string, attempt int) string {
		if attempt == 0 {
			return shared
		}
		return domain.ReferralCodeAttempt(name, phone, attempt)
	})

	first, err := env.accounts.Open(ctx, OpenAccountRequest{AccountID: uuid.New(), Name: "Jane Doe", Phone: "0711004324"})
	require.NoError(t, err)
	assert.Equal(t, shared, first.ReferralCode)

	second, err := env.accounts.Open(ctx, OpenAccountRequest{AccountID: uuid.New(), Name: "Jane Doe", Phone: "0711018671"})
	require.NoError(t, err)
	assert.Equal(t, domain.ReferralCodeAttempt("Jane Doe", "0711018671", 1), second.ReferralCode)

	referred, err := env.accounts.Open(ctx, OpenAccountRequest{
		AccountID:    uuid.New(),
		Name:         "Brian Otieno",
		Phone:        "0722000333",
		ReferralCode: second.ReferralCode,
	})
	require.NoError(t, err)
	require.NotNil(t, referred.ReferredBy)
	assert.Equal(t, second.ID, *referred.ReferredBy)

	got, err := env.accounts.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.ReferralCount)
}

func TestOpenAccountReferralCodesExhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.accounts.WithReferralCodes(func(string, string, int) string { return "AIAAAAAA" })

	_, err := env.accounts.Open(ctx, OpenAccountRequest{AccountID: uuid.New(), Name: "Jane Doe", Phone: "0711004324"})
	require.NoError(t, err)

	id := uuid.New()
	_, err = env.accounts.Open(ctx, OpenAccountRequest{AccountID: id, Name: "John Doe", Phone: "0711018671"})
	require.ErrorIs(t, err, errReferralCodesExhausted)
	assert.NotErrorIs(t, err, domain.ErrAccountExists)

	_, err = env.accounts.Get(ctx, id)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
