package domain

const (
	// Ledger entry kinds
	KindDeposit       = "deposit"
	KindWithdrawal    = "withdrawal"
	KindReferralBonus = "referral_bonus"
	KindPurchase      = "purchase"

	DirectionDebit  = "debit"
	DirectionCredit = "credit"

	// Deposit claim statuses
	DepositStatusPending  = "pending"
	DepositStatusVerified = "verified"
	DepositStatusRejected = "rejected"

	// Withdrawal request statuses
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusProcessed = "processed"
	WithdrawalStatusRejected  = "rejected"

	// Payment methods accepted for deposits
	MethodMpesa  = "mpesa"
	MethodAirtel = "airtel"

	RoleAdmin = "admin"

	// Defaults carried over from the product rules.
	DefaultMinDeposit        int64 = 200
	DefaultMinWithdrawal     int64 = 800
	DefaultWithdrawalFeeRate       = "0.10"
	DefaultReferralBonus     int64 = 400
	DefaultWithdrawalDays          = "1-5"
	DefaultWithdrawalStart         = 9
	DefaultWithdrawalEnd           = 18
	DefaultWithdrawalTZ            = "Africa/Nairobi"
	DefaultPurchaseLimits          = "1:1,2:1"

	// Unlimited marks a product without a purchase cap.
	Unlimited int64 = -1
)

// ValidMethod reports whether m is an accepted deposit payment method.
func ValidMethod(m string) bool {
	return m == MethodMpesa || m == MethodAirtel
}

// ValidKind reports whether k is a known ledger entry kind.
func ValidKind(k string) bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindReferralBonus, KindPurchase:
		return true
	}
	return false
}
