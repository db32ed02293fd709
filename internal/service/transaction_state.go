package service

import (
	"fmt"
	"strings"

	"github.com/ayo6706/solar-ledger/internal/domain"
)

type transitionTable map[string]map[string]struct{}

// Both workflows leave pending exactly once; terminal states never move again.
var depositTransitions = transitionTable{
	domain.DepositStatusPending: {
		domain.DepositStatusVerified: {},
		domain.DepositStatusRejected: {},
	},
	domain.DepositStatusVerified: {},
	domain.DepositStatusRejected: {},
}

var withdrawalTransitions = transitionTable{
	domain.WithdrawalStatusPending: {
		domain.WithdrawalStatusProcessed: {},
		domain.WithdrawalStatusRejected:  {},
	},
	domain.WithdrawalStatusProcessed: {},
	domain.WithdrawalStatusRejected:  {},
}

func normalizeState(state string) string {
	return strings.ToLower(strings.TrimSpace(state))
}

func (t transitionTable) canTransition(current, next string) bool {
	nextStates, ok := t[normalizeState(current)]
	if !ok {
		return false
	}
	_, ok = nextStates[normalizeState(next)]
	return ok
}

func (t transitionTable) check(entity, current, next string) error {
	if !t.canTransition(current, next) {
		return fmt.Errorf("%w: %s is %s, cannot move to %s", domain.ErrInvalidState, entity, current, next)
	}
	return nil
}

func (t transitionTable) has(state string) bool {
	_, ok := t[normalizeState(state)]
	return ok
}
