package service

import (
	"errors"
	"fmt"
	"math"

	"github.com/ayo6706/solar-ledger/internal/domain"
	"github.com/jackc/pgx/v5"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func requireExactlyOne(rows int64, operation string) error {
	if rows != 1 {
		return fmt.Errorf("%s affected %d rows", operation, rows)
	}
	return nil
}

// lookupError maps a missing row to domain.ErrNotFound.
func lookupError(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

// pageBounds converts a 1-based page into limit and offset. Pages past the
// int32 offset range are pinned to the last representable page, which is empty.
func pageBounds(page, pageSize int) (limit, offset int32) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	lastPage := math.MaxInt32/pageSize + 1
	if page > lastPage {
		page = lastPage
	}
	return int32(pageSize), int32((page - 1) * pageSize)
}
