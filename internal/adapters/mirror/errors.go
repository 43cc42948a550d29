package mirror

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/atvirokodosprendimai/dbmirror/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
)

const pgUniqueViolation = "23505"

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return true
	}
	return gormsqlite.IsUniqueViolation(err)
}

func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDuplicateKey(err) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrDuplicateKey, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
