package sqlite

import (
	"fmt"

	"github.com/atvirokodosprendimai/dbmirror/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
)

func translateError(err error) error {
	if gormsqlite.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", domain.ErrDuplicateKey, err)
	}
	return err
}
