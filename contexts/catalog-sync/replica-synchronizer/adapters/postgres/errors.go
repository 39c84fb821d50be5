package postgresadapter

import (
	"errors"
	"fmt"

	domainerrors "shopgate/contexts/catalog-sync/replica-synchronizer/domain/errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// classifyError maps Postgres constraint failures onto domain errors so the
// application layer can tell ordering races from genuine failures.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domainerrors.ErrForeignKeyViolation) || errors.Is(err, domainerrors.ErrUniqueViolation) {
		return err
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s: %w", domainerrors.ErrForeignKeyViolation, pgErr.ConstraintName, err)
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s: %w", domainerrors.ErrUniqueViolation, pgErr.ConstraintName, err)
	default:
		return err
	}
}
