package orders

import (
	"context"
	"fmt"

	"github.com/ariefcatur/tableorder/internal/apperr"
	"github.com/ariefcatur/tableorder/internal/tables"
	"github.com/ariefcatur/tableorder/internal/tracing"
	"go.uber.org/zap"
)

// CheckIn resolves a scanned QR token to its table.
func (s *Service) CheckIn(ctx context.Context, token string) (tables.Table, error) {
	var tbl tables.Table
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		tbl, err = tables.NewRegistry(tx).FindByToken(ctx, token)
		return err
	})
	if tableNotFound(err) {
		return tables.Table{}, apperr.NotFound("invalid table token")
	}
	if err != nil {
		return tables.Table{}, apperr.Internal(err, "check in")
	}
	return tbl, nil
}

// IssueCheckInToken generates a new token for the table. The previous token
// stops working.
func (s *Service) IssueCheckInToken(ctx context.Context, tableID string) (string, error) {
	var token string
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		token, err = tables.NewRegistry(tx).IssueCheckInToken(ctx, tableID)
		return err
	})
	if tableNotFound(err) {
		return "", apperr.NotFound("table not found")
	}
	if err != nil {
		return "", apperr.Internal(err, "issue check-in token")
	}
	s.log.Info("check-in token issued", zap.String("table_id", tableID))
	return token, nil
}

// SetTableStatus is the manual override used by staff, e.g. to reserve a
// table. It does not look at the table's orders.
func (s *Service) SetTableStatus(ctx context.Context, tableID string, status tables.Status) (tables.Table, error) {
	if _, err := tables.ParseStatus(string(status)); err != nil {
		return tables.Table{}, apperr.BadRequest("unknown table status %q", status)
	}
	var tbl tables.Table
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		registry := tables.NewRegistry(tx)
		current, err := registry.FindByID(ctx, tableID)
		if err != nil {
			return err
		}
		if err := registry.SetStatus(ctx, tableID, status); err != nil {
			return err
		}
		if current.Status != status {
			if err := s.appendTableEvent(ctx, tx, current, status, "manual", tracing.TraceParent(ctx)); err != nil {
				return err
			}
		}
		tbl = current
		tbl.Status = status
		return nil
	})
	if tableNotFound(err) {
		return tables.Table{}, apperr.NotFound("table not found")
	}
	if err != nil {
		return tables.Table{}, apperr.Internal(fmt.Errorf("set table status: %w", err), "set table status")
	}
	return tbl, nil
}
