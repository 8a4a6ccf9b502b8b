package dashboard

import (
	"context"
	"errors"

	"github.com/angelmondragon/rfm-dashboard/internal/rfm"
	pkgerrors "github.com/angelmondragon/rfm-dashboard/pkg/errors"
)

const (
	reasonLoad       = "load"
	reasonEmpty      = "empty_dataset"
	reasonInvalidRow = "invalid_rows"
	reasonCanceled   = "canceled"
)

// classifyAggregation maps rfm failures onto API error codes.
func classifyAggregation(err error) (string, error) {
	if errors.Is(err, rfm.ErrEmptyInput) {
		return reasonEmpty, pkgerrors.Wrap(pkgerrors.CodeEmptyDataset, err, "dataset contains no orders")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return reasonCanceled, err
	}
	coded := pkgerrors.Wrap(pkgerrors.CodeUnprocessable, err, "dataset cannot be aggregated")
	var rowErr *rfm.RowError
	if errors.As(err, &rowErr) {
		coded = coded.WithDetails(map[string]any{
			"row":    rowErr.Row,
			"field":  rowErr.Field,
			"reason": rowErr.Err.Error(),
		})
	}
	return reasonInvalidRow, coded
}

func classifyLoad(err error) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dataset source unavailable")
}
