package estimates

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/sales/shared"
)

// PlanEstimate validates input and computes the estimate to persist.
func PlanEstimate(in NewEstimate, now time.Time) (Estimate, error) {
	if in.CustomerID <= 0 {
		return Estimate{}, &shared.ValidationError{Field: "customer_id", Message: "is required"}
	}
	if err := shared.ValidateItems(in.Items); err != nil {
		return Estimate{}, err
	}
	validUntil := in.ValidUntil
	if validUntil.IsZero() {
		validUntil = now.Add(DefaultValidity)
	}
	validUntil = truncateDay(validUntil)
	if validUntil.Before(truncateDay(now)) {
		return Estimate{}, &shared.ValidationError{Field: "valid_until", Message: "must not be in the past"}
	}

	status := shared.EstimateStatusPending
	if in.SaveAsDraft {
		status = shared.EstimateStatusDraft
	}
	return Estimate{
		CustomerID: in.CustomerID,
		SalesRepID: in.SalesRepID,
		Items:      shared.CloneItems(in.Items),
		Summary:    shared.ComputeSummary(in.Items, decimal.Zero, summaryOptions),
		Status:     status,
		ValidUntil: validUntil,
		Message:    in.Message,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ApplyUpdate returns est with the update applied and its summary recomputed.
func ApplyUpdate(est Estimate, upd UpdateEstimate, now time.Time) (Estimate, error) {
	if est.Status != shared.EstimateStatusDraft {
		return Estimate{}, shared.ErrImmutable
	}
	if upd.Items != nil {
		if err := shared.ValidateItems(upd.Items); err != nil {
			return Estimate{}, err
		}
		est.Items = shared.CloneItems(upd.Items)
	}
	if !upd.ValidUntil.IsZero() {
		validUntil := truncateDay(upd.ValidUntil)
		if validUntil.Before(truncateDay(now)) {
			return Estimate{}, &shared.ValidationError{Field: "valid_until", Message: "must not be in the past"}
		}
		est.ValidUntil = validUntil
	}
	if upd.Message != nil {
		est.Message = *upd.Message
	}
	est.Summary = shared.ComputeSummary(est.Items, decimal.Zero, summaryOptions)
	est.UpdatedAt = now
	return est, nil
}
