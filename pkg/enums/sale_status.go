package enums

import (
	"fmt"
	"strings"
)

// SaleStatus is the back-office lifecycle state of a recorded sale.
type SaleStatus string

const (
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusRefunded  SaleStatus = "refunded"
	SaleStatusCancelled SaleStatus = "cancelled"
)

var validSaleStatuses = []SaleStatus{
	SaleStatusCompleted,
	SaleStatusRefunded,
	SaleStatusCancelled,
}

// String implements fmt.Stringer.
func (s SaleStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SaleStatus.
func (s SaleStatus) IsValid() bool {
	for _, candidate := range validSaleStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSaleStatus converts raw input into a SaleStatus.
func ParseSaleStatus(value string) (SaleStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validSaleStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sale status %q", value)
}
