package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCatalogKey = errors.New("unknown_catalog_key")
	ErrPlanNotFound      = errors.New("plan_not_found")
	ErrAddonNotFound     = errors.New("addon_not_found")
	ErrInvalidCatalog    = errors.New("invalid_catalog")
)

// UnknownKeyError is the panic value raised when code asks the catalog for a
// feature or limit key it does not define. Keys are compile-time constants in
// callers, so reaching this is a programming error rather than bad input.
type UnknownKeyError struct {
	Kind string
	Key  string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("%s: %s %q", ErrUnknownCatalogKey, e.Kind, e.Key)
}

func (e *UnknownKeyError) Unwrap() error { return ErrUnknownCatalogKey }

// PlanNotFoundError carries the offending plan id.
type PlanNotFoundError struct {
	PlanID PlanID
}

func (e *PlanNotFoundError) Error() string {
	return fmt.Sprintf("%s: %q", ErrPlanNotFound, e.PlanID)
}

func (e *PlanNotFoundError) Unwrap() error { return ErrPlanNotFound }
