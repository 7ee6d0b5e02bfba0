package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// InvalidConfigurationError is returned at construction or search time when
// a component is configured with values outside its domain: an RFE target
// outside [1, P], a non-positive step, a learning rate outside (0, 1], an
// empty grid, and so on.
type InvalidConfigurationError struct {
	Component string
	Param     string
	Reason    string
	Value     interface{}
}

func (e *InvalidConfigurationError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("ensemblecv: %s: invalid configuration: %s", e.Component, e.Reason)
	}
	return fmt.Sprintf("ensemblecv: %s: invalid configuration for '%s': %s (got: %v)", e.Component, e.Param, e.Reason, e.Value)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *InvalidConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("component", e.Component).
		Str("param_name", e.Param).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "InvalidConfigurationError")
}

// NewInvalidConfigurationError creates an InvalidConfigurationError.
func NewInvalidConfigurationError(component, param, reason string, value interface{}) error {
	return errors.WithStack(&InvalidConfigurationError{Component: component, Param: param, Reason: reason, Value: value})
}

// NewEmptyGridError is an InvalidConfigurationError that also matches ErrEmptyGrid.
func NewEmptyGridError(component string) error {
	err := &InvalidConfigurationError{Component: component, Reason: "parameter grid expands to zero combinations"}
	return errors.Mark(errors.WithStack(err), ErrEmptyGrid)
}

// IncompatibleMemberError is returned when an ensemble is built from a member
// lacking a capability the strategy needs (probabilities for soft voting,
// Clone for independent fitting).
type IncompatibleMemberError struct {
	Ensemble   string
	Member     string
	Capability string
}

func (e *IncompatibleMemberError) Error() string {
	return fmt.Sprintf("ensemblecv: %s: member '%s' does not support %s", e.Ensemble, e.Member, e.Capability)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *IncompatibleMemberError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("ensemble", e.Ensemble).
		Str("member", e.Member).
		Str("capability", e.Capability).
		Str("type", "IncompatibleMemberError")
}

// NewIncompatibleMemberError creates an IncompatibleMemberError.
func NewIncompatibleMemberError(ensemble, member, capability string) error {
	return errors.WithStack(&IncompatibleMemberError{Ensemble: ensemble, Member: member, Capability: capability})
}

// DegenerateFoldError reports a fold whose train or test part is missing a
// class, which makes fitting or F1 undefined. Params is the hyperparameter
// combination under evaluation, empty outside a search.
type DegenerateFoldError struct {
	Fold         int
	Part         string // "train" or "test"
	MissingClass int
	Params       string
}

func (e *DegenerateFoldError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ensemblecv: fold %d: %s part has no samples of class %d", e.Fold, e.Part, e.MissingClass)
	if e.Params != "" {
		fmt.Fprintf(&b, " (params: %s)", e.Params)
	}
	return b.String()
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *DegenerateFoldError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("fold", e.Fold).
		Str("part", e.Part).
		Int("missing_class", e.MissingClass).
		Str("params", e.Params).
		Str("type", "DegenerateFoldError")
}

// NewDegenerateFoldError creates a DegenerateFoldError.
func NewDegenerateFoldError(fold int, part string, missingClass int, params string) error {
	return errors.WithStack(&DegenerateFoldError{Fold: fold, Part: part, MissingClass: missingClass, Params: params})
}

// UndefinedMetricError is returned by metrics that have no defined value
// for the given labels, e.g. F1 when the positive class is absent.
type UndefinedMetricError struct {
	Metric    string
	Condition string
}

func (e *UndefinedMetricError) Error() string {
	return fmt.Sprintf("ensemblecv: metric '%s' is undefined: %s", e.Metric, e.Condition)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *UndefinedMetricError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("metric", e.Metric).
		Str("condition", e.Condition).
		Str("type", "UndefinedMetricError")
}

// NewUndefinedMetricError creates an UndefinedMetricError.
func NewUndefinedMetricError(metric, condition string) error {
	return errors.WithStack(&UndefinedMetricError{Metric: metric, Condition: condition})
}

// IsInvalidConfiguration reports whether err is (or wraps) an InvalidConfigurationError.
func IsInvalidConfiguration(err error) bool {
	var target *InvalidConfigurationError
	return errors.As(err, &target)
}

// IsDegenerateFold reports whether err is (or wraps) a DegenerateFoldError.
func IsDegenerateFold(err error) bool {
	var target *DegenerateFoldError
	return errors.As(err, &target)
}
