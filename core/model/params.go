package model

// AssignParam stores value in dst when it has dst's type and reports
// whether it did. SetParams implementations use it so that a mistyped
// value never clobbers the current setting.
func AssignParam[T any](dst *T, value interface{}) bool {
	v, ok := value.(T)
	if ok {
		*dst = v
	}
	return ok
}
