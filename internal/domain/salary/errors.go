package salary

import "errors"

var (
	ErrStructureNotFound   = errors.New("salary structure not found")
	ErrNoEffectiveRevision = errors.New("no salary structure revision effective for the period")
)
