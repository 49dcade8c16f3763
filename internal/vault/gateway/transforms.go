package gateway

import (
	"strings"

	dErrors "vaultcore/pkg/domain-errors"
)

// TransformOp names one local post-processing step applied to a decrypted
// value. Transforms never cross the boundary; they run in-process after the
// plaintext is back.
type TransformOp string

const (
	// OpPrefix keeps the first N characters.
	OpPrefix TransformOp = "prefix"

	// OpSuffix keeps the last N characters.
	OpSuffix TransformOp = "suffix"

	// OpLowercase folds the value to lower case.
	OpLowercase TransformOp = "to_lowercase"

	// OpUppercase folds the value to upper case.
	OpUppercase TransformOp = "to_uppercase"

	// OpRedact replaces every character with '*'.
	OpRedact TransformOp = "redact"
)

// Transform is one step of a pipeline. N is only meaningful for the
// prefix/suffix ops.
type Transform struct {
	Op TransformOp
	N  int
}

// Pipeline is an ordered list of transforms applied left to right.
type Pipeline []Transform

// Validate rejects malformed pipelines before any boundary dispatch.
func (p Pipeline) Validate() error {
	for _, t := range p {
		switch t.Op {
		case OpPrefix, OpSuffix:
			if t.N <= 0 {
				return dErrors.Newf(dErrors.CodeValidation, "transform %s requires a positive length", t.Op)
			}
		case OpLowercase, OpUppercase, OpRedact:
			if t.N != 0 {
				return dErrors.Newf(dErrors.CodeValidation, "transform %s takes no length", t.Op)
			}
		default:
			return dErrors.Newf(dErrors.CodeValidation, "unknown transform %q", t.Op)
		}
	}
	return nil
}

// Apply runs the pipeline over one value. Pipelines are validated up front,
// so Apply has no failure mode.
func (p Pipeline) Apply(value string) string {
	for _, t := range p {
		value = t.apply(value)
	}
	return value
}

func (t Transform) apply(value string) string {
	switch t.Op {
	case OpPrefix:
		if r := []rune(value); len(r) > t.N {
			return string(r[:t.N])
		}
		return value
	case OpSuffix:
		if r := []rune(value); len(r) > t.N {
			return string(r[len(r)-t.N:])
		}
		return value
	case OpLowercase:
		return strings.ToLower(value)
	case OpUppercase:
		return strings.ToUpper(value)
	case OpRedact:
		return strings.Repeat("*", len([]rune(value)))
	}
	return value
}
