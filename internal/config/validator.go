package config

import (
	"fmt"

	constructerrors "github.com/alexisbeaulieu97/construct/pkg/errors"
)

// ValidateManifest performs schema and cross-field validation on the manifest.
// Requirements that do not name a project factor are left to the symbol
// table of the build context.
func ValidateManifest(m *Manifest) error {
	if m == nil {
		return constructerrors.NewValidationError("manifest", "manifest is nil", nil)
	}

	if err := validatorInstance().Struct(m); err != nil {
		return convertValidationError(err)
	}

	index := make(map[string]int, len(m.Factors))
	for i, f := range m.Factors {
		if prev, exists := index[f.Path]; exists {
			return constructerrors.NewValidationError(
				fieldForFactor(i, "path"),
				fmt.Sprintf("duplicate factor path %q (first declared at factors[%d])", f.Path, prev),
				nil,
			)
		}
		index[f.Path] = i
	}

	for i, f := range m.Factors {
		for _, req := range f.Requires {
			if req == f.Path {
				return constructerrors.NewValidationError(fieldForFactor(i, "requires"), fmt.Sprintf("factor %q requires itself", f.Path), nil)
			}
		}
	}

	if cycle := detectCycle(m.Factors); len(cycle) > 0 {
		return constructerrors.NewCycleError("factors", cycle)
	}

	return nil
}
