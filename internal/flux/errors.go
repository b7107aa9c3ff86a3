package flux

import (
	"fmt"
)

func fluxErrf(kind error, detail error) error {
	return fmt.Errorf("%w: %v", kind, detail)
}

func errOutOfSacredRange(pos int) error {
	return fmt.Errorf("position %d is not a sacred anchor (want 3, 6, or 9)", pos)
}
