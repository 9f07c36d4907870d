package formats

import (
	"fmt"

	"github.com/mrlokans/recall/internal/faults"
)

func structuralf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", faults.ErrUnsupportedStructure, fmt.Sprintf(format, args...))
}
