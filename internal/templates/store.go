// Package templates supplies the read-only template sets behind categorical
// fields: position names, craft names and equipment types. The sets are
// administered elsewhere; this core only reads them.
package templates

import (
	"context"

	"prequal/internal/forms/schema"
)

// Store lists template entries for one template kind, in display order.
type Store interface {
	List(ctx context.Context, kind schema.TemplateKind) ([]string, error)
}
