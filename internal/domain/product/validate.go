package product

import (
	"github.com/xenking/swag-store/internal/validation"
)

// Validate checks a product definition before it is created or updated.
func Validate(p *Product) error {
	return validation.Struct(p)
}
