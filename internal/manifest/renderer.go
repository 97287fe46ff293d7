// Package manifest renders deployment manifests from service templates by
// substituting {{KEY}} placeholders. Rendering is pure text substitution:
// the same template and bindings always produce byte-identical output, and
// placeholders without a binding pass through verbatim so templates may
// contain braces incidental to the target format.
package manifest

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/beyondfire/cloud-platform/booking-service/internal/models"
)

// Bindings maps placeholder keys to their substituted values.
type Bindings map[string]string

// Auxiliary artifact kinds.
const KindProxy = "proxy"

var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z_]+)\}\}`)

// Render substitutes every {{KEY}} occurrence in template with the bound
// value. Keys without a binding are left untouched. Substitution is a
// single pass over the original template: substituted values are never
// re-scanned, so placeholder tokens inside a value come through verbatim.
func Render(template string, bindings Bindings) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := match[2 : len(match)-2]
		if value, ok := bindings[key]; ok {
			return value
		}
		return match
	})
}

// ForBooking builds the standard bindings for a booking: PORT, DOMAIN,
// UNIQUE_ID and, when a license payload exists, LICENSE_EMAIL and
// LICENSE_PASSWORD.
func ForBooking(b *models.Booking) Bindings {
	bindings := Bindings{
		"PORT":      strconv.Itoa(b.Port),
		"DOMAIN":    b.Domain,
		"UNIQUE_ID": b.UniqueID(),
	}
	if b.License != nil {
		bindings["LICENSE_EMAIL"] = b.License.Email
		bindings["LICENSE_PASSWORD"] = b.License.Password
	}
	return bindings
}

// Renderer renders auxiliary artifacts (side files the orchestrator mounts
// next to a stack) from templates registered per kind.
type Renderer struct {
	aux map[string]string
}

func NewRenderer() *Renderer {
	return &Renderer{aux: make(map[string]string)}
}

// RegisterAuxiliary registers the template for an artifact kind,
// replacing any previous registration.
func (r *Renderer) RegisterAuxiliary(kind, template string) {
	r.aux[kind] = template
}

// HasAuxiliary reports whether a template is registered for kind.
func (r *Renderer) HasAuxiliary(kind string) bool {
	_, ok := r.aux[kind]
	return ok
}

// RenderAuxiliary renders the artifact registered for kind with the same
// substitution semantics as Render.
func (r *Renderer) RenderAuxiliary(kind string, bindings Bindings) (string, error) {
	template, ok := r.aux[kind]
	if !ok {
		return "", fmt.Errorf("no auxiliary template registered for kind %q", kind)
	}
	return Render(template, bindings), nil
}
