// Package compose builds the multimodal part sequence sent to the image
// model: base image first, then product images, then one instruction.
package compose

import (
	"strings"

	"scene-studio/internal/dataurl"
	"scene-studio/internal/gemini"
)

// MaxProductImages is the number of product slots; extra products are dropped.
const MaxProductImages = 2

// Assemble returns [base?, product1?, product2?, text]. A nil base is skipped
// and the text part is always last, even when empty.
func Assemble(base *dataurl.Image, products []dataurl.Image, instruction string) []gemini.Part {
	products = LimitProducts(products)

	parts := make([]gemini.Part, 0, 2+len(products))
	if base != nil {
		parts = append(parts, gemini.ImagePart(base.MIMEType, base.Data))
	}
	for _, p := range products {
		parts = append(parts, gemini.ImagePart(p.MIMEType, p.Data))
	}
	return append(parts, gemini.TextPart(instruction))
}

// LimitProducts keeps the first MaxProductImages entries.
func LimitProducts(products []dataurl.Image) []dataurl.Image {
	if len(products) > MaxProductImages {
		return products[:MaxProductImages]
	}
	return products
}

// ProductSlots drops blank entries and keeps the first MaxProductImages of
// the rest in order. Every kept entry occupies a slot, parseable or not.
func ProductSlots(values []string) []string {
	kept := make([]string, 0, MaxProductImages)
	for _, v := range values {
		if len(kept) == MaxProductImages {
			break
		}
		if strings.TrimSpace(v) != "" {
			kept = append(kept, v)
		}
	}
	return kept
}

// ParseProducts parses the entries that got a slot. A malformed entry is
// omitted without handing its slot to a later one.
func ParseProducts(values []string) []dataurl.Image {
	slots := ProductSlots(values)
	out := make([]dataurl.Image, 0, len(slots))
	for _, v := range slots {
		if img, ok := dataurl.Parse(v); ok {
			out = append(out, img)
		}
	}
	return out
}
