// imageprocessor.go - Image normalization for better OCR accuracy

package processor

import (
	"bytes"
	"encoding/base64"
	"image"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pakorn/invoice_extract_ai/internal/common"
)

// dataURIPrefix matches a data:image/...;base64, transport prefix.
var dataURIPrefix = regexp.MustCompile(`^data:image/[\w.+-]+;base64,`)

// DecodeImagePayload strips any data-URI prefix from the encoded payload
// and base64-decodes it. A payload that cannot be decoded is a terminal
// input error for the call; it is never retried.
func DecodeImagePayload(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, common.NewError(common.ErrInput, "empty image payload", nil)
	}

	encoded = dataURIPrefix.ReplaceAllString(encoded, "")

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// Some clients omit padding
		raw, err = base64.RawStdEncoding.DecodeString(encoded)
	}
	if err != nil {
		return nil, common.NewError(common.ErrInput, "invalid base64 image payload", err)
	}
	if len(raw) == 0 {
		return nil, common.NewError(common.ErrInput, "empty image payload", nil)
	}
	return raw, nil
}

// Normalize decodes a raster image and applies the fixed enhancement
// sequence: grayscale, contrast stretch to the channel's full range, then
// sharpening. The order is deliberate - sharpening after the stretch avoids
// amplifying noise in low-contrast regions. The result is PNG encoded.
func Normalize(raw []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, common.NewError(common.ErrImageProcessing, "failed to decode image", err)
	}

	gray := imaging.Grayscale(img)
	stretched := stretchContrast(gray)
	sharpened := imaging.Sharpen(stretched, 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, sharpened, imaging.PNG); err != nil {
		return nil, common.NewError(common.ErrImageProcessing, "failed to encode normalized image", err)
	}
	return buf.Bytes(), nil
}

// stretchContrast linearly remaps the luminance range [min,max] observed in
// the image to the full [0,255] range. The input must already be grayscale
// so the red channel stands in for luminance.
func stretchContrast(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)

	lo, hi := uint8(255), uint8(0)
	for i := 0; i < len(out.Pix); i += 4 {
		v := out.Pix[i]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	// Flat images (hi == lo) have no range to stretch
	if hi <= lo {
		return out
	}

	scale := 255.0 / float64(hi-lo)
	var lut [256]uint8
	for v := int(lo); v <= int(hi); v++ {
		lut[v] = uint8(float64(v-int(lo))*scale + 0.5)
	}
	for v := 0; v < int(lo); v++ {
		lut[v] = 0
	}
	for v := int(hi) + 1; v < 256; v++ {
		lut[v] = 255
	}

	for i := 0; i < len(out.Pix); i += 4 {
		v := lut[out.Pix[i]]
		out.Pix[i] = v
		out.Pix[i+1] = v
		out.Pix[i+2] = v
	}
	return out
}
