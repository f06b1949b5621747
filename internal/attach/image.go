// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attach

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"

	"github.com/jeranaias/ollamachat/internal/model"
)

// maxImageDim bounds the long edge of images sent to the vision model.
// Larger images are downscaled before encoding; vision models see no
// benefit past this size and the base64 payload grows quadratically.
const maxImageDim = 1024

// jpegQuality for re-encoded downscaled images.
const jpegQuality = 85

// EncodeImages base64-encodes all image attachments for a vision request,
// downscaling oversized images first. Encoding never fails: an image that
// cannot be decoded is passed through as its raw bytes, leaving any format
// complaints to the server.
func EncodeImages(attachments []model.Attachment) []string {
	encoded := make([]string, 0, len(attachments))
	for _, att := range attachments {
		encoded = append(encoded, encodeImage(att.Data))
	}
	return encoded
}

func encodeImage(data []byte) string {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return base64.StdEncoding.EncodeToString(data)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxImageDim && bounds.Dy() <= maxImageDim {
		return base64.StdEncoding.EncodeToString(data)
	}

	scaled := resize.Thumbnail(maxImageDim, maxImageDim, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return base64.StdEncoding.EncodeToString(data)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
