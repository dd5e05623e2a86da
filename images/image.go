// Package images - Decoding and tensor conversion for classifier input photos.
package images

import (
	"bytes"
	"image"

	// Decoding is format-sniffing, so the codec imports only need to
	// register themselves.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ImageFormat represents supported image formats.
type ImageFormat string

const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

// Image represents an encoded photo with its sniffed metadata.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The encoded bytes of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image in pixels.
	Width int `json:"width" yaml:"width"`
	// The height of the image in pixels.
	Height int `json:"height" yaml:"height"`
}

// NewImage sniffs the format and dimensions of encoded photo bytes without
// decoding the full pixel data.
//
// Arguments:
//   - data: The encoded image bytes.
//
// Returns:
//   - *Image: The image with format and dimensions filled in.
//   - error: A *DecodeError if the bytes are not a supported image.
func NewImage(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Reason: "empty image data"}
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Reason: "unrecognized image data", Err: err}
	}
	return &Image{
		Format: ImageFormat(format),
		Data:   data,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}
