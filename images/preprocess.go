// Package images - Preprocessing of photos into model input tensors.
package images

import (
	"bytes"
	"fmt"
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Config defines how raw photo bytes become a model input tensor.
type Config struct {
	// TargetWidth is the width of the tensor the models consume.
	TargetWidth int
	// TargetHeight is the height of the tensor the models consume.
	TargetHeight int
	// Mean holds the per-channel means subtracted after scaling to [0, 1].
	Mean []float32
	// Std holds the per-channel divisors applied after mean subtraction.
	Std []float32
}

// GetClassifierConfig returns the preprocessing preset shared by the presence
// and parking-status heads: 224x224 input, ImageNet channel statistics.
// Both values are fixed by the trained models; changing either silently
// produces garbage predictions.
func GetClassifierConfig() Config {
	return Config{
		TargetWidth:  224,
		TargetHeight: 224,
		Mean:         []float32{0.485, 0.456, 0.406},
		Std:          []float32{0.229, 0.224, 0.225},
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.TargetWidth <= 0 || c.TargetHeight <= 0 {
		return errors.Errorf("invalid target size: %dx%d", c.TargetWidth, c.TargetHeight)
	}
	if len(c.Mean) != 3 || len(c.Std) != 3 {
		return errors.Errorf("mean and std must hold 3 channel values, got %d and %d",
			len(c.Mean), len(c.Std))
	}
	for i, s := range c.Std {
		if s == 0 {
			return errors.Errorf("std for channel %d is zero", i)
		}
	}
	return nil
}

// Tensor is a normalized channel-planar float32 image: all red values,
// then all green, then all blue. Built once per request and immutable
// afterwards.
type Tensor struct {
	// Data is the planar tensor payload, length 3*Height*Width.
	Data []float32
	// Width of the tensor in pixels.
	Width int
	// Height of the tensor in pixels.
	Height int
}

// Shape returns the ONNX input shape [batch, channels, height, width].
func (t *Tensor) Shape() []int64 {
	return []int64{1, 3, int64(t.Height), int64(t.Width)}
}

// Preprocessor converts encoded photos into normalized input tensors.
type Preprocessor struct {
	config Config
}

// NewPreprocessor creates a preprocessor with a validated configuration.
//
// Arguments:
//   - config: The preprocessing configuration.
//
// Returns:
//   - *Preprocessor: The ready preprocessor.
//   - error: An error if the configuration is unusable.
func NewPreprocessor(config Config) (*Preprocessor, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "preprocess config validation failed")
	}
	return &Preprocessor{config: config}, nil
}

// Normalize decodes photo bytes, resizes them to the target resolution and
// produces the normalized channel-planar tensor both models consume.
//
// The decoded image is not retained; the returned tensor is the only output.
//
// Arguments:
//   - data: Encoded image bytes in any registered format (JPEG, PNG, WebP).
//
// Returns:
//   - *Tensor: The normalized input tensor.
//   - error: A *DecodeError if the bytes cannot be decoded. Retrying with
//     the same bytes will fail again.
func (p *Preprocessor) Normalize(data []byte) (*Tensor, error) {
	img, err := p.decodeImage(data)
	if err != nil {
		return nil, err
	}

	resized := p.resizeImage(img)
	tensor := p.imageToTensor(resized)
	p.standardize(tensor)

	return &Tensor{
		Data:   tensor,
		Width:  p.config.TargetWidth,
		Height: p.config.TargetHeight,
	}, nil
}

// decodeImage sniffs the photo metadata first, then decodes the pixel data
// via the registered codecs. Sniffing up front lets a failure on damaged
// input name the format that was being read.
func (p *Preprocessor) decodeImage(data []byte) (image.Image, error) {
	meta, err := NewImage(data)
	if err != nil {
		return nil, err
	}
	if meta.Width <= 0 || meta.Height <= 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("%s image has no pixels", meta.Format)}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("truncated or corrupt %s data", meta.Format), Err: err}
	}
	return img, nil
}

// resizeImage scales the image to the target resolution with bilinear
// interpolation. Aspect ratio is not preserved: the models were trained on
// squashed full-frame inputs, so letterboxing or cropping would shift the
// input distribution. An image already at target size passes through
// untouched.
func (p *Preprocessor) resizeImage(img image.Image) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() == p.config.TargetWidth && bounds.Dy() == p.config.TargetHeight {
		return img
	}
	return resize.Resize(
		uint(p.config.TargetWidth),
		uint(p.config.TargetHeight),
		img,
		resize.Bilinear,
	)
}

// imageToTensor lays the image out channel-planar: all red values first,
// then all green, then all blue, each scaled to [0, 1].
func (p *Preprocessor) imageToTensor(img image.Image) []float32 {
	width := p.config.TargetWidth
	height := p.config.TargetHeight
	planeSize := width * height

	data := make([]float32, 3*planeSize)
	red := data[0:planeSize]
	green := data[planeSize : planeSize*2]
	blue := data[planeSize*2 : planeSize*3]

	bounds := img.Bounds()
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
	return data
}

// standardize applies per-channel mean/std normalization in place.
func (p *Preprocessor) standardize(data []float32) {
	planeSize := len(data) / 3
	for c := 0; c < 3; c++ {
		mean := p.config.Mean[c]
		std := p.config.Std[c]
		plane := data[c*planeSize : (c+1)*planeSize]
		for i := range plane {
			plane[i] = (plane[i] - mean) / std
		}
	}
}
