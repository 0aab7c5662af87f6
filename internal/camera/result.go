package camera

import "image"

// ResultKind discriminates the payload of a CaptureResult.
type ResultKind int

const (
	// ResultBytes carries an encoded image (JPEG).
	ResultBytes ResultKind = iota + 1
	// ResultImage carries a decoded in-memory image.
	ResultImage
)

// Source records which capture path produced a result.
type Source int

const (
	// SourceHardware is a full device capture. Its bytes still need rotation
	// and resize correction before delivery.
	SourceHardware Source = iota
	// SourceSnapshot is a sampled preview frame, already screen oriented.
	SourceSnapshot
)

func (s Source) String() string {
	if s == SourceSnapshot {
		return "snapshot"
	}
	return "hardware"
}

// CaptureResult is either encoded bytes or a decoded image, never both.
type CaptureResult struct {
	kind   ResultKind
	data   []byte
	img    image.Image
	source Source
}

// BytesResult wraps encoded image data.
func BytesResult(data []byte, src Source) CaptureResult {
	return CaptureResult{kind: ResultBytes, data: data, source: src}
}

// ImageResult wraps a decoded image.
func ImageResult(img image.Image, src Source) CaptureResult {
	return CaptureResult{kind: ResultImage, img: img, source: src}
}

// Kind returns the payload kind; zero for an empty result.
func (r CaptureResult) Kind() ResultKind { return r.kind }

// Source returns the capture path.
func (r CaptureResult) Source() Source { return r.source }

// Bytes returns the encoded payload when Kind is ResultBytes.
func (r CaptureResult) Bytes() ([]byte, bool) {
	return r.data, r.kind == ResultBytes
}

// Image returns the decoded payload when Kind is ResultImage.
func (r CaptureResult) Image() (image.Image, bool) {
	return r.img, r.kind == ResultImage
}
