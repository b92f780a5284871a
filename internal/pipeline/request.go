package pipeline

import (
	"encoding/base64"
	"strings"
)

// BlockKind tags the content block sent to the document model.
type BlockKind uint8

const (
	BlockDocument BlockKind = iota
	BlockImage
)

func (k BlockKind) String() string {
	switch k {
	case BlockDocument:
		return "document"
	case BlockImage:
		return "image"
	default:
		return "unknown"
	}
}

// ContentBlock is a base64 encoded document or image.
type ContentBlock struct {
	Kind      BlockKind
	MediaType string
	Data      string // base64, standard encoding
}

// Bytes decodes Data.
func (b ContentBlock) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(b.Data)
}

// ModelRequest is a single user turn: one content block followed by one text
// instruction.
type ModelRequest struct {
	Content     ContentBlock
	Instruction string
}

// supportedMIME maps accepted MIME types to the block kind and media type
// sent to the model. image/jpg is not a registered type and is sent as
// image/jpeg.
var supportedMIME = map[string]struct {
	kind      BlockKind
	mediaType string
}{
	"application/pdf": {BlockDocument, "application/pdf"},
	"image/png":       {BlockImage, "image/png"},
	"image/jpeg":      {BlockImage, "image/jpeg"},
	"image/jpg":       {BlockImage, "image/jpeg"},
	"image/gif":       {BlockImage, "image/gif"},
	"image/webp":      {BlockImage, "image/webp"},
}

// SupportedMIME reports whether files of this type can be extracted. The
// comparison is exact apart from surrounding whitespace.
func SupportedMIME(mimeType string) bool {
	_, ok := supportedMIME[strings.TrimSpace(mimeType)]
	return ok
}

// BuildRequest encodes data into a model request for the given MIME type.
// The bool is false for unsupported types.
func BuildRequest(mimeType string, data []byte) (ModelRequest, bool) {
	m, ok := supportedMIME[strings.TrimSpace(mimeType)]
	if !ok {
		return ModelRequest{}, false
	}
	return ModelRequest{
		Content: ContentBlock{
			Kind:      m.kind,
			MediaType: m.mediaType,
			Data:      base64.StdEncoding.EncodeToString(data),
		},
		Instruction: ExtractionPrompt,
	}, true
}
