// Package multipart implements the multipart/related framing used by the
// STOW-RS and WADO-RS protocols. Part bodies are raw DICOM files, so the
// decoder works on byte offsets and never re-encodes part content.
package multipart

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
)

// RelatedType is the only top-level media type accepted by the gateway.
const RelatedType = "multipart/related"

// Item is one decoded part of a multipart/related body. Data aliases the
// decoded body, so an Item must not outlive the buffer it was parsed from.
type Item struct {
	ContentType string
	Data        []byte
	Size        int
}

// Writer frames a sequence of parts with a fixed boundary token.
type Writer struct {
	buf      bytes.Buffer
	boundary string
}

// NewWriter creates a writer with a fresh random boundary. The token is a
// UUID, which cannot collide with DICOM part content in practice.
func NewWriter() (*Writer, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, dwerr.Wrap(dwerr.NotEnoughMemory, "generating multipart boundary", err)
	}
	return &Writer{boundary: id.String()}, nil
}

// NewWriterWithBoundary creates a writer reusing an existing boundary
// token, so consecutive bodies of one operation share a single token.
func NewWriterWithBoundary(boundary string) *Writer {
	return &Writer{boundary: boundary}
}

// Boundary returns the boundary token of this writer.
func (w *Writer) Boundary() string {
	return w.boundary
}

// Len returns the number of bytes buffered so far.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Append frames one part. An empty contentType still emits the header
// with an empty value, matching what remote STOW-RS servers accept.
func (w *Writer) Append(contentType string, data []byte) {
	fmt.Fprintf(&w.buf, "\r\n--%s\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n",
		w.boundary, contentType, len(data))
	w.buf.Write(data)
}

// Close terminates the body and returns the full framed payload. The
// writer can be Reset and reused afterwards.
func (w *Writer) Close() []byte {
	fmt.Fprintf(&w.buf, "\r\n--%s--\r\n", w.boundary)
	return w.buf.Bytes()
}

// Reset discards buffered content, keeping the boundary token.
func (w *Writer) Reset() {
	w.buf.Reset()
}

// Encode frames the given parts into a single body with a fresh boundary.
func Encode(parts []Item) (body []byte, boundary string, err error) {
	w, err := NewWriter()
	if err != nil {
		return nil, "", err
	}
	for _, p := range parts {
		w.Append(p.ContentType, p.Data)
	}
	return w.Close(), w.Boundary(), nil
}

// Decode splits a multipart/related body on the given boundary and
// returns the parts in source order. Part data is not copied.
func Decode(body []byte, boundary string) ([]Item, error) {
	if boundary == "" {
		return nil, dwerr.New(dwerr.BadFileFormat, "empty multipart boundary")
	}

	delimiter := []byte("--" + boundary)
	terminator := []byte("\r\n--" + boundary)
	pos := bytes.Index(body, delimiter)
	if pos < 0 {
		return nil, dwerr.Newf(dwerr.BadFileFormat, "boundary %q not found in multipart body", boundary)
	}

	var items []Item
	rest := body[pos:]
	for {
		rest = rest[len(delimiter):]

		// Closing delimiter.
		if bytes.HasPrefix(rest, []byte("--")) {
			return items, nil
		}
		headerEnd := bytes.Index(rest, []byte("\r\n\r\n"))
		if headerEnd < 0 {
			return nil, dwerr.New(dwerr.BadFileFormat, "multipart part without header block")
		}
		contentType := partContentType(rest[:headerEnd])
		data := rest[headerEnd+4:]

		next := bytes.Index(data, terminator)
		if next < 0 {
			return nil, dwerr.New(dwerr.BadFileFormat, "multipart part without terminating delimiter")
		}

		items = append(items, Item{
			ContentType: contentType,
			Data:        data[:next],
			Size:        next,
		})
		rest = data[next+2:]
	}
}

// partContentType extracts the Content-Type header from a part's header
// block, or "" when absent.
func partContentType(headers []byte) string {
	for _, line := range strings.Split(string(headers), "\r\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Type") {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// ParseContentType splits a Content-Type header into its media type and
// parameters. The media type and parameter names are lower-cased, and
// quoted parameter values are unquoted, per RFC 7231 section 3.1.1.1.
func ParseContentType(header string) (mediaType string, params map[string]string) {
	tokens := strings.Split(header, ";")
	mediaType = strings.ToLower(strings.TrimSpace(tokens[0]))

	params = make(map[string]string)
	for _, token := range tokens[1:] {
		name, value, ok := strings.Cut(token, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
			value = value[1 : len(value)-1]
		}
		params[strings.ToLower(strings.TrimSpace(name))] = value
	}
	return mediaType, params
}

// ParseRelated parses a Content-Type header that must declare
// multipart/related, returning its parameters.
func ParseRelated(header string) (map[string]string, error) {
	mediaType, params := ParseContentType(header)
	if mediaType != RelatedType {
		return nil, dwerr.Newf(dwerr.UnsupportedMediaType, "expected %s, got %q", RelatedType, mediaType)
	}
	return params, nil
}
