// Package qr builds the references printed on item and box labels, resolves
// scanned references back to records, and renders label images.
package qr

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Target kinds.
const (
	KindItem = "item"
	KindBox  = "box"
)

// DefaultSize is the edge length in pixels of rendered codes.
const DefaultSize = 256

// Target is the record a scanned reference points at.
type Target struct {
	Kind string
	ID   int64
}

// ItemURL returns the reference printed on an item's label.
func ItemURL(base string, id int64) string {
	return fmt.Sprintf("%s/items/%d", strings.TrimRight(base, "/"), id)
}

// BoxURL returns the reference printed on a box's label.
func BoxURL(base string, id int64) string {
	return fmt.Sprintf("%s/boxes/%d", strings.TrimRight(base, "/"), id)
}

// Parse resolves scanned data. It accepts full URLs and bare paths whose
// last two segments are items/<id> or boxes/<id>.
func Parse(data string) (Target, bool) {
	data = strings.TrimSpace(data)
	if data == "" {
		return Target{}, false
	}

	path := data
	if u, err := url.Parse(data); err == nil && u.Path != "" {
		path = u.Path
	}

	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) < 2 {
		return Target{}, false
	}

	id, err := strconv.ParseInt(segs[len(segs)-1], 10, 64)
	if err != nil || id <= 0 {
		return Target{}, false
	}

	switch segs[len(segs)-2] {
	case "items":
		return Target{Kind: KindItem, ID: id}, true
	case "boxes":
		return Target{Kind: KindBox, ID: id}, true
	}
	return Target{}, false
}

// PNG renders content as a QR code image.
func PNG(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encoding qr code: %w", err)
	}
	return png, nil
}
