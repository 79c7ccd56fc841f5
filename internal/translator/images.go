package translator

import (
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// LastImagePart finds the last image_url part of the last message. Only that part
// is ever resolved to an upstream image handle.
func LastImagePart(messages []byte) (idx int, url string, ok bool) {
	last := lastIndex(messages)
	if last < 0 {
		return -1, "", false
	}
	parts := gjson.GetBytes(messages, strconv.Itoa(last)+".content")
	if !parts.IsArray() {
		return -1, "", false
	}
	items := parts.Array()
	for i := len(items) - 1; i >= 0; i-- {
		u := items[i].Get("image_url.url").String()
		if u == "" {
			// some clients send image_url as a bare string
			if iu := items[i].Get("image_url"); iu.Type == gjson.String {
				u = iu.String()
			}
		}
		if u != "" {
			return i, u, true
		}
	}
	return -1, "", false
}

// ReplaceImagePart swaps the part at idx of the last message for an upstream
// image reference.
func ReplaceImagePart(messages []byte, idx int, handle string) ([]byte, error) {
	path := lastPath(messages, "content."+strconv.Itoa(idx))
	return sjson.SetBytes(messages, path, map[string]string{"type": "image", "image": handle})
}
