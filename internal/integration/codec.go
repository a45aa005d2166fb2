package integration

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	contentJSON = "application/json"
	contentXML  = "application/xml"
	contentForm = "application/x-www-form-urlencoded"
)

// encodeBody serialises body for the gateway's declared content type.
func encodeBody(contentType string, body any) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case contentXML:
		b, err := xml.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode xml: %w", err)
		}
		return bytes.NewReader(append([]byte(xml.Header), b...)), nil
	case contentForm:
		form, err := formEncode(body)
		if err != nil {
			return nil, err
		}
		return strings.NewReader(form), nil
	default:
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return bytes.NewReader(b), nil
	}
}

// formEncode flattens body into bracket notation (metadata[order_number]=...),
// the convention form-encoded payment APIs expect.
func formEncode(body any) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode form: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return "", fmt.Errorf("encode form: %w", err)
	}
	values := url.Values{}
	flatten(values, "", tree)
	return values.Encode(), nil
}

func flatten(values url.Values, prefix string, node any) {
	switch v := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			key := k
			if prefix != "" {
				key = prefix + "[" + k + "]"
			}
			flatten(values, key, v[k])
		}
	case []any:
		for i, item := range v {
			flatten(values, prefix+"["+strconv.Itoa(i)+"]", item)
		}
	case nil:
		values.Add(prefix, "")
	case string:
		values.Add(prefix, v)
	case bool:
		values.Add(prefix, strconv.FormatBool(v))
	default:
		values.Add(prefix, fmt.Sprint(v))
	}
}
