// Package gpx converts GPX track documents into generic maps suitable for
// merging into an exercise summary and storing as JSON.
//
// The mapping follows these rules:
//   - the document becomes a single-key map {rootName: rootValue}
//   - attributes become plain keys (no prefix), keeping namespace prefixes such as "xmlns:gpxtpx"
//   - an element with neither attributes nor children becomes its trimmed text, or nil when empty
//   - otherwise the element's trimmed text, if any, is stored under TextKey
//   - repeated keys collapse into a []interface{} in document order
package gpx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// TextKey holds element text for elements that also carry attributes or children.
const TextKey = "text"

var ErrEmptyDocument = errors.New("gpx: document has no root element")

type element struct {
	name string
	item map[string]interface{}
	text strings.Builder
}

func (e *element) value() interface{} {
	text := strings.TrimSpace(e.text.String())
	if len(e.item) == 0 {
		if text == "" {
			return nil
		}
		return text
	}
	if text != "" {
		push(e.item, TextKey, text)
	}
	return e.item
}

// Parse converts a GPX (or any XML) document into a map.
func Parse(data []byte) (map[string]interface{}, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		stack []*element
		root  map[string]interface{}
	)
	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gpx: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: qualifiedName(t.Name), item: map[string]interface{}{}}
			for _, a := range t.Attr {
				push(el.item, qualifiedName(a.Name), a.Value)
			}
			stack = append(stack, el)
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("gpx: unexpected closing tag %s", qualifiedName(t.Name))
			}
			el := stack[len(stack)-1]
			if name := qualifiedName(t.Name); name != el.name {
				return nil, fmt.Errorf("gpx: mismatched closing tag %s for %s", name, el.name)
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("gpx: multiple root elements")
				}
				root = map[string]interface{}{el.name: el.value()}
				continue
			}
			push(stack[len(stack)-1].item, el.name, el.value())
		}
	}

	if len(stack) > 0 {
		return nil, fmt.Errorf("gpx: unclosed element %s", stack[len(stack)-1].name)
	}
	if root == nil {
		return nil, ErrEmptyDocument
	}
	return root, nil
}

func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func push(m map[string]interface{}, key string, value interface{}) {
	existing, ok := m[key]
	if !ok {
		m[key] = value
		return
	}
	if list, isList := existing.([]interface{}); isList {
		m[key] = append(list, value)
		return
	}
	m[key] = []interface{}{existing, value}
}
