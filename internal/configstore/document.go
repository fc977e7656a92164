// Where: internal/configstore/document.go
// What: Generic XML element tree for the appliance configuration file.
// Why: Edit a few elements while round-tripping everything else untouched.
package configstore

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// Node is one XML element. Children and attributes unknown to this tool are
// carried through decode and encode unchanged. Comments are dropped.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []*Node    `xml:",any"`
}

// Document is a parsed configuration file.
type Document struct {
	Root *Node
}

// ParseDocument decodes a configuration file.
func ParseDocument(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidDocument)
	}
	var root Node
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	root.normalize()
	return &Document{Root: &root}, nil
}

// Bytes encodes the document with an XML header and two-space indentation.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(d.Root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// normalize drops indentation whitespace from elements that hold children,
// otherwise the encoder would stack it on top of its own indentation.
func (n *Node) normalize() {
	if len(n.Children) > 0 && strings.TrimSpace(n.Text) == "" {
		n.Text = ""
	}
	for _, child := range n.Children {
		child.normalize()
	}
}

// Child returns the first direct child with the given local name.
func (n *Node) Child(name string) *Node {
	for _, child := range n.Children {
		if child.XMLName.Local == name {
			return child
		}
	}
	return nil
}

// ChildrenNamed returns every direct child with the given local name.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, child := range n.Children {
		if child.XMLName.Local == name {
			out = append(out, child)
		}
	}
	return out
}

// ChildText returns the trimmed text of the named child, or "".
func (n *Node) ChildText(name string) string {
	if child := n.Child(name); child != nil {
		return strings.TrimSpace(child.Text)
	}
	return ""
}

// Append adds a new child element and returns it.
func (n *Node) Append(name, text string) *Node {
	child := &Node{XMLName: xml.Name{Local: name}, Text: text}
	if strings.TrimSpace(n.Text) == "" {
		n.Text = ""
	}
	n.Children = append(n.Children, child)
	return child
}

// Ensure returns the named child, creating it when missing.
func (n *Node) Ensure(name string) *Node {
	if child := n.Child(name); child != nil {
		return child
	}
	return n.Append(name, "")
}

// SetChildText replaces the text of the named child, creating it when missing.
func (n *Node) SetChildText(name, text string) {
	n.Ensure(name).Text = text
}
