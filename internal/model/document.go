package model

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Label is a language-tagged caption of a node.
type Label struct {
	Lang        string `yaml:"lang"`
	Text        string `yaml:"text"`
	Description string `yaml:"description,omitempty"`
}

// Snapshot is a structured, whole-subtree document of one node.
// The root document of a tree is the Snapshot of its root node.
type Snapshot struct {
	ID       CategoryID
	Labels   []Label
	Counter  *int // set when serialized with counts
	Children []*Snapshot
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := &Snapshot{ID: s.ID, Labels: append([]Label(nil), s.Labels...)}
	if s.Counter != nil {
		n := *s.Counter
		c.Counter = &n
	}
	for _, child := range s.Children {
		c.Children = append(c.Children, child.Clone())
	}
	return c
}

// Find returns the snapshot of id within s's subtree, or nil.
func (s *Snapshot) Find(id CategoryID) *Snapshot {
	if s.ID == id {
		return s
	}
	for _, child := range s.Children {
		if found := child.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// RemoveChild drops the direct child with the given id.
// Returns the removed child, or nil if s had none.
func (s *Snapshot) RemoveChild(id CategoryID) *Snapshot {
	for i, child := range s.Children {
		if child.ID == id {
			s.Children = append(s.Children[:i], s.Children[i+1:]...)
			return child
		}
	}
	return nil
}

// InsertChild places child at index among s's children.
// Out-of-range indexes are clamped.
func (s *Snapshot) InsertChild(child *Snapshot, index int) {
	if index < 0 {
		index = 0
	}
	if index > len(s.Children) {
		index = len(s.Children)
	}
	s.Children = append(s.Children, nil)
	copy(s.Children[index+1:], s.Children[index:])
	s.Children[index] = child
}

// ChildIDs returns the local ids of the direct children, in order.
func (s *Snapshot) ChildIDs() []string {
	ids := make([]string, 0, len(s.Children))
	for _, child := range s.Children {
		ids = append(ids, child.ID.ID)
	}
	return ids
}

type xmlLabel struct {
	XMLName     xml.Name `xml:"label"`
	Lang        string   `xml:"lang,attr"`
	Text        string   `xml:"text,attr"`
	Description string   `xml:"description,attr,omitempty"`
}

type xmlCategory struct {
	XMLName  xml.Name      `xml:"category"`
	ID       string        `xml:"ID,attr"`
	Counter  *int          `xml:"counter,attr,omitempty"`
	Labels   []xmlLabel    `xml:"label"`
	Children []xmlCategory `xml:"category"`
}

type xmlClassification struct {
	XMLName    xml.Name      `xml:"mycoreclass"`
	ID         string        `xml:"ID,attr"`
	Counter    *int          `xml:"counter,attr,omitempty"`
	Labels     []xmlLabel    `xml:"label"`
	Categories []xmlCategory `xml:"categories>category"`
}

// EncodeDocument serializes s. Root snapshots become a <mycoreclass>
// document, category snapshots a <category> fragment.
func EncodeDocument(s *Snapshot) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("encode document: nil snapshot")
	}
	var v any
	if s.ID.IsRoot() {
		cls := xmlClassification{ID: s.ID.RootID, Counter: s.Counter, Labels: toXMLLabels(s.Labels)}
		for _, child := range s.Children {
			cls.Categories = append(cls.Categories, toXMLCategory(child))
		}
		v = cls
	} else {
		v = toXMLCategory(s)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode document %s: %w", s.ID, err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// DecodeClassification parses a root document back into a Snapshot.
func DecodeClassification(data []byte) (*Snapshot, error) {
	var cls xmlClassification
	if err := xml.Unmarshal(data, &cls); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}
	rootID, err := RootCategoryID(cls.ID)
	if err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}
	s := &Snapshot{ID: rootID, Counter: cls.Counter, Labels: fromXMLLabels(cls.Labels)}
	for _, c := range cls.Categories {
		child, err := fromXMLCategory(rootID.RootID, c)
		if err != nil {
			return nil, fmt.Errorf("decode classification %s: %w", cls.ID, err)
		}
		s.Children = append(s.Children, child)
	}
	return s, nil
}

func toXMLLabels(labels []Label) []xmlLabel {
	out := make([]xmlLabel, 0, len(labels))
	for _, l := range labels {
		out = append(out, xmlLabel{Lang: l.Lang, Text: l.Text, Description: l.Description})
	}
	return out
}

func fromXMLLabels(labels []xmlLabel) []Label {
	var out []Label
	for _, l := range labels {
		out = append(out, Label{Lang: l.Lang, Text: l.Text, Description: l.Description})
	}
	return out
}

func toXMLCategory(s *Snapshot) xmlCategory {
	c := xmlCategory{ID: s.ID.ID, Counter: s.Counter, Labels: toXMLLabels(s.Labels)}
	for _, child := range s.Children {
		c.Children = append(c.Children, toXMLCategory(child))
	}
	return c
}

func fromXMLCategory(rootID string, c xmlCategory) (*Snapshot, error) {
	id, err := NewCategoryID(rootID, c.ID)
	if err != nil {
		return nil, err
	}
	s := &Snapshot{ID: id, Counter: c.Counter, Labels: fromXMLLabels(c.Labels)}
	for _, gc := range c.Children {
		child, err := fromXMLCategory(rootID, gc)
		if err != nil {
			return nil, err
		}
		s.Children = append(s.Children, child)
	}
	return s, nil
}
