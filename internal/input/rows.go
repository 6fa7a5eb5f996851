// Package input models the already-tokenized object rows handed over by the
// input-definitions parser. The parser itself is an external collaborator;
// this package only carries its output shape.
package input

import "strings"

// Object is one parsed input object: a class, a name, and the remaining
// alpha and numeric fields in declaration order.
type Object struct {
	Class  string
	Name   string
	Alpha  []string
	Number []float64
}

// AlphaAt returns the alpha field at index i or "" when absent.
func (o Object) AlphaAt(i int) string {
	if i < 0 || i >= len(o.Alpha) {
		return ""
	}
	return strings.TrimSpace(o.Alpha[i])
}

// NumberAt returns the numeric field at index i or 0 when absent.
func (o Object) NumberAt(i int) float64 {
	if i < 0 || i >= len(o.Number) {
		return 0
	}
	return o.Number[i]
}

// Deck is an ordered collection of parsed objects grouped by class.
type Deck struct {
	objects []Object
	byClass map[string][]int
}

// NewDeck builds a deck from parsed objects.
func NewDeck(objects []Object) *Deck {
	deck := &Deck{objects: objects, byClass: make(map[string][]int)}
	for i, obj := range objects {
		class := strings.ToLower(strings.TrimSpace(obj.Class))
		deck.byClass[class] = append(deck.byClass[class], i)
	}
	return deck
}

// ObjectsOf returns all objects of the given class, in input order.
func (d *Deck) ObjectsOf(class string) []Object {
	indices := d.byClass[strings.ToLower(strings.TrimSpace(class))]
	if len(indices) == 0 {
		return nil
	}
	out := make([]Object, 0, len(indices))
	for _, i := range indices {
		out = append(out, d.objects[i])
	}
	return out
}

// Count returns the number of objects of the given class.
func (d *Deck) Count(class string) int {
	return len(d.byClass[strings.ToLower(strings.TrimSpace(class))])
}
