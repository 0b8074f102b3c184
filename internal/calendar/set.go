package calendar

import (
	"encoding/json"
	"sort"
)

// DateSet is a set of dates. It encodes as a sorted JSON array of strings.
// A nil DateSet is a valid empty set for reads.
type DateSet map[Date]struct{}

func NewDateSet(ds ...Date) DateSet {
	s := make(DateSet, len(ds))
	for _, d := range ds {
		s.Add(d)
	}
	return s
}

func (s DateSet) Has(d Date) bool {
	_, ok := s[d]
	return ok
}

func (s DateSet) Add(d Date) {
	if d.IsZero() {
		return
	}
	s[d] = struct{}{}
}

func (s DateSet) Remove(d Date) { delete(s, d) }

func (s DateSet) Len() int { return len(s) }

func (s DateSet) Clone() DateSet {
	out := make(DateSet, len(s))
	for d := range s {
		out[d] = struct{}{}
	}
	return out
}

// Sorted returns the members in ascending order.
func (s DateSet) Sorted() []Date {
	out := make([]Date, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (s DateSet) MarshalJSON() ([]byte, error) {
	ds := s.Sorted()
	strs := make([]string, 0, len(ds))
	for _, d := range ds {
		strs = append(strs, d.String())
	}
	return json.Marshal(strs)
}

func (s *DateSet) UnmarshalJSON(b []byte) error {
	var strs []string
	if err := json.Unmarshal(b, &strs); err != nil {
		return err
	}
	out := make(DateSet, len(strs))
	for _, raw := range strs {
		d, err := Parse(raw)
		if err != nil {
			return err
		}
		out.Add(d)
	}
	*s = out
	return nil
}
