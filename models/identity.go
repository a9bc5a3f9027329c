package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// CanonicalID converts an entity reference into the string form used for
// every set and map key inside the engine. Two references to the same
// underlying entity always produce the same string, whatever their Go type.
func CanonicalID(ref any) string {
	switch v := ref.(type) {
	case nil:
		return ""
	case string:
		return canonicalString(v)
	case *string:
		if v == nil {
			return ""
		}
		return canonicalString(*v)
	case uuid.UUID:
		return v.String()
	case *uuid.UUID:
		if v == nil {
			return ""
		}
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case *int:
		if v == nil {
			return ""
		}
		return strconv.Itoa(*v)
	case fmt.Stringer:
		return canonicalString(v.String())
	default:
		return canonicalString(fmt.Sprint(v))
	}
}

func canonicalString(s string) string {
	s = strings.TrimSpace(s)
	if u, err := uuid.Parse(s); err == nil {
		return u.String()
	}
	return s
}

// SameID reports whether two references point to the same entity.
func SameID(a, b any) bool {
	ca := CanonicalID(a)
	return ca != "" && ca == CanonicalID(b)
}

// NewID returns a fresh document identifier.
func NewID() string {
	return uuid.NewString()
}

// IDSet is a set of canonical identifiers.
type IDSet map[string]struct{}

func NewIDSet(refs ...string) IDSet {
	s := make(IDSet, len(refs))
	for _, r := range refs {
		s.Add(r)
	}
	return s
}

func (s IDSet) Add(ref any) bool {
	id := CanonicalID(ref)
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

func (s IDSet) Has(ref any) bool {
	_, ok := s[CanonicalID(ref)]
	return ok
}

// ContainsID reports whether list holds a reference equal to ref.
func ContainsID(list []string, ref string) bool {
	for _, id := range list {
		if SameID(id, ref) {
			return true
		}
	}
	return false
}
