package valueobjects

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// IDKind tells a server-assigned identifier apart from a locally minted one.
type IDKind uint8

const (
	// Confirmed identifiers were assigned by the backend.
	Confirmed IDKind = iota + 1
	// Provisional identifiers exist only until a mutation resolves.
	Provisional
)

func (k IDKind) String() string {
	switch k {
	case Confirmed:
		return "confirmed"
	case Provisional:
		return "provisional"
	default:
		return "unknown"
	}
}

// PostID is a value object identifying a post. It is either Confirmed or
// Provisional; the kind travels with the value and is never derived from the
// textual form.
type PostID struct {
	value string
	kind  IDKind
}

// NewConfirmedID wraps an identifier returned by the backend.
func NewConfirmedID(id string) (PostID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return PostID{}, errors.New("post ID cannot be empty")
	}
	return PostID{value: id, kind: Confirmed}, nil
}

// MustConfirmedID is NewConfirmedID for values known to be valid.
func MustConfirmedID(id string) PostID {
	pid, err := NewConfirmedID(id)
	if err != nil {
		panic(err)
	}
	return pid
}

// String returns the string representation of the PostID
func (id PostID) String() string {
	return id.value
}

// Kind returns the identifier's kind; the zero PostID has no kind.
func (id PostID) Kind() IDKind {
	return id.kind
}

// IsProvisional reports whether the id was minted locally.
func (id PostID) IsProvisional() bool {
	return id.kind == Provisional
}

// Equals compares value and kind.
func (id PostID) Equals(other PostID) bool {
	return id.value == other.value && id.kind == other.kind
}

// IsZero checks if the PostID is the zero value
func (id PostID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id PostID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler. Anything decoded from the wire
// is Confirmed.
func (id *PostID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("PostID must be a string")
	}
	if s == "" {
		*id = PostID{}
		return nil
	}
	*id = PostID{value: s, kind: Confirmed}
	return nil
}

// ProvisionalIDSource mints provisional identifiers of the form
// <prefix>-<unix millis>-<seq>. The sequence keeps ids unique when two
// placeholders are created within the same millisecond.
type ProvisionalIDSource struct {
	prefix string
	seq    atomic.Uint64
	now    func() time.Time
}

// NewProvisionalIDSource creates a source using the given prefix.
func NewProvisionalIDSource(prefix string) *ProvisionalIDSource {
	if prefix == "" {
		prefix = "temp"
	}
	return &ProvisionalIDSource{prefix: prefix, now: time.Now}
}

// Next returns a fresh provisional id.
func (s *ProvisionalIDSource) Next() PostID {
	n := s.seq.Add(1)
	return PostID{
		value: fmt.Sprintf("%s-%d-%d", s.prefix, s.now().UnixMilli(), n),
		kind:  Provisional,
	}
}
