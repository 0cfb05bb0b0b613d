package valueobjects

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "blogify/pkg/errors"
)

func TestPostID_Kinds(t *testing.T) {
	confirmed, err := NewConfirmedID("42")
	require.NoError(t, err)
	assert.Equal(t, Confirmed, confirmed.Kind())
	assert.False(t, confirmed.IsProvisional())

	_, err = NewConfirmedID("  ")
	assert.Error(t, err)

	src := NewProvisionalIDSource("temp")
	src.now = func() time.Time { return time.UnixMilli(1700000000000) }
	p := src.Next()
	assert.True(t, p.IsProvisional())
	assert.Equal(t, "temp-1700000000000-1", p.String())
}

func TestPostID_KindIsNotParsedFromText(t *testing.T) {
	// A server id that happens to look like a placeholder is still confirmed.
	var id PostID
	require.NoError(t, json.Unmarshal([]byte(`"temp-123"`), &id))
	assert.Equal(t, Confirmed, id.Kind())

	assert.False(t, id.Equals(PostID{value: "temp-123", kind: Provisional}))
}

func TestPostID_JSONNull(t *testing.T) {
	var id PostID
	require.NoError(t, json.Unmarshal([]byte(`null`), &id))
	assert.True(t, id.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`12`), &id))
}

func TestProvisionalIDSource_Unique(t *testing.T) {
	src := NewProvisionalIDSource("")
	src.now = func() time.Time { return time.UnixMilli(1) }

	var (
		mu   sync.Mutex
		seen = map[string]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := src.Next()
			mu.Lock()
			seen[id.String()] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}

func TestNewPostContent(t *testing.T) {
	tests := []struct {
		name       string
		title      string
		body       string
		wantFields []string
	}{
		{name: "valid", title: "  Hello  ", body: "A long enough body"},
		{name: "whitespace title", title: "     ", body: "A long enough body", wantFields: []string{"title"}},
		{name: "short body", title: "Hello", body: "short", wantFields: []string{"body"}},
		{name: "long title", title: strings.Repeat("x", 201), body: "A long enough body", wantFields: []string{"title"}},
		{name: "both", title: "a", body: "b", wantFields: []string{"title", "body"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewPostContent(tt.title, tt.body)
			if len(tt.wantFields) == 0 {
				require.NoError(t, err)
				assert.Equal(t, strings.TrimSpace(tt.title), c.Title())
				return
			}
			var verrs *pkgerrors.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			fields := verrs.ToMap()
			for _, f := range tt.wantFields {
				assert.Contains(t, fields, f)
			}
		})
	}
}
