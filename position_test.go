package codetrack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	entry := LineSpan{Start: 4, End: 6}

	tests := []struct {
		name      string
		edit      Edit
		want      Classification
		wantDelta int
	}{
		{
			name:      "insertion above shifts down",
			edit:      Edit{Range: Range{Position{2, 1}, Position{2, 1}}, NewText: "x := 1\n"},
			want:      ClassifiedBefore,
			wantDelta: 1,
		},
		{
			name:      "deletion above shifts up",
			edit:      Edit{Range: Range{Position{1, 1}, Position{3, 1}}, NewText: ""},
			want:      ClassifiedBefore,
			wantDelta: -2,
		},
		{
			name:      "same-line replacement above is neutral",
			edit:      Edit{Range: Range{Position{2, 3}, Position{2, 7}}, NewText: "yy"},
			want:      ClassifiedBefore,
			wantDelta: 0,
		},
		{
			name: "edit below leaves entry alone",
			edit: Edit{Range: Range{Position{7, 1}, Position{9, 1}}, NewText: ""},
			want: ClassifiedAfter,
		},
		{
			name: "single character inside invalidates",
			edit: Edit{Range: Range{Position{5, 3}, Position{5, 3}}, NewText: "x"},
			want: ClassifiedInvalidated,
		},
		{
			name: "edit ending on first entry line invalidates",
			edit: Edit{Range: Range{Position{2, 1}, Position{4, 1}}, NewText: ""},
			want: ClassifiedInvalidated,
		},
		{
			name: "edit starting on last entry line invalidates",
			edit: Edit{Range: Range{Position{6, 9}, Position{8, 1}}, NewText: ""},
			want: ClassifiedInvalidated,
		},
		{
			name: "edit spanning whole entry invalidates",
			edit: Edit{Range: Range{Position{1, 1}, Position{9, 1}}, NewText: "fresh"},
			want: ClassifiedInvalidated,
		},
		{
			name:      "reversed range is normalized",
			edit:      Edit{Range: Range{Position{3, 1}, Position{1, 1}}, NewText: ""},
			want:      ClassifiedBefore,
			wantDelta: -2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, delta := classify(entry, tt.edit)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantDelta, delta)
		})
	}
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "before", ClassifiedBefore.String())
	assert.Equal(t, "after", ClassifiedAfter.String())
	assert.Equal(t, "invalidated", ClassifiedInvalidated.String())
	assert.Equal(t, "unknown", Classification(99).String())
}

func TestLineSpan(t *testing.T) {
	s := LineSpan{Start: 3, End: 5}

	assert.True(t, s.contains(3))
	assert.True(t, s.contains(5))
	assert.False(t, s.contains(2))
	assert.False(t, s.contains(6))

	assert.True(t, s.overlaps(LineSpan{5, 9}))
	assert.True(t, s.overlaps(LineSpan{1, 3}))
	assert.True(t, s.overlaps(LineSpan{4, 4}))
	assert.False(t, s.overlaps(LineSpan{6, 8}))
	assert.False(t, s.overlaps(LineSpan{1, 2}))

	assert.Equal(t, LineSpan{1, 3}, s.shift(-2))
}

func TestEditLineDelta(t *testing.T) {
	del := Edit{Range: Range{Position{1, 1}, Position{4, 1}}, NewText: ""}
	assert.Equal(t, -3, del.lineDelta())

	replace := Edit{Range: Range{Position{2, 1}, Position{3, 1}}, NewText: "a\nb\nc\n"}
	assert.Equal(t, 2, replace.lineDelta())
}
