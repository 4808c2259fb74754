package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []string
		wantErr error
	}{
		{name: "nil", in: nil, want: []string{}},
		{name: "trims and drops empty", in: []string{" go ", "", "  "}, want: []string{"go"}},
		{name: "dedupes keeping first order", in: []string{"b", "a", "b", "c", "a"}, want: []string{"b", "a", "c"}},
		{
			name: "exactly ten",
			in:   []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"},
			want: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"},
		},
		{
			name:    "eleven distinct",
			in:      []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"},
			wantErr: ErrTooManyTags,
		},
		{
			name: "eleven with a duplicate",
			in:   []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "1"},
			want: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTags(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NormalizeTags() error = %v, want %v", err, tt.wantErr)
				}
				if !errors.Is(err, ErrBadRequest) {
					t.Errorf("NormalizeTags() error should be a bad request, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeTags() unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeTags() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBookmarkInputNormalize(t *testing.T) {
	blank := "  "
	in := BookmarkInput{URL: " https://go.dev ", Title: " Go ", CategoryID: &blank, Tags: []string{"lang", "lang"}}
	if err := in.Normalize(); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if in.URL != "https://go.dev" || in.Title != "Go" {
		t.Errorf("Normalize() did not trim: %+v", in)
	}
	if in.CategoryID != nil {
		t.Errorf("blank category should become nil, got %q", *in.CategoryID)
	}
	if len(in.Tags) != 1 {
		t.Errorf("expected deduped tags, got %v", in.Tags)
	}

	missing := []BookmarkInput{
		{Title: "no url"},
		{URL: "https://example.com"},
		{URL: "   ", Title: "blank url"},
	}
	for _, m := range missing {
		if err := m.Normalize(); !errors.Is(err, ErrMissingField) {
			t.Errorf("Normalize(%+v) error = %v, want ErrMissingField", m, err)
		}
	}
}

func TestSameCategory(t *testing.T) {
	a, b, c := "a", "a", "c"
	if !SameCategory(nil, nil) {
		t.Error("nil and nil should match")
	}
	if SameCategory(&a, nil) || SameCategory(nil, &a) {
		t.Error("nil and non-nil should not match")
	}
	if !SameCategory(&a, &b) {
		t.Error("equal ids should match")
	}
	if SameCategory(&a, &c) {
		t.Error("different ids should not match")
	}
}
