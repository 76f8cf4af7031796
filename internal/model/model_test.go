package model

import "testing"

func TestParseSortOption(t *testing.T) {
	cases := []struct {
		in      string
		want    SortOption
		wantErr bool
	}{
		{"", SortRelevance, false},
		{"relevance", SortRelevance, false},
		{"Newest", SortNewest, false},
		{" oldest ", SortOldest, false},
		{"POPULARITY", SortPopularity, false},
		{"trending", SortRelevance, true},
	}

	for _, tc := range cases {
		got, err := ParseSortOption(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseSortOption(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSortOption(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseSortOption(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
