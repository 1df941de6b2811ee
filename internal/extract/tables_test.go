package extract

import (
	"reflect"
	"testing"
)

func TestDetectTables(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []TableData
	}{
		{
			name: "plain prose has no tables",
			text: "This is a paragraph of ordinary text.\nIt continues on a second line.",
			want: nil,
		},
		{
			name: "aligned columns form one table with header",
			text: "Quarterly results\n" +
				"Quarter    Revenue    Cost\n" +
				"Q1    100    40\n" +
				"Q2    120    45\n",
			want: []TableData{
				{
					{"Quarter", "Revenue", "Cost"},
					{"Q1", "100", "40"},
					{"Q2", "120", "45"},
				},
			},
		},
		{
			name: "width change splits tables",
			text: "a    b\nc    d\n\nx    y    z\np    q    r\n",
			want: []TableData{
				{{"a", "b"}, {"c", "d"}},
				{{"x", "y", "z"}, {"p", "q", "r"}},
			},
		},
		{
			name: "single aligned line is not a table",
			text: "header    only\nregular text follows here\n",
			want: nil,
		},
		{
			name: "tab separated cells",
			text: "name\tvalue\nalpha\t1\n",
			want: []TableData{
				{{"name", "value"}, {"alpha", "1"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectTables(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("detectTables() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFoldAccents(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"café", "cafe"},
		{"naïve résumé", "naive resume"},
		{"already ascii", "already ascii"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := foldAccents(tt.in); got != tt.want {
			t.Errorf("foldAccents(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
