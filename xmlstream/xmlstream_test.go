package xmlstream

import (
	"bufio"
	"bytes"
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func splitAll(t *testing.T, name, input string) []string {
	t.Helper()
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Split(Splitter(name))
	var tokens []string
	for scanner.Scan() {
		tokens = append(tokens, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return tokens
}

func TestSplitter(t *testing.T) {
	var cases = []struct {
		about string
		input string
		want  []string
	}{
		{
			about: "plain sequence",
			input: `<record>a</record><record>b</record>`,
			want:  []string{"<record>a</record>", "<record>b</record>"},
		},
		{
			about: "noise between elements",
			input: "junk <record>a</record>\n\n <record>b</record> trailing",
			want:  []string{"<record>a</record>", "<record>b</record>"},
		},
		{
			about: "attributes on the element",
			input: `<record status="deleted">a</record>`,
			want:  []string{`<record status="deleted">a</record>`},
		},
		{
			about: "similarly named element is not a boundary",
			input: `<recordList><record>a</record></recordList>`,
			want:  []string{"<record>a</record>"},
		},
		{
			about: "truncated trailing element is dropped",
			input: `<record>a</record><record>trunc`,
			want:  []string{"<record>a</record>"},
		},
		{
			about: "no elements at all",
			input: "nothing here",
			want:  nil,
		},
	}
	for _, c := range cases {
		got := splitAll(t, "record", c.input)
		if !cmp.Equal(got, c.want) {
			t.Errorf("%s: got %v, want %v", c.about, got, c.want)
		}
	}
}

func TestSplitterAcrossReads(t *testing.T) {
	// A tiny buffer forces tags to straddle read boundaries.
	payload := `<record>` + strings.Repeat("x", 100) + `</record>`
	scanner := bufio.NewScanner(strings.NewReader("  " + payload + "  " + payload))
	scanner.Split(Splitter("record"))
	scanner.Buffer(make([]byte, 16), 4096)
	var n int
	for scanner.Scan() {
		if got := scanner.Text(); got != payload {
			t.Errorf("got %q", got)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if n != 2 {
		t.Errorf("got %d records, want 2", n)
	}
}

func TestProcessorRun(t *testing.T) {
	input := strings.Repeat("<record>a</record><record>skip</record>", 50)
	p := NewProcessor("record", func(b []byte) ([]byte, error) {
		if bytes.Contains(b, []byte("skip")) {
			return nil, nil
		}
		return []byte("ok\n"), nil
	})
	p.Workers = 4
	var buf bytes.Buffer
	if err := p.Run(context.Background(), strings.NewReader(input), &buf); err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Fields(buf.String())
	sort.Strings(lines)
	if len(lines) != 50 {
		t.Fatalf("got %d results, want 50", len(lines))
	}
	for _, l := range lines {
		if l != "ok" {
			t.Errorf("got %q, want ok", l)
		}
	}
}

func TestProcessorPropagatesError(t *testing.T) {
	p := NewProcessor("record", func(b []byte) ([]byte, error) {
		return nil, context.DeadlineExceeded
	})
	err := p.Run(context.Background(), strings.NewReader("<record>a</record>"), &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected processing error to surface")
	}
}
