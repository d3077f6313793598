package hostsfile

import (
	"strings"
	"testing"
)

const sampleTable = `# Host Database
127.0.0.1	localhost
255.255.255.255	broadcasthost
::1             localhost

10.1.2.3	build.internal ci.internal # pinned by ops
garbage-line
`

func TestParse_PreservesNonEntries(t *testing.T) {
	table := Parse(sampleTable)
	if got := table.Render(); got != sampleTable {
		t.Fatalf("untouched table should render byte-identical:\ngot:\n%s\nwant:\n%s", got, sampleTable)
	}
}

func TestLookup(t *testing.T) {
	table := Parse(sampleTable)

	addr, ok := table.Lookup("localhost")
	if !ok || addr != "127.0.0.1" {
		t.Fatalf("Lookup(localhost) = %q, %v", addr, ok)
	}
	// First resolution-order match wins over the ::1 line.
	if addr, _ := table.Lookup("LOCALHOST"); addr != "127.0.0.1" {
		t.Fatalf("lookup should be case-insensitive, got %q", addr)
	}
	if addr, ok := table.Lookup("ci.internal"); !ok || addr != "10.1.2.3" {
		t.Fatalf("Lookup(ci.internal) = %q, %v", addr, ok)
	}
	if _, ok := table.Lookup("absent.example"); ok {
		t.Fatal("absent name should not resolve")
	}
}

func TestSet_RewriteInPlace(t *testing.T) {
	table := Parse("1.2.3.4\tgate.example\n")
	table.Set("gate.example", "127.0.0.2")

	if addr, _ := table.Lookup("gate.example"); addr != "127.0.0.2" {
		t.Fatalf("Lookup after Set = %q", addr)
	}
	if got, want := table.Render(), "127.0.0.2\tgate.example\n"; got != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}
}

func TestSet_SplitsMultiNameEntry(t *testing.T) {
	table := Parse("10.1.2.3\tbuild.internal ci.internal\n")
	table.Set("ci.internal", "127.0.0.2")

	if addr, _ := table.Lookup("build.internal"); addr != "10.1.2.3" {
		t.Fatalf("sibling name should keep its address, got %q", addr)
	}
	if addr, _ := table.Lookup("ci.internal"); addr != "127.0.0.2" {
		t.Fatalf("split name = %q", addr)
	}
	rendered := table.Render()
	if !strings.Contains(rendered, "10.1.2.3\tbuild.internal\n") {
		t.Fatalf("original entry should be rebuilt without the split name:\n%s", rendered)
	}
}

func TestSet_AppendsNewEntry(t *testing.T) {
	table := Parse("# only a comment\n")
	table.Set("gate.example", "127.0.0.2")
	if got, want := table.Render(), "# only a comment\n127.0.0.2\tgate.example\n"; got != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}
}

func TestRemove(t *testing.T) {
	table := Parse("127.0.0.2\tgate.example\n10.1.2.3\tbuild.internal ci.internal\n")

	table.Remove("gate.example")
	if _, ok := table.Lookup("gate.example"); ok {
		t.Fatal("removed name should not resolve")
	}
	if strings.Contains(table.Render(), "127.0.0.2") {
		t.Fatalf("entry left without names should be dropped:\n%s", table.Render())
	}

	table.Remove("ci.internal")
	if addr, ok := table.Lookup("build.internal"); !ok || addr != "10.1.2.3" {
		t.Fatalf("sibling should survive removal, got %q, %v", addr, ok)
	}
}

func TestFingerprint_TracksContent(t *testing.T) {
	table := Parse(sampleTable)
	before := table.Fingerprint()
	table.Set("gate.example", "127.0.0.2")
	if table.Fingerprint() == before {
		t.Fatal("fingerprint should change after a mutation")
	}
	if Parse(sampleTable).Fingerprint() != before {
		t.Fatal("fingerprint should be stable for identical content")
	}
}

func TestParseLine_InlineComment(t *testing.T) {
	table := Parse("10.1.2.3\tbuild.internal # pinned\n")
	if addr, ok := table.Lookup("build.internal"); !ok || addr != "10.1.2.3" {
		t.Fatalf("Lookup = %q, %v", addr, ok)
	}
	if _, ok := table.Lookup("#"); ok {
		t.Fatal("comment token must not parse as a name")
	}
}
