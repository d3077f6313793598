package region

import (
	"reflect"
	"testing"
)

func TestDefaultRegistry_Complete(t *testing.T) {
	reg := DefaultRegistry()
	want := []string{"EU", "JP", "KR", "NA", "SEA", "TW"}
	if got := reg.Codes(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Codes() = %v, want %v", got, want)
	}

	na, ok := reg.Lookup("NA")
	if !ok {
		t.Fatal("NA should be registered")
	}
	if na.BindHost != "127.0.0.2" {
		t.Errorf("NA bindHost = %q", na.BindHost)
	}
	if len(na.RedirectNames) != 2 {
		t.Errorf("NA redirectNames = %v", na.RedirectNames)
	}
	if na.Aux == nil || na.Aux.Name != "account-na.aurora-online.net" {
		t.Errorf("NA aux = %+v", na.Aux)
	}

	if _, ok := reg.Lookup("XX"); ok {
		t.Fatal("XX should not be registered")
	}
}

func TestDefaultRegistry_StructuredLocator(t *testing.T) {
	jp, ok := DefaultRegistry().Lookup("JP")
	if !ok {
		t.Fatal("JP should be registered")
	}
	if jp.Locator.Host != "directory.aurora-online.jp" || jp.Locator.Port != 8080 {
		t.Fatalf("JP locator = %+v", jp.Locator)
	}
	if len(jp.Locator.Paths) != 2 {
		t.Fatalf("JP locator paths = %v", jp.Locator.Paths)
	}
}

func TestNewRegistry_LocatorUnion(t *testing.T) {
	reg, err := NewRegistry([]byte(`
regions:
  AA:
    locator: http://dir.example.test/servers.json
    bindHost: 127.0.0.10
  BB:
    locator:
      host: dir.example.test
      port: 9000
`))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	aa, _ := reg.Lookup("AA")
	if aa.Locator.URL != "http://dir.example.test/servers.json" {
		t.Fatalf("AA locator = %+v", aa.Locator)
	}
	bb, _ := reg.Lookup("BB")
	if bb.Locator.Host != "dir.example.test" || bb.Locator.Port != 9000 {
		t.Fatalf("BB locator = %+v", bb.Locator)
	}
}

func TestNewRegistry_StructuredLocatorRequiresHost(t *testing.T) {
	_, err := NewRegistry([]byte(`
regions:
  AA:
    locator:
      port: 9000
`))
	if err == nil {
		t.Fatal("expected error for a structured locator without host")
	}
}
