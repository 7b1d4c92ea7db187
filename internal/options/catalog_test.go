package options

import "testing"

func TestIsUserVariable(t *testing.T) {
	tests := map[string]bool{
		"_my-var":   true,
		"num-cores": false,
		"":          false,
	}
	for name, want := range tests {
		if got := IsUserVariable(name); got != want {
			t.Errorf("IsUserVariable(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestCatalogHasNoDuplicateNames(t *testing.T) {
	specs := []Spec{}
	for _, spec := range Catalog {
		specs = append(specs, spec)
	}
	if len(Catalog) != len(specs) {
		t.Fatal("buildCatalog should not produce duplicate option names")
	}
}

func TestSetAcceptsUserVariableWithoutCatalogEntry(t *testing.T) {
	tbl := New()
	if err := tbl.Set(ScopeGlobal, "", "_my-custom-var", "value"); err != nil {
		t.Fatalf("Set should accept an underscore-prefixed user variable: %v", err)
	}
	if got := tbl.GetGlobal("_my-custom-var"); got != "value" {
		t.Errorf("GetGlobal() = %q, want value", got)
	}
}

func TestNewPopulatesCatalogDefaults(t *testing.T) {
	tbl := New()
	if got := tbl.GetGlobal("cmake-generator"); got != "Ninja" {
		t.Errorf("GetGlobal(cmake-generator) = %q, want Ninja", got)
	}
	if got := tbl.GetGlobal("niceness"); got != "10" {
		t.Errorf("GetGlobal(niceness) = %q, want 10", got)
	}
}
