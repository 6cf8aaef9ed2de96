package migrate

import (
	"strings"
	"testing"
)

func TestNamesAreSortedAndNonEmpty(t *testing.T) {
	names, err := Names()
	if err != nil {
		t.Fatalf("Names() error: %v", err)
	}
	if len(names) == 0 {
		t.Fatal("expected at least one embedded migration script")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("expected strictly increasing order, got %v", names)
		}
	}
}

func TestEmbeddedScriptsCarrySubstitutableDimensionsPlaceholder(t *testing.T) {
	all, err := loadScripts()
	if err != nil {
		t.Fatalf("loadScripts() error: %v", err)
	}
	var found bool
	for _, s := range all {
		if !strings.Contains(s.sql, embeddingDimensionsPlaceholder) {
			continue
		}
		found = true
		body := strings.ReplaceAll(s.sql, embeddingDimensionsPlaceholder, "1536")
		if strings.Contains(body, embeddingDimensionsPlaceholder) {
			t.Fatalf("placeholder still present after substitution in %s", s.name)
		}
		if !strings.Contains(body, "vector(1536)") {
			t.Fatalf("expected substituted vector width in %s, got: %s", s.name, body)
		}
	}
	if !found {
		t.Fatal("expected at least one script referencing the embedding dimensions placeholder")
	}
}
