package pathmatch

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"":          "/",
		"/":         "/",
		"a/b":       "/a/b",
		"//a//b//":  "/a/b",
		"/a/b/":     "/a/b",
		"/a///b///": "/a/b",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	paths := []string{"", "/", "/a/b/", "//a//b", "/users/:id//"}
	for _, p := range paths {
		once := Normalize(p)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q != %q", p, once, twice)
		}
	}
}

func TestMatchRootPattern(t *testing.T) {
	ok, params := Match("/", "/")
	if !ok || len(params) != 0 {
		t.Fatalf("expected root pattern to match root path exactly, got ok=%v params=%v", ok, params)
	}
	if ok, _ := Match("/", "/a"); ok {
		t.Fatalf("root pattern must not match /a")
	}
}

func TestMatchLiteral(t *testing.T) {
	ok, params := Match("/a/b", "/a/b")
	if !ok || len(params) != 0 {
		t.Fatalf("expected literal match, got ok=%v params=%v", ok, params)
	}
	if ok, _ := Match("/a/b", "/a/c"); ok {
		t.Fatalf("expected literal mismatch to fail")
	}
}

func TestMatchParam(t *testing.T) {
	ok, params := Match("/users/:id", "/users/42")
	if !ok {
		t.Fatal("expected match")
	}
	if params["id"] != "42" {
		t.Fatalf("expected id=42, got %v", params)
	}
}

func TestMatchSegmentCountMismatch(t *testing.T) {
	if ok, _ := Match("/users/:id", "/users/42/extra"); ok {
		t.Fatal("expected segment count mismatch to fail")
	}
}

func TestMatchDuplicateParamOverwrites(t *testing.T) {
	ok, params := Match("/:x/:x", "/a/b")
	if !ok {
		t.Fatal("expected match")
	}
	if params["x"] != "b" {
		t.Fatalf("expected duplicate param name to be overwritten by the last segment, got %v", params["x"])
	}
}

func TestMatchCaseSensitive(t *testing.T) {
	if ok, _ := Match("/Users", "/users"); ok {
		t.Fatal("expected case-sensitive mismatch")
	}
}

func TestSpecificity(t *testing.T) {
	if s := Specificity("/a/b"); s != 4 {
		t.Fatalf("expected specificity 4, got %d", s)
	}
	if s := Specificity("/a/:x"); s != 3 {
		t.Fatalf("expected specificity 3, got %d", s)
	}
	if s := Specificity("/"); s != 0 {
		t.Fatalf("expected specificity 0 for root, got %d", s)
	}
	if Specificity("/a/b") <= Specificity("/a/:x") {
		t.Fatal("literal segments must outrank parameter segments")
	}
}
