package tenant

import "testing"

func TestResolvePathPrefix(t *testing.T) {
	name, path, err := Resolve("anything.example.com", "/m/acme/users/42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "acme" {
		t.Fatalf("expected tenant acme, got %q", name)
	}
	if path != "/users/42" {
		t.Fatalf("expected /users/42, got %q", path)
	}
}

func TestResolvePathPrefixRootOnly(t *testing.T) {
	name, path, err := Resolve("host.example.com", "/m/acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "acme" || path != "/" {
		t.Fatalf("expected (acme, /), got (%q, %q)", name, path)
	}
}

func TestResolveHostLabel(t *testing.T) {
	name, path, err := Resolve("acme.mocks.example.com:8080", "/users/42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "acme" {
		t.Fatalf("expected tenant acme, got %q", name)
	}
	if path != "/users/42" {
		t.Fatalf("expected /users/42, got %q", path)
	}
}

func TestResolveRejectsReservedName(t *testing.T) {
	if _, _, err := Resolve("www.example.com", "/x"); err != ErrReserved {
		t.Fatalf("expected ErrReserved, got %v", err)
	}
	if _, _, err := Resolve("host", "/m/admin/x"); err != ErrReserved {
		t.Fatalf("expected ErrReserved, got %v", err)
	}
}

func TestResolveRejectsInternalPathAfterStripping(t *testing.T) {
	if _, _, err := Resolve("host", "/m/acme/__internal/endpoints"); err != ErrInternalPath {
		t.Fatalf("expected ErrInternalPath, got %v", err)
	}
}

func TestResolveEmptyHost(t *testing.T) {
	if _, _, err := Resolve("", "/x"); err != ErrEmpty {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestResolveAdminHostBased(t *testing.T) {
	name, remainder, ok := ResolveAdmin("acme.mocks.example.com", "/__internal/endpoints")
	if !ok {
		t.Fatal("expected ok")
	}
	if name != "acme" || remainder != "/__internal/endpoints" {
		t.Fatalf("expected (acme, /__internal/endpoints), got (%q, %q)", name, remainder)
	}
}

func TestResolveAdminPathPrefixBased(t *testing.T) {
	name, remainder, ok := ResolveAdmin("host", "/m/acme/__internal/endpoints")
	if !ok {
		t.Fatal("expected ok")
	}
	if name != "acme" || remainder != "/__internal/endpoints" {
		t.Fatalf("expected (acme, /__internal/endpoints), got (%q, %q)", name, remainder)
	}
}

func TestResolveAdminRejectsNonAdminPath(t *testing.T) {
	if _, _, ok := ResolveAdmin("acme.mocks.example.com", "/users/42"); ok {
		t.Fatal("expected not ok for a non-admin path")
	}
}

func TestResolveAdminRejectsReservedTenant(t *testing.T) {
	if _, _, ok := ResolveAdmin("www.example.com", "/__internal/endpoints"); ok {
		t.Fatal("expected not ok for a reserved tenant name")
	}
}
