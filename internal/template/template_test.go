package template

import (
	"net/http"
	"net/url"
	"regexp"
	"testing"
)

func TestRenderIdempotenceNoTokens(t *testing.T) {
	body := `{"hello":"world"}`
	if got := Render(body, Context{}); got != body {
		t.Fatalf("expected byte-identical passthrough, got %q", got)
	}
}

func TestRenderUnknownTokenPassthrough(t *testing.T) {
	body := `{"x":"{{not.a.real.token}}"}`
	if got := Render(body, Context{}); got != body {
		t.Fatalf("expected unknown token to pass through verbatim, got %q", got)
	}
}

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestRenderUUIDShape(t *testing.T) {
	got := Render("{{$uuid}}", Context{})
	if !uuidRe.MatchString(got) {
		t.Fatalf("expected canonical v4 uuid, got %q", got)
	}
}

func TestRenderGeneratorsAreIndependentPerOccurrence(t *testing.T) {
	got := Render("{{$uuid}}-{{$uuid}}", Context{})
	first := got[:36]
	second := got[37:]
	if first == second {
		t.Fatalf("expected two independent uuids, got identical values %q", got)
	}
}

func TestRenderPathParam(t *testing.T) {
	ctx := Context{Params: map[string]string{"id": "42"}}
	if got := Render(`{"id":"{{id}}"}`, ctx); got != `{"id":"42"}` {
		t.Fatalf("got %q", got)
	}
}

func TestRenderRequestMethodAndHeaderCaseInsensitive(t *testing.T) {
	h := http.Header{}
	h.Set("X-Foo", "bar")
	ctx := Context{Method: "POST", Header: h}
	got := Render(`{"m":"{{request.method}}","h":"{{request.header.x-foo}}"}`, ctx)
	want := `{"m":"POST","h":"bar"}`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestRenderRequestQuery(t *testing.T) {
	q := url.Values{"key": []string{"value"}}
	ctx := Context{Query: q}
	if got := Render("{{request.query.key}}", ctx); got != "value" {
		t.Fatalf("got %q", got)
	}
	if got := Render("{{request.query.missing}}", ctx); got != "" {
		t.Fatalf("expected empty string for missing query key, got %q", got)
	}
}

func TestRenderBodyJSONPath(t *testing.T) {
	ctx := Context{HasBody: true, Body: []byte(`{"user":{"name":"Ann"}}`), ContentType: "application/json"}
	if got := Render("{{request.body.user.name}}", ctx); got != "Ann" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderBodyNotJSONYieldsEmpty(t *testing.T) {
	ctx := Context{HasBody: true, Body: []byte("not json"), ContentType: "application/json"}
	if got := Render("{{request.body.field}}", ctx); got != "" {
		t.Fatalf("expected empty string for non-JSON body, got %q", got)
	}
}

func TestRenderBodyMissingFieldYieldsEmpty(t *testing.T) {
	ctx := Context{HasBody: true, Body: []byte(`{"a":1}`), ContentType: "application/json"}
	if got := Render("{{request.body.b}}", ctx); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderBodyNullYieldsEmpty(t *testing.T) {
	ctx := Context{HasBody: false}
	if got := Render("{{request.body.field}}", ctx); got != "" {
		t.Fatalf("got %q", got)
	}
	if got := Render("{{request.body}}", ctx); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderFormEncodedBody(t *testing.T) {
	ctx := Context{
		HasBody:     true,
		Body:        []byte("name=Ann+Lee&age=30"),
		ContentType: "application/x-www-form-urlencoded; charset=utf-8",
	}
	if got := Render("{{request.body.name}}", ctx); got != "Ann Lee" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderBodyTerminalObjectAsJSON(t *testing.T) {
	ctx := Context{HasBody: true, Body: []byte(`{"user":{"name":"Ann","age":30}}`), ContentType: "application/json"}
	got := Render("{{request.body.user}}", ctx)
	if got != `{"age":30,"name":"Ann"}` {
		t.Fatalf("got %q", got)
	}
}

func TestStripForValidationRoundTrip(t *testing.T) {
	body := `{"m":"{{request.method}}","n":{{$randomInt}}}`
	stripped := StripForValidation(body)
	want := `{"m":"__tpl__","n":"__tpl__"}`
	if stripped != want {
		t.Fatalf("got %q want %q", stripped, want)
	}
}

func TestStripForValidationRespectsEscapedQuotes(t *testing.T) {
	body := `{"m":"a \"quote\" {{request.method}} b"}`
	stripped := StripForValidation(body)
	want := `{"m":"a \"quote\" __tpl__ b"}`
	if stripped != want {
		t.Fatalf("got %q want %q", stripped, want)
	}
}
