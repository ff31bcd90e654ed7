package canonical

import "testing"

func TestNormalizeActor(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"tel:+1 (555) 010-7788", "+15550107788"},
		{"TEL:5550107788", "5550107788"},
		{"+44 7700 900123", "+447700900123"},
		{"(555) 010-7788", "5550107788"},
		{"Alice.Smith@Example.COM", "alice.smith@example.com"},
		{"  Bob Jones ", "bob jones"},
		{"WhatsApp User 42", "42"},
	}
	for _, c := range cases {
		if got := NormalizeActor(c.in); got != c.want {
			t.Fatalf("NormalizeActor(%q): want=%q got=%q", c.in, c.want, got)
		}
	}
}

func TestNormalizePhoneRejectsNonPhones(t *testing.T) {
	if got := NormalizePhone("alice@example.com"); got != "" {
		t.Fatalf("NormalizePhone(email): want empty got=%q", got)
	}
	if got := NormalizePhone("no digits here"); got != "" {
		t.Fatalf("NormalizePhone(name): want empty got=%q", got)
	}
	if got := NormalizePhone("tel:+1-555-0100"); got != "+15550100" {
		t.Fatalf("NormalizePhone(tel uri): want=+15550100 got=%q", got)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail(" Carol@Example.Com "); got != "carol@example.com" {
		t.Fatalf("NormalizeEmail: got=%q", got)
	}
	if got := NormalizeEmail("5550100"); got != "" {
		t.Fatalf("NormalizeEmail(phone): want empty got=%q", got)
	}
}

func TestComposeDisplayName(t *testing.T) {
	if got := ComposeDisplayName(" Alice ", "", "Smith"); got != "Alice Smith" {
		t.Fatalf("ComposeDisplayName: got=%q", got)
	}
	if got := ComposeDisplayName("", "  "); got != "" {
		t.Fatalf("ComposeDisplayName(empty): got=%q", got)
	}
}
