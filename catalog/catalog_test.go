package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cashback_bot/models"
)

func TestDefault(t *testing.T) {
	c := Default()
	list := c.ListEnabled()
	if len(list) != 3 {
		t.Fatalf("expected 3 casinos, got %d", len(list))
	}
	var nick, email int
	for _, cas := range list {
		switch cas.Identifier.Kind {
		case models.IdentifierNickname:
			nick++
		case models.IdentifierEmail:
			email++
			if !cas.Identifier.Regex.MatchString("Player@Example.COM") {
				t.Error("default email regex should match case-insensitively")
			}
		}
	}
	if nick != 2 || email != 1 {
		t.Errorf("want 2 nickname + 1 email, got %d + %d", nick, email)
	}
	if _, err := c.IdentifierSpec("shuffle"); err != nil {
		t.Errorf("IdentifierSpec(shuffle) error = %v", err)
	}
	if _, err := c.IdentifierSpec("nope"); !errors.Is(err, ErrUnknownCasino) {
		t.Errorf("expected ErrUnknownCasino, got %v", err)
	}
}

func TestParse(t *testing.T) {
	t.Run("valid with disabled entry", func(t *testing.T) {
		c, err := Parse([]byte(`[
			{"code":"a","name":"Alpha","identifier":{"kind":"nickname"}},
			{"code":"b","name":"Beta","enabled":false},
			{"code":"c","name":"Gamma","identifier":{"kind":"email","regex":"^[a-z]+@corp\\.io$"}}
		]`))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		list := c.ListEnabled()
		if len(list) != 2 || list[0].Code != "a" || list[1].Code != "c" {
			t.Fatalf("unexpected enabled list %+v", list)
		}
		spec, _ := c.IdentifierSpec("c")
		if !spec.Regex.MatchString("BOB@CORP.IO") || spec.Regex.MatchString("bob@gmail.com") {
			t.Error("custom regex not applied case-insensitively")
		}
	})

	bad := map[string]string{
		"malformed json": `{"code":`,
		"empty list":     `[]`,
		"all disabled":   `[{"code":"a","enabled":false}]`,
		"empty code":     `[{"code":" "}]`,
		"duplicate code": `[{"code":"a"},{"code":"a"}]`,
		"unknown kind":   `[{"code":"a","identifier":{"kind":"phone"}}]`,
		"broken regex":   `[{"code":"a","identifier":{"kind":"email","regex":"("}}]`,
	}
	for name, body := range bad {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFile_FallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "casinos.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFile(path)
	if err == nil {
		t.Error("expected error to be reported")
	}
	if len(c.ListEnabled()) != 3 {
		t.Error("expected default catalog on invalid file")
	}

	c, err = LoadFile(filepath.Join(dir, "missing.json"))
	if err == nil || len(c.ListEnabled()) != 3 {
		t.Error("expected default catalog on missing file")
	}

	if err := os.WriteFile(path, []byte(`[{"code":"solo","name":"Solo"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err = LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got := c.ListEnabled(); len(got) != 1 || got[0].Name != "Solo" {
		t.Errorf("unexpected catalog %+v", got)
	}
}
