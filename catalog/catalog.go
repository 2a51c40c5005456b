package catalog

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"cashback_bot/models"
)

// DefaultEmailPattern accepts local@domain.tld and is matched case-insensitively.
const DefaultEmailPattern = `^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`

var ErrUnknownCasino = errors.New("unknown casino")

type IdentifierSpec struct {
	Kind  models.IdentifierKind
	Label string
	Regex *regexp.Regexp
}

type Casino struct {
	Code       string
	Name       string
	Identifier IdentifierSpec
}

// Catalog is immutable after Load/Default.
type Catalog struct {
	order  []string
	byCode map[string]Casino
}

type fileEntry struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Enabled    *bool  `json:"enabled"`
	Identifier struct {
		Kind  string `json:"kind"`
		Label string `json:"label"`
		Regex string `json:"regex"`
	} `json:"identifier"`
}

// Default is the built-in catalog used when no valid file is configured.
func Default() *Catalog {
	c, err := build([]fileEntry{
		entry("shuffle", "Shuffle", "nickname", "ник на Shuffle", ""),
		entry("stake", "Stake", "nickname", "ник на Stake", ""),
		entry("gamdom", "Gamdom", "email", "email аккаунта Gamdom", ""),
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Parse validates a JSON casino list: an array of entries, at least one enabled.
func Parse(data []byte) (*Catalog, error) {
	var entries []fileEntry
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode casinos: %w", err)
	}
	return build(entries)
}

// LoadFile reads path. Any failure is reported together with the default
// catalog so the caller can log it and carry on.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default(), errors.New("no casinos file configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("read casinos file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return Default(), err
	}
	return c, nil
}

func (c *Catalog) ListEnabled() []Casino {
	out := make([]Casino, 0, len(c.order))
	for _, code := range c.order {
		out = append(out, c.byCode[code])
	}
	return out
}

func (c *Catalog) Casino(code string) (Casino, error) {
	cas, ok := c.byCode[code]
	if !ok {
		return Casino{}, fmt.Errorf("%w: %q", ErrUnknownCasino, code)
	}
	return cas, nil
}

func (c *Catalog) IdentifierSpec(code string) (IdentifierSpec, error) {
	cas, err := c.Casino(code)
	if err != nil {
		return IdentifierSpec{}, err
	}
	return cas.Identifier, nil
}

func build(entries []fileEntry) (*Catalog, error) {
	c := &Catalog{byCode: make(map[string]Casino)}
	for i, e := range entries {
		if e.Enabled != nil && !*e.Enabled {
			continue
		}
		code := strings.TrimSpace(e.Code)
		if code == "" {
			return nil, fmt.Errorf("casino #%d: empty code", i+1)
		}
		if _, dup := c.byCode[code]; dup {
			return nil, fmt.Errorf("casino %q: duplicate code", code)
		}
		name := strings.TrimSpace(e.Name)
		if name == "" {
			name = code
		}
		spec, err := buildSpec(e)
		if err != nil {
			return nil, fmt.Errorf("casino %q: %w", code, err)
		}
		c.byCode[code] = Casino{Code: code, Name: name, Identifier: spec}
		c.order = append(c.order, code)
	}
	if len(c.order) == 0 {
		return nil, errors.New("casinos: no enabled entries")
	}
	return c, nil
}

func buildSpec(e fileEntry) (IdentifierSpec, error) {
	kind := models.IdentifierKind(strings.ToLower(strings.TrimSpace(e.Identifier.Kind)))
	if kind == "" {
		kind = models.IdentifierNickname
	}
	spec := IdentifierSpec{Kind: kind, Label: e.Identifier.Label}
	switch kind {
	case models.IdentifierNickname:
		if spec.Label == "" {
			spec.Label = "ник в казино"
		}
	case models.IdentifierEmail:
		if spec.Label == "" {
			spec.Label = "email аккаунта"
		}
		pattern := e.Identifier.Regex
		if pattern == "" {
			pattern = DefaultEmailPattern
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return IdentifierSpec{}, fmt.Errorf("bad email regex: %w", err)
		}
		spec.Regex = re
	default:
		return IdentifierSpec{}, fmt.Errorf("unknown identifier kind %q", kind)
	}
	return spec, nil
}

func entry(code, name, kind, label, regex string) fileEntry {
	var e fileEntry
	e.Code, e.Name = code, name
	e.Identifier.Kind, e.Identifier.Label, e.Identifier.Regex = kind, label, regex
	return e
}
