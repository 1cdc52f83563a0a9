package webapi

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/cryguy/offscreen/internal/core"
	"github.com/cryguy/offscreen/internal/eventloop"
)

var errInvalidCharacter = errors.New("string contains an invalid character")

// btoa encodes a Latin1 string. Runes above 0xFF are rejected the way
// browsers reject them.
func btoa(s string) (string, error) {
	buf := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			return "", errInvalidCharacter
		}
		buf = append(buf, byte(r))
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// atob decodes forgiving base64 into a Latin1 string.
func atob(s string) (string, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\f', '\r':
			return -1
		}
		return r
	}, s)
	if len(s)%4 == 0 {
		s = strings.TrimSuffix(strings.TrimSuffix(s, "="), "=")
	}
	if len(s)%4 == 1 || strings.Contains(s, "=") {
		return "", errInvalidCharacter
	}
	raw, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return "", errInvalidCharacter
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes), nil
}

// SetupEncoding installs atob and btoa.
func SetupEncoding(rt core.JSRuntime, _ *eventloop.EventLoop, _ Page) error {
	if err := rt.RegisterFunc("__btoa", btoa); err != nil {
		return err
	}
	if err := rt.RegisterFunc("__atob", atob); err != nil {
		return err
	}
	if err := rt.Eval(`
		globalThis.btoa = function(data) {
			if (arguments.length < 1) throw new TypeError("btoa requires 1 argument");
			return __btoa(String(data));
		};
		globalThis.atob = function(data) {
			if (arguments.length < 1) throw new TypeError("atob requires 1 argument");
			return __atob(String(data));
		};
	`); err != nil {
		return fmt.Errorf("installing atob/btoa: %w", err)
	}
	return nil
}
