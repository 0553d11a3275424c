package matchcache

import (
	"strings"
	"testing"

	"github.com/morphdex/morphdex/pkg/config"
)

func TestBuildKeyNormalizesQueries(t *testing.T) {
	c := New(nil, config.RedisConfig{}, nil)

	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{"word order", "big bang", "bang big", true},
		{"case", "UNIVERSE started", "universe STARTED", true},
		{"repetition", "bang bang bang", "bang", true},
		{"whitespace", "  big   bang  ", "big bang", true},
		{"different words", "big bang", "big bank", false},
		{"punctuation is significant", "bang!", "bang", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka, kb := c.buildKey(tt.a), c.buildKey(tt.b)
			if (ka == kb) != tt.same {
				t.Errorf("buildKey(%q) vs buildKey(%q): same = %v, want %v", tt.a, tt.b, ka == kb, tt.same)
			}
		})
	}
}

func TestBuildKeyPrefix(t *testing.T) {
	c := New(nil, config.RedisConfig{}, nil)
	if key := c.buildKey("universe"); !strings.HasPrefix(key, keyPrefix) {
		t.Errorf("key %q missing prefix %q", key, keyPrefix)
	}
}
