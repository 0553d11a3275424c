package benchmark

import (
	"testing"

	"github.com/morphdex/morphdex/internal/morphology"
)

var formWords = []string{
	"universe", "expansion", "started", "cool", "drool",
	"prove", "unraveling", "mysteries", "history", "bang",
}

func BenchmarkRulesForms(b *testing.B) {
	rules := morphology.Rules{}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, w := range formWords {
			forms := rules.Forms(w)
			_ = forms
		}
	}
}

func BenchmarkRulesFormsParallel(b *testing.B) {
	rules := morphology.Rules{}
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			forms := rules.Forms("proving")
			_ = forms
		}
	})
}
