package quiz

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeTextStripsDiacritics(t *testing.T) {
	got := normalizeText("Crème brûlée, s'il vous plaît!", normalizeOptions{stripPunct: true, collapseWS: true})
	require.Equal(t, "creme brulee sil vous plait", got)
}

func TestFoldTextCollapsesWhitespaceAndCase(t *testing.T) {
	require.Equal(t, foldText("  Café\t au  LAIT "), foldText("cafe au lait"))
}

func TestEvaluateIsSafeForConcurrentUse(t *testing.T) {
	fitb := QuestionSnapshot{
		Type:           "fill_blank",
		Options:        []OptionSnapshot{{ID: "k1", Text: "exact:Crème brûlée | flags=normalize_ws"}},
		CorrectAnswers: []string{"k1"},
	}
	matching := matchingSnapshot([]string{"p1::a1", "p2::a2"})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				out := Evaluate(fitb, Response{SelectedOptions: []string{" creme  brulee "}}, nil)
				if !out.Correct {
					t.Error("fill-blank evaluation flipped under concurrency")
					return
				}
				out = Evaluate(matching, Response{SelectedOptions: []string{"p2::a2", "p1::a1"}}, nil)
				if !out.Correct {
					t.Error("matching evaluation flipped under concurrency")
					return
				}
			}
		}()
	}
	wg.Wait()
}
