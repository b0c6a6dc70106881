package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocator_FirstMatchingStrategyWins(t *testing.T) {
	page := newFakeSession()
	second := &fakeElement{text: "Export"}
	third := &fakeElement{text: "Export too"}
	page.bySelector["#b"] = second
	page.bySelector["#c"] = third

	target := Target{Name: "x", Strategies: []Strategy{CSS("#a"), CSS("#b"), CSS("#c")}}
	el, ok := NewLocator(page, 0).Find(context.Background(), target)

	require.True(t, ok)
	assert.Same(t, second, el)
	assert.Equal(t, []string{"#a", "#b"}, page.probed)
}

func TestLocator_ScanPrioritisesTextOverAttributes(t *testing.T) {
	page := newFakeSession()
	byTitle := &fakeElement{attrs: map[string]string{"title": "Export data"}}
	byAria := &fakeElement{attrs: map[string]string{"aria-label": "EXPORT"}}
	byText := &fakeElement{text: "  export  "}
	page.candidates["button"] = []Element{byTitle, byAria, byText}

	target := Target{Name: "export", Strategies: []Strategy{CSS("#missing")}, ScanSelector: "button", Keywords: []string{"Export"}}
	el, ok := NewLocator(page, 0).Find(context.Background(), target)

	require.True(t, ok)
	assert.Same(t, byText, el)
}

func TestLocator_ScanFallsBackToAriaThenTitle(t *testing.T) {
	page := newFakeSession()
	byTitle := &fakeElement{attrs: map[string]string{"title": "Download CSV file"}}
	byAria := &fakeElement{attrs: map[string]string{"aria-label": "download csv"}}
	page.candidates["a"] = []Element{byTitle, byAria}

	target := Target{Name: "csv", ScanSelector: "a", Keywords: []string{"download csv"}}
	el, ok := NewLocator(page, 0).Find(context.Background(), target)
	require.True(t, ok)
	assert.Same(t, byAria, el)

	page.candidates["a"] = []Element{byTitle}
	el, ok = NewLocator(page, 0).Find(context.Background(), target)
	require.True(t, ok)
	assert.Same(t, byTitle, el)
}

func TestLocator_AbsenceIsNotAnError(t *testing.T) {
	page := newFakeSession()
	page.candidates["button"] = []Element{&fakeElement{text: "Share"}}

	el, ok := NewLocator(page, 0).Find(context.Background(), ExportButton)

	assert.False(t, ok)
	assert.Nil(t, el)
	assert.Len(t, page.probed, len(ExportButton.Strategies))
}

func TestLocator_StopsWhenContextDone(t *testing.T) {
	page := newFakeSession()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := NewLocator(page, 0).Find(ctx, ExportButton)
	assert.False(t, ok)
	assert.Empty(t, page.probed)
}

func TestLocator_ScanTextReadsShareOneDeadline(t *testing.T) {
	page := newFakeSession()
	var slow []Element
	for i := 0; i < 40; i++ {
		slow = append(slow, &fakeElement{text: "Share", textDelay: 100 * time.Millisecond})
	}
	labelled := &fakeElement{text: "Export", textDelay: 100 * time.Millisecond, attrs: map[string]string{"aria-label": "Export"}}
	page.candidates["button"] = append(slow, labelled)

	target := Target{Name: "export", ScanSelector: "button", Keywords: []string{"export"}}
	start := time.Now()
	el, ok := NewLocator(page, 250*time.Millisecond).Find(context.Background(), target)

	assert.Less(t, time.Since(start), 2*time.Second)
	require.True(t, ok)
	assert.Same(t, labelled, el)
	assert.Zero(t, labelled.textCalls)
}

func TestActivate_FallsBackToScriptClick(t *testing.T) {
	el := &fakeElement{clickErr: errIntercepted}

	programmatic, err := Activate(context.Background(), el)

	require.NoError(t, err)
	assert.True(t, programmatic)
	assert.Equal(t, 1, el.clicks)
	assert.Equal(t, 1, el.jsClicks)
}
