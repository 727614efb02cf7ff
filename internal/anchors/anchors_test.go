package anchors_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/linkd/internal/anchors"
	"github.com/fyrsmithlabs/linkd/internal/catalog"
)

func target(title string) *catalog.Article {
	return &catalog.Article{PostID: 42, Title: title, ContentType: catalog.TypePost}
}

func TestDistinctiveWords(t *testing.T) {
	words := anchors.DistinctiveWords("The Ultimate Guide to Pour-Over Coffee Brewing")
	assert.Equal(t, []string{"pour", "coffee", "brewing"}, words)

	// All filler yields nothing.
	assert.Empty(t, anchors.DistinctiveWords("The Ultimate Guide"))
	assert.Empty(t, anchors.DistinctiveWords("Top 10 Best Tips"))
}

func TestFindReturnsVerbatimAnchor(t *testing.T) {
	body := `<p>Morning routines matter. We grind fresh beans every day because
pour-over coffee brewing rewards consistency more than any other method.</p>
<p>Some filler text to push the article length out a bit further here.</p>`

	a := anchors.Find(body, target("Pour-Over Coffee Brewing Techniques"), nil)
	require.NotNil(t, a)

	// Whatever won, it must appear verbatim in the body's plaintext.
	assert.Contains(t, strings.ToLower(body), strings.ToLower(a.Text))
	assert.NotEmpty(t, a.Type)
	assert.NotEmpty(t, a.Position)
	assert.Greater(t, a.Score, 0.0)
	assert.NotEmpty(t, a.MatchingWords)
}

func TestFindNilWhenTitleTooGeneric(t *testing.T) {
	body := "<p>Plenty of text about anything at all, long enough to scan.</p>"
	assert.Nil(t, anchors.Find(body, target("The Complete Guide"), nil))
}

func TestFindNilWhenNoMention(t *testing.T) {
	body := "<p>This article is entirely about gardening and soil health in raised beds.</p>"
	assert.Nil(t, anchors.Find(body, target("Kubernetes Cluster Autoscaling"), nil))
}

func TestFindRespectsUsedSet(t *testing.T) {
	body := `<p>We cover espresso tamping pressure in depth, since espresso tamping
pressure is the variable most home baristas get wrong.</p>`
	tgt := target("Espresso Tamping Pressure Explained")

	first := anchors.Find(body, tgt, nil)
	require.NotNil(t, first)

	used := map[string]struct{}{strings.ToLower(first.Text): {}}
	second := anchors.Find(body, tgt, used)
	if second != nil {
		assert.NotEqual(t, strings.ToLower(first.Text), strings.ToLower(second.Text))
	}
}

func TestFindSkipsAlreadyLinkedText(t *testing.T) {
	body := `<p>Read about <a href="/other">espresso tamping pressure</a> and nothing else.</p>`
	assert.Nil(t, anchors.Find(body, target("Espresso Tamping Pressure Explained"), nil))
}

func TestIntroPositionOutscoresBody(t *testing.T) {
	intro := "Cold brew concentrate ratios shape everything that follows in the cup. "
	padding := strings.Repeat("Unrelated filler sentence that talks about something else entirely. ", 30)
	late := "Cold brew concentrate ratios shape everything that follows in the cup."
	tgt := target("Cold Brew Concentrate Ratios")

	early := anchors.Find("<p>"+intro+padding+"</p>", tgt, nil)
	require.NotNil(t, early)
	assert.Equal(t, anchors.PositionIntro, early.Position)

	buried := anchors.Find("<p>"+padding+late+"</p>", tgt, nil)
	require.NotNil(t, buried)
	assert.Equal(t, anchors.PositionConclusion, buried.Position)
	assert.Greater(t, early.Score, 0.0)
}

func TestFindDeterministic(t *testing.T) {
	body := `<p>Grinder burr alignment changes extraction. A well set grinder burr
keeps particles uniform. Uniform particles extract evenly, and grinder burr
alignment is worth checking twice a year.</p>`
	tgt := target("Grinder Burr Alignment Basics")

	first := anchors.Find(body, tgt, nil)
	require.NotNil(t, first)
	for i := 0; i < 5; i++ {
		again := anchors.Find(body, tgt, nil)
		require.NotNil(t, again)
		assert.Equal(t, first.Text, again.Text)
		assert.Equal(t, first.Score, again.Score)
	}
}

func TestGenericPhrasesNeverWin(t *testing.T) {
	body := `<p>Click here to learn more about coffee roasting basics. Coffee roasting
changes bean chemistry during the first crack and beyond.</p>`
	a := anchors.Find(body, target("Coffee Roasting Basics"), nil)
	require.NotNil(t, a)
	assert.NotContains(t, strings.ToLower(a.Text), "click here")
}
