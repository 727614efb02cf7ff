package ingest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/linkd/internal/catalog"
	"github.com/fyrsmithlabs/linkd/internal/ingest"
	"github.com/fyrsmithlabs/linkd/internal/llm"
)

type fixedEmbedder struct{ vector []float32 }

func (f fixedEmbedder) EmbedArticle(context.Context, string, string, string) ([]float32, error) {
	return f.vector, nil
}

type fakeModel struct {
	configured    bool
	summary       string
	analysis      *llm.Analysis
	keywords      llm.Keywords
	anchors       []string
	questions     []string
	seenClusters  []string
	summarizeCall int
}

func (f *fakeModel) Configured() bool { return f.configured }

func (f *fakeModel) Summarize(context.Context, string, string) (string, error) {
	f.summarizeCall++
	return f.summary, nil
}

func (f *fakeModel) AutoAnalyze(_ context.Context, _, _ string, known []string) (*llm.Analysis, error) {
	f.seenClusters = known
	if f.analysis == nil {
		return llm.FallbackAnalysis(), nil
	}
	return f.analysis, nil
}

func (f *fakeModel) ExtractKeywords(context.Context, string, string) (llm.Keywords, error) {
	return f.keywords, nil
}

func (f *fakeModel) SuggestAnchors(context.Context, string, string) ([]string, error) {
	return f.anchors, nil
}

func (f *fakeModel) ExtractQuestions(context.Context, string, string) ([]string, error) {
	return f.questions, nil
}

func newService(t *testing.T, model *fakeModel, articles ...*catalog.Article) (*ingest.Service, *catalog.MemStore) {
	t.Helper()
	store := catalog.NewMemStore(0)
	require.NoError(t, store.Seed(context.Background(), articles...))
	lister := catalog.NewCachedLister(store, time.Minute)
	svc := ingest.NewService(store, lister, fixedEmbedder{vector: []float32{1, 0, 0}}, model, nil, zap.NewNop())
	return svc, store
}

func syncReq(mutate func(*ingest.Request)) *ingest.Request {
	req := &ingest.Request{
		PostID:  10,
		Title:   "Espresso Grinder Settings",
		URL:     "/espresso-grinder-settings",
		Content: "<p>How to dial in your grinder for espresso.</p>",
	}
	if mutate != nil {
		mutate(req)
	}
	return req
}

func TestSyncCreatesWithEnrichment(t *testing.T) {
	model := &fakeModel{
		configured: true,
		summary:    "Dialing in a grinder, explained.",
		analysis: &llm.Analysis{
			TopicCluster:    "coffee",
			RelatedClusters: []string{"equipment"},
			FunnelStage:     catalog.StageConsideration,
			TargetPersona:   "home barista",
			DifficultyLevel: "intermediate",
			ContentLifespan: "evergreen",
			QualityScore:    75,
			Entities:        []string{"Espresso", "Burr Grinder"},
		},
		keywords:  llm.Keywords{Main: []string{"grinder settings"}, Semantic: []string{"grind size"}},
		anchors:   []string{"grinder settings guide"},
		questions: []string{"How do I dial in a grinder?"},
	}
	svc, store := newService(t, model)

	res, err := svc.Sync(context.Background(), syncReq(nil))
	require.NoError(t, err)

	assert.Equal(t, ingest.ActionCreated, res.Action)
	assert.Equal(t, "10", res.VectorID)
	assert.True(t, res.GeneratedSummary)
	assert.True(t, res.GeneratedKeywords)
	assert.True(t, res.AutoAnalyzed)

	stored, err := store.Get(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "Dialing in a grinder, explained.", stored.Summary)
	assert.Equal(t, "coffee", stored.TopicCluster)
	assert.Equal(t, []string{"Espresso", "Burr Grinder"}, stored.Entities)
	assert.Equal(t, []string{"grinder settings"}, stored.MainTopics)
	assert.Equal(t, []string{"grinder settings guide"}, stored.SuggestedAnchors)
	assert.Equal(t, []string{"How do I dial in a grinder?"}, stored.QuestionsAnswered)
	assert.NotEmpty(t, stored.Embedding)
}

func TestSyncWithoutModelUsesFallbacks(t *testing.T) {
	svc, store := newService(t, &fakeModel{})

	res, err := svc.Sync(context.Background(), syncReq(nil))
	require.NoError(t, err)
	assert.True(t, res.GeneratedSummary)
	assert.True(t, res.AutoAnalyzed)
	assert.False(t, res.GeneratedKeywords)

	stored, err := store.Get(context.Background(), 10)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Summary)
	assert.Equal(t, "general", stored.TopicCluster)
	assert.Equal(t, 50, stored.QualityScore)
}

func TestSyncUpdatePreservesLinkStateAndEnrichment(t *testing.T) {
	existing := &catalog.Article{
		PostID:           10,
		Title:            "Old Title",
		URL:              "/old",
		ContentType:      catalog.TypePost,
		Summary:          "Existing summary.",
		TopicCluster:     "coffee",
		MainTopics:       []string{"espresso"},
		SuggestedAnchors: []string{"old anchor"},
		InboundAnchors:   []catalog.InboundAnchor{{Text: "espresso", SourceID: 3}},
		OutboundLinks:    []catalog.OutboundLink{{TargetID: 4, Anchor: "frothing"}},
		InboundLinkCount: 7,
		DismissedLinks:   []catalog.DismissedLink{{TargetID: 5, Reason: "manual"}},
		Extras:           map[string]any{"legacyField": "kept"},
		Embedding:        []float32{1, 0, 0},
	}
	model := &fakeModel{configured: true, summary: "should not be used"}
	svc, store := newService(t, model, existing)

	res, err := svc.Sync(context.Background(), syncReq(nil))
	require.NoError(t, err)
	assert.Equal(t, ingest.ActionUpdated, res.Action)
	assert.False(t, res.GeneratedSummary)
	assert.False(t, res.AutoAnalyzed)
	assert.Zero(t, model.summarizeCall)

	stored, err := store.Get(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "Espresso Grinder Settings", stored.Title)
	assert.Equal(t, "Existing summary.", stored.Summary)
	assert.Equal(t, "coffee", stored.TopicCluster)
	assert.Equal(t, 7, stored.InboundLinkCount)
	assert.Len(t, stored.InboundAnchors, 1)
	assert.Len(t, stored.OutboundLinks, 1)
	assert.Len(t, stored.DismissedLinks, 1)
	assert.Equal(t, "kept", stored.Extras["legacyField"])
	assert.Equal(t, []string{"old anchor"}, stored.SuggestedAnchors)
}

func TestSyncForcesPillarFalseForPosts(t *testing.T) {
	svc, store := newService(t, &fakeModel{})

	_, err := svc.Sync(context.Background(), syncReq(func(r *ingest.Request) {
		r.IsPillar = true
		r.TopicCluster = "coffee"
	}))
	require.NoError(t, err)

	stored, err := store.Get(context.Background(), 10)
	require.NoError(t, err)
	assert.False(t, stored.IsPillar)

	_, err = svc.Sync(context.Background(), syncReq(func(r *ingest.Request) {
		r.PostID = 11
		r.ContentType = catalog.TypePage
		r.IsPillar = true
		r.TopicCluster = "coffee"
	}))
	require.NoError(t, err)

	page, err := store.Get(context.Background(), 11)
	require.NoError(t, err)
	assert.True(t, page.IsPillar)
}

func TestSyncPassesKnownClusters(t *testing.T) {
	model := &fakeModel{configured: true}
	svc, _ := newService(t, model,
		&catalog.Article{PostID: 1, Title: "A", URL: "/a", ContentType: catalog.TypePost, TopicCluster: "coffee", Embedding: []float32{1, 0, 0}},
		&catalog.Article{PostID: 2, Title: "B", URL: "/b", ContentType: catalog.TypePost, TopicCluster: "brewing", Embedding: []float32{1, 0, 0}},
	)

	_, err := svc.Sync(context.Background(), syncReq(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"brewing", "coffee"}, model.seenClusters)
}

func TestSyncValidation(t *testing.T) {
	svc, _ := newService(t, &fakeModel{})

	_, err := svc.Sync(context.Background(), syncReq(func(r *ingest.Request) { r.PostID = 0 }))
	assert.Error(t, err)

	_, err = svc.Sync(context.Background(), syncReq(func(r *ingest.Request) { r.Title = " " }))
	assert.Error(t, err)

	_, err = svc.Sync(context.Background(), syncReq(func(r *ingest.Request) { r.ContentType = "widget" }))
	assert.Error(t, err)
}

func TestSyncBatchIsolatesFailures(t *testing.T) {
	svc, store := newService(t, &fakeModel{})

	out := svc.SyncBatch(context.Background(), []*ingest.Request{
		syncReq(nil),
		syncReq(func(r *ingest.Request) { r.PostID = 0 }),
		syncReq(func(r *ingest.Request) { r.PostID = 11; r.URL = "/other" }),
	})

	assert.Equal(t, 2, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	require.Len(t, out.Details, 3)
	assert.Equal(t, ingest.ActionCreated, out.Details[0].Status)
	assert.Equal(t, "failed", out.Details[1].Status)
	assert.NotEmpty(t, out.Details[1].Error)
	assert.Equal(t, ingest.ActionCreated, out.Details[2].Status)

	_, err := store.Get(context.Background(), 11)
	assert.NoError(t, err)
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc, store := newService(t, &fakeModel{},
		&catalog.Article{PostID: 10, Title: "A", URL: "/a", ContentType: catalog.TypePost, Embedding: []float32{1, 0, 0}})

	require.NoError(t, svc.Delete(context.Background(), 10))
	_, err := store.Get(context.Background(), 10)
	assert.True(t, errors.Is(err, catalog.ErrNotFound))

	// A second delete is a no-op, not an error.
	assert.NoError(t, svc.Delete(context.Background(), 10))
}

func TestSyncIdempotentUpsert(t *testing.T) {
	model := &fakeModel{configured: true, summary: "Stable summary."}
	svc, store := newService(t, model)

	first, err := svc.Sync(context.Background(), syncReq(nil))
	require.NoError(t, err)
	assert.Equal(t, ingest.ActionCreated, first.Action)

	second, err := svc.Sync(context.Background(), syncReq(nil))
	require.NoError(t, err)
	assert.Equal(t, ingest.ActionUpdated, second.Action)

	stored, err := store.Get(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "Stable summary.", stored.Summary)
}
